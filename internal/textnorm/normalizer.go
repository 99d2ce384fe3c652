// Package textnorm cleans raw OCR output before extraction. Line breaks
// are preserved because the extractors use line positions (header region,
// item table region); only horizontal whitespace noise is collapsed.
package textnorm

import "strings"

// Normalize collapses runs of horizontal whitespace inside each line,
// trims line edges and drops leading/trailing blank lines. It is total:
// any input, including empty, yields a string.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}

	// Trim blank lines at both ends, keep interior ones: a blank line in
	// the middle can separate the item table from the summary block.
	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

// Lines normalizes and splits in one step.
func Lines(raw string) []string {
	n := Normalize(raw)
	if n == "" {
		return nil
	}
	return strings.Split(n, "\n")
}

func collapseSpaces(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	space := false
	for _, r := range line {
		if r == ' ' || r == '\t' || r == ' ' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
