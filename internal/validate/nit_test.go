package validate

import "testing"

func TestCheckDigit(t *testing.T) {
	// DIAN itself: NIT 800.197.268 with verification digit 4.
	if got, ok := CheckDigit("800197268"); !ok || got != 4 {
		t.Errorf("CheckDigit(800197268) = %d, %v; want 4", got, ok)
	}

	for _, bad := range []string{"", "12a45", "1234567890123456"} {
		if _, ok := CheckDigit(bad); ok {
			t.Errorf("CheckDigit(%q): expected failure", bad)
		}
	}
}

func TestCheckDigitSelfConsistent(t *testing.T) {
	// Whatever digit the scheme computes must verify.
	for _, body := range []string{"800197268", "900123456", "1", "79558461"} {
		dv, ok := CheckDigit(body)
		if !ok {
			t.Fatalf("CheckDigit(%q) failed", body)
		}
		nit := body + string(rune('0'+dv))
		if !VerifyNIT(nit) {
			t.Errorf("VerifyNIT(%q) = false for computed check digit %d", nit, dv)
		}
		// Any other digit must fail.
		wrong := (dv + 1) % 10
		if VerifyNIT(body + string(rune('0'+wrong))) {
			t.Errorf("VerifyNIT accepted wrong check digit %d for %q", wrong, body)
		}
	}
}

func TestVerifyNIT(t *testing.T) {
	if !VerifyNIT("8001972684") {
		t.Error("expected valid NIT to verify")
	}
	if VerifyNIT("8001972685") {
		t.Error("expected flipped check digit to fail")
	}
	if VerifyNIT("4") {
		t.Error("expected single digit to fail")
	}
	if VerifyNIT("80019726x4") {
		t.Error("expected non-digit body to fail")
	}
}
