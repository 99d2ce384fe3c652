package validate

// DIAN check-digit weights, applied right to left over the NIT body
// zero-padded to 15 digits.
var nitWeights = [15]int{3, 7, 13, 17, 19, 23, 29, 37, 41, 43, 47, 53, 59, 67, 71}

// CheckDigit computes the DIAN verification digit for a NIT body
// (digits only, without the check digit). Returns false when the body
// contains non-digits or is empty.
func CheckDigit(body string) (int, bool) {
	if body == "" || len(body) > 15 {
		return 0, false
	}
	sum := 0
	n := len(body)
	for i := 0; i < n; i++ {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		// Rightmost digit carries weight 3, the next 7, and so on.
		sum += int(c-'0') * nitWeights[n-1-i]
	}
	r := sum % 11
	if r < 2 {
		return r, true
	}
	return 11 - r, true
}

// VerifyNIT treats the last digit of a digits-only NIT as the declared
// check digit and verifies it against the computed one.
func VerifyNIT(nit string) bool {
	if len(nit) < 2 {
		return false
	}
	body, declared := nit[:len(nit)-1], nit[len(nit)-1]
	if declared < '0' || declared > '9' {
		return false
	}
	dv, ok := CheckDigit(body)
	return ok && dv == int(declared-'0')
}
