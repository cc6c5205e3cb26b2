package pii

import "strings"

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validAadhaar requires the candidate to normalize to exactly 12 digits.
func validAadhaar(match string) bool {
	return len(digitsOf(match)) == 12
}

// validBankAccount discards short digit runs that are more likely invoice or
// reference numbers than account numbers.
func validBankAccount(match string) bool {
	return len(match) >= 11
}

// maskAadhaar keeps the last four digits: "1234 5678 9012" -> "XXXX XXXX 9012".
func maskAadhaar(match string) string {
	digits := digitsOf(match)
	if len(digits) != 12 {
		return strings.Repeat("X", len(match))
	}
	return "XXXX XXXX " + digits[8:]
}

// maskPAN keeps the digit block: "ABCDE1234F" -> "XXXXX1234X".
func maskPAN(match string) string {
	if len(match) == 10 {
		return "XXXXX" + match[5:9] + "X"
	}
	return strings.Repeat("X", len(match))
}

func maskFull(match string) string {
	return strings.Repeat("X", len(match))
}

func fixedMask(mask string) func(string) string {
	return func(string) string { return mask }
}
