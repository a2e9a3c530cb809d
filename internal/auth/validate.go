package auth

import "unicode"

// ValidUsername reports whether s is 2-32 characters of ASCII letters, '-'
// or '_'.
func ValidUsername(s string) bool {
	if len(s) < 2 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// ValidPassword reports whether s is 12-64 characters long and contains at
// least one letter, one ASCII digit, and one character outside both classes.
func ValidPassword(s string) bool {
	var letters, digits, other int
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r >= '0' && r <= '9':
			digits++
		default:
			other++
		}
	}

	n := letters + digits + other
	return n >= 12 && n <= 64 && letters > 0 && digits > 0 && other > 0
}
