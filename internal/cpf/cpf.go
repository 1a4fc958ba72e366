package cpf

import "strings"

// Length is the number of digits in a CPF.
const Length = 11

// DefaultEmailDomain is the domain of the synthetic identity-service login.
const DefaultEmailDomain = "mkp.local"

// Unformat removes every non-digit character.
func Unformat(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format strips the input, truncates it to 11 digits and applies the
// 000.000.000-00 mask. Partial input receives a partial mask.
func Format(value string) string {
	digits := Unformat(value)
	if len(digits) > Length {
		digits = digits[:Length]
	}

	switch n := len(digits); {
	case n <= 3:
		return digits
	case n <= 6:
		return digits[:3] + "." + digits[3:]
	case n <= 9:
		return digits[:3] + "." + digits[3:6] + "." + digits[6:]
	default:
		return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
	}
}

// Validate reports whether value, after stripping formatting, is a CPF with
// correct check digits. Sequences of a single repeated digit are rejected.
func Validate(value string) bool {
	digits := Unformat(value)
	if len(digits) != Length {
		return false
	}
	if repeated(digits) {
		return false
	}

	if checkDigit(digits[:9], 10) != int(digits[9]-'0') {
		return false
	}
	return checkDigit(digits[:10], 11) == int(digits[10]-'0')
}

// Email returns the synthetic identity-service login for a CPF.
func Email(cpf, domain string) string {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	return Unformat(cpf) + "@" + domain
}

// checkDigit weights digits from firstWeight down to 2.
func checkDigit(digits string, firstWeight int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (firstWeight - i)
	}
	rem := (sum * 10) % 11
	if rem >= 10 {
		return 0
	}
	return rem
}

func repeated(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
