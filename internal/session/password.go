package session

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted at first access.
const MinPasswordLength = 8

// PasswordRequirement is one rule of the first-access password policy.
type PasswordRequirement struct {
	Code    string
	Message string
	test    func(string) bool
}

// PasswordRequirements lists the rules in the order they are shown to users.
var PasswordRequirements = []PasswordRequirement{
	{
		Code:    "min_length",
		Message: fmt.Sprintf("Mínimo %d caracteres", MinPasswordLength),
		test:    func(p string) bool { return utf8.RuneCountInString(p) >= MinPasswordLength },
	},
	{
		Code:    "uppercase",
		Message: "Pelo menos uma letra maiúscula",
		test:    func(p string) bool { return strings.IndexFunc(p, isASCIIUpper) >= 0 },
	},
	{
		Code:    "lowercase",
		Message: "Pelo menos uma letra minúscula",
		test:    func(p string) bool { return strings.IndexFunc(p, isASCIILower) >= 0 },
	},
	{
		Code:    "digit",
		Message: "Pelo menos um número",
		test:    func(p string) bool { return strings.IndexFunc(p, isASCIIDigit) >= 0 },
	},
}

// UnmetRequirements returns the requirements password fails, in order.
func UnmetRequirements(password string) []PasswordRequirement {
	var unmet []PasswordRequirement
	for _, req := range PasswordRequirements {
		if !req.test(password) {
			unmet = append(unmet, req)
		}
	}
	return unmet
}

// ValidatePassword returns an error wrapping ErrWeakPassword when password
// fails any requirement.
func ValidatePassword(password string) error {
	unmet := UnmetRequirements(password)
	if len(unmet) == 0 {
		return nil
	}
	codes := make([]string, len(unmet))
	for i, req := range unmet {
		codes[i] = req.Code
	}
	return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(codes, ", "))
}

func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
