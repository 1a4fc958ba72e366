package validation

import (
	"strings"

	"github.com/momentokidspass/mkp/internal/cpf"
	"github.com/momentokidspass/mkp/internal/session"
)

// FieldError describes a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LoginRequest mirrors the fields needed for login validation.
type LoginRequest struct {
	CPF      string
	Password string
}

// ValidateLoginRequest validates the fields of a login request. The CPF may
// be formatted.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(req.CPF) == "" {
		errs = append(errs, FieldError{Field: "cpf", Message: "Digite seu CPF"})
	} else if !cpf.Validate(req.CPF) {
		errs = append(errs, FieldError{Field: "cpf", Message: "CPF inválido"})
	}

	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "Digite sua senha"})
	}

	return errs
}

// FirstAccessRequest mirrors the fields needed for first-access validation.
type FirstAccessRequest struct {
	Password        string
	ConfirmPassword string
}

// ValidateFirstAccessRequest reports one error per unmet password
// requirement, plus a mismatch with the confirmation.
func ValidateFirstAccessRequest(req FirstAccessRequest) []FieldError {
	var errs []FieldError

	for _, r := range session.UnmetRequirements(req.Password) {
		errs = append(errs, FieldError{Field: "password", Message: r.Message, Code: r.Code})
	}

	if req.ConfirmPassword == "" {
		errs = append(errs, FieldError{Field: "confirmPassword", Message: "Confirme sua senha"})
	} else if req.ConfirmPassword != req.Password {
		errs = append(errs, FieldError{Field: "confirmPassword", Message: "As senhas não coincidem"})
	}

	return errs
}
