// Package identity talks to the hosted identity service (Supabase Auth).
//
// Provider is the stateless request/response contract. Client wraps a
// Provider with the per-browser session token and publishes a Change every
// time that token appears or disappears.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identity is an identity-service account.
type Identity struct {
	ID       uuid.UUID
	Email    string
	Metadata map[string]any
}

// Token is the result of a successful password sign-in.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

// Code classifies identity-service failures. Callers branch on the code,
// never on provider message text.
type Code string

const (
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeUserAlreadyExists  Code = "user_already_exists"
	CodeWeakPassword       Code = "weak_password"
	CodeRateLimited        Code = "over_request_rate_limit"
	CodeUnavailable        Code = "unavailable"
	CodeUnknown            Code = "unknown"
)

// Error is a classified identity-service failure.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("identity service: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("identity service: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the Code of err, or CodeUnknown when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Provider is the identity-service contract.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Token, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}
