package session

import "errors"

var (
	// ErrInvalidCPF is returned before any network call when the national id
	// fails the checksum.
	ErrInvalidCPF = errors.New("invalid cpf")

	ErrPasswordRequired = errors.New("password required")

	// ErrInvalidCredentials is a wrong password for an account that has
	// already completed first access.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrCPFNotFound = errors.New("cpf not found")

	// ErrFirstAccessWrongPassword means the row is still in first access but
	// the password given is not the cpf itself.
	ErrFirstAccessWrongPassword = errors.New("first access requires the cpf as password")

	// ErrTeacherNotLinked is returned after a successful sign-in by a teacher
	// row without id_professor. The session is signed out.
	ErrTeacherNotLinked = errors.New("teacher not linked")

	// ErrUserNotProvisioned means the identity account has no usuarios row.
	// The session is signed out.
	ErrUserNotProvisioned = errors.New("user not provisioned")

	ErrConnection = errors.New("identity or row store unavailable")

	ErrAccountCreation = errors.New("creating identity account")

	// ErrRowUpdate is returned when the identity account was created but the
	// usuarios row could not be updated. The account is left in place.
	ErrRowUpdate = errors.New("updating user row after account creation")

	ErrAutoSignIn = errors.New("signing in after first access")

	ErrNoPendingFirstAccess = errors.New("no pending first access")

	ErrWeakPassword = errors.New("password does not meet requirements")

	// ErrSuperseded is returned to a sign-in whose result was discarded
	// because a newer request on the same session started.
	ErrSuperseded = errors.New("superseded by a newer request")

	ErrClosed = errors.New("session closed")

	// ErrUnknownToken is returned by Registry.Rotate for a token that no
	// longer names a live session.
	ErrUnknownToken = errors.New("unknown session token")
)
