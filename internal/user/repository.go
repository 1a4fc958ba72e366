package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no usuarios row matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// Repository provides operations on the usuarios table.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByCPF(ctx context.Context, cpf string) (*User, error)
	// CompleteFirstAccess points the row at the new identity account and
	// clears the first-access flag.
	CompleteFirstAccess(ctx context.Context, cpf string, accountID uuid.UUID) error
}
