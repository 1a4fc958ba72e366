package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectColumns = `
		SELECT id, cpf, COALESCE(nome_usuario, ''), COALESCE(tipo_usuario, ''),
		       COALESCE(primeiro_acesso, false), id_professor::text,
		       created_at, updated_at
		FROM usuarios`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// GetByID retrieves the row bound to an identity account.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectColumns+`
		WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return u, nil
}

// GetByCPF retrieves the row for a national id (digits only).
func (r *PostgresRepository) GetByCPF(ctx context.Context, cpf string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectColumns+`
		WHERE cpf = $1`, cpf))
	if err != nil {
		return nil, fmt.Errorf("querying user by cpf: %w", err)
	}
	return u, nil
}

// CompleteFirstAccess sets id to the identity account and clears primeiro_acesso.
func (r *PostgresRepository) CompleteFirstAccess(ctx context.Context, cpf string, accountID uuid.UUID) error {
	query := `
		UPDATE usuarios
		SET id = $1, primeiro_acesso = false, updated_at = NOW()
		WHERE cpf = $2`

	result, err := r.pool.Exec(ctx, query, accountID, cpf)
	if err != nil {
		return fmt.Errorf("completing first access: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.CPF, &u.Name, &u.RawRole,
		&u.FirstAccess, &u.TeacherID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	u.Role = ParseRole(u.RawRole)
	if u.Name == "" {
		u.Name = DefaultName
	}
	return &u, nil
}
