package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

// userRepo implementa repository.UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

var _ repository.UserRepository = (*userRepo)(nil)

// NewUserRepo crea el repositorio de usuarios.
func NewUserRepo(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepo{pool: pool}
}

const userCols = `id, email, password_hash, status, name, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserta un usuario. La unicidad de email la impone el índice único
// sobre la columna (el email llega ya normalizado del service).
func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	const q = `
INSERT INTO app_user (email, password_hash, status, name)
VALUES ($1, $2, 'active', NULLIF($3, ''))
RETURNING ` + userCols
	u, err := scanUser(r.pool.QueryRow(ctx, q, input.Email, input.PasswordHash, input.Name))
	if err != nil {
		if errors.Is(mapErr(err), repository.ErrConflict) {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", mapErr(err))
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE email = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	const q = `UPDATE app_user SET password_hash = $1, updated_at = now() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, hash, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetStatus(ctx context.Context, id uuid.UUID, status repository.UserStatus) error {
	if !status.Valid() {
		return repository.ErrInvalid
	}
	const q = `UPDATE app_user SET status = $1, updated_at = now() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, status, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
