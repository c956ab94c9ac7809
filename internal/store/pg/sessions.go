package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

// sessionRepo implementa repository.SessionRepository.
type sessionRepo struct {
	pool *pgxpool.Pool
}

var _ repository.SessionRepository = (*sessionRepo)(nil)

// NewSessionRepo crea el repositorio de sesiones.
func NewSessionRepo(pool *pgxpool.Pool) repository.SessionRepository {
	return &sessionRepo{pool: pool}
}

const sessionCols = `id, user_id, token_hash, ip_address, user_agent, created_at, last_used_at, expires_at`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastUsedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Create(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	const q = `
INSERT INTO session (user_id, token_hash, ip_address, user_agent, expires_at)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5)
RETURNING ` + sessionCols
	sess, err := scanSession(r.pool.QueryRow(ctx, q,
		input.UserID, input.TokenHash, input.IPAddress, input.UserAgent, input.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", mapErr(err))
	}
	return sess, nil
}

func (r *sessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*repository.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM session WHERE token_hash = $1`
	sess, err := scanSession(r.pool.QueryRow(ctx, q, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return sess, nil
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]repository.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM session WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	const q = `UPDATE session SET last_used_at = $1 WHERE token_hash = $2`
	_, err := r.pool.Exec(ctx, q, at, tokenHash)
	return mapErr(err)
}

// Delete es idempotente: borrar una sesión inexistente no es error.
func (r *sessionRepo) Delete(ctx context.Context, tokenHash string) error {
	const q = `DELETE FROM session WHERE token_hash = $1`
	_, err := r.pool.Exec(ctx, q, tokenHash)
	return mapErr(err)
}

func (r *sessionRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `DELETE FROM session WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	const q = `DELETE FROM session WHERE expires_at < now()`
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}
