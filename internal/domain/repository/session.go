package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session representa una sesión de refresh persistida.
// TokenHash es sha256(refresh token) en base64url; el plaintext del token
// nunca toca la base de datos.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	IPAddress  *string
	UserAgent  *string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// CreateSessionInput contiene los datos para crear una sesión.
type CreateSessionInput struct {
	UserID    uuid.UUID
	TokenHash string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
}

// SessionRepository define operaciones sobre sesiones (copia autoritativa).
type SessionRepository interface {
	// Create inserta una nueva sesión. Retorna ErrConflict si el token
	// hash ya existe (colisión de token, prácticamente imposible).
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// GetByTokenHash busca una sesión por el hash del refresh token.
	// Retorna ErrNotFound si no existe.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// ListByUser retorna todas las sesiones vigentes de un usuario.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)

	// Touch actualiza last_used_at.
	Touch(ctx context.Context, tokenHash string, at time.Time) error

	// Delete elimina una sesión. Idempotente: borrar una sesión
	// inexistente no es error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByUser elimina todas las sesiones de un usuario.
	// Retorna cuántas eliminó.
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// DeleteExpired elimina sesiones vencidas. Retorna cuántas eliminó.
	DeleteExpired(ctx context.Context) (int, error)
}
