package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStatus es el estado de la cuenta.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusInactive  UserStatus = "inactive"
)

// Valid reporta si el estado es uno de los conocidos.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// User representa un principal persistido.
// PasswordHash es un PHC string argon2id, nunca el plaintext.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Status       UserStatus
	Name         *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
// Email debe llegar ya normalizado (lowercase + trim); el repositorio
// impone unicidad sobre ese valor.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Name         string
}

// UserRepository define operaciones sobre usuarios.
// Las escrituras son atómicas por registro; no hay transacciones
// cross-record en este contrato.
type UserRepository interface {
	// Create inserta un usuario nuevo. Retorna ErrDuplicateEmail si el
	// email ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// GetByEmail busca por email normalizado. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID busca por id. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// UpdatePasswordHash reemplaza el hash de password.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	// SetStatus cambia el estado de la cuenta.
	SetStatus(ctx context.Context, id uuid.UUID, status UserStatus) error
}
