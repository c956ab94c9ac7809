package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role es un bundle de permisos con nombre único.
// Permissions son pares "resource:action"; "*" es válido en cualquiera de
// las dos posiciones.
type Role struct {
	ID          uuid.UUID
	Name        string
	Permissions []string
	CreatedAt   time.Time
}

// RoleAssignment vincula un usuario con un rol.
type RoleAssignment struct {
	UserID     uuid.UUID
	RoleID     uuid.UUID
	AssignedAt time.Time
}

// RBACRepository define operaciones sobre roles, permisos y asignaciones.
type RBACRepository interface {
	// CreateRole crea un rol con sus permisos iniciales.
	// Retorna ErrConflict si el nombre ya existe.
	CreateRole(ctx context.Context, name string, perms []string) (*Role, error)

	// GetRoleByID busca un rol por id. Retorna ErrNotFound si no existe.
	GetRoleByID(ctx context.Context, id uuid.UUID) (*Role, error)

	// GetRoleByName busca un rol por nombre. Retorna ErrNotFound si no existe.
	GetRoleByName(ctx context.Context, name string) (*Role, error)

	// ListRoles retorna todos los roles con sus permisos.
	ListRoles(ctx context.Context) ([]Role, error)

	// AddRolePerms agrega permisos a un rol (de-dup, idempotente).
	// Retorna ErrNotFound si el rol no existe.
	AddRolePerms(ctx context.Context, roleID uuid.UUID, perms []string) error

	// RemoveRolePerms quita permisos de un rol. Quitar un permiso que el
	// rol no tiene es no-op.
	RemoveRolePerms(ctx context.Context, roleID uuid.UUID, perms []string) error

	// AssignRole asigna un rol a un usuario. Idempotente: asignar un rol
	// ya asignado es no-op. Retorna ErrNotFound si el usuario o el rol
	// no existen.
	AssignRole(ctx context.Context, userID, roleID uuid.UUID) error

	// RevokeRole quita un rol de un usuario. Quitar un rol no asignado es
	// no-op, no error. Retorna ErrNotFound si el rol no existe.
	RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error

	// GetUserRoles retorna los nombres de los roles asignados al usuario.
	GetUserRoles(ctx context.Context, userID uuid.UUID) ([]string, error)

	// GetUserPermissions retorna los permisos efectivos (unión de los
	// permisos de todos los roles del usuario, sin duplicados).
	GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}
