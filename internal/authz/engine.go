package authz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// ErrForbidden: el principal no tiene el permiso requerido.
var ErrForbidden = errors.New("forbidden")

// snapshot es el set resuelto de roles/permisos de un principal.
type snapshot struct {
	Roles []string
	Perms []string
}

// Engine resuelve permisos efectivos y aplica los checks.
//
// Los sets resueltos se cachean in-process por principal con TTL acotado.
// El TTL es solo red de seguridad para invalidaciones perdidas entre
// instancias distribuidas; la consistencia primaria la dan las
// invalidaciones síncronas de AssignRole/RevokeRole.
type Engine struct {
	repo  repository.RBACRepository
	cache *gocache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewEngine(repo repository.RBACRepository, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 6 * time.Hour
	}
	return &Engine{
		repo:  repo,
		cache: gocache.New(cacheTTL, 10*time.Minute),
		ttl:   cacheTTL,
		log:   logger.Named("authz"),
	}
}

// Resolve retorna roles y permisos efectivos del principal (cacheado).
func (e *Engine) Resolve(ctx context.Context, userID uuid.UUID) ([]string, []string, error) {
	key := userID.String()
	if v, ok := e.cache.Get(key); ok {
		if s, ok := v.(snapshot); ok {
			return s.Roles, s.Perms, nil
		}
	}

	roles, err := e.repo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := e.repo.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	e.cache.Set(key, snapshot{Roles: roles, Perms: perms}, e.ttl)
	return roles, perms, nil
}

// Invalidate descarta el set cacheado de un principal.
func (e *Engine) Invalidate(userID uuid.UUID) {
	e.cache.Delete(userID.String())
}

// Check evalúa un permiso concreto contra los permisos efectivos del
// principal. required no admite comodines: es el par concreto que la
// operación exige.
func (e *Engine) Check(ctx context.Context, userID uuid.UUID, required string) error {
	req, err := Parse(required)
	if err != nil {
		metrics.PermissionChecks.WithLabelValues("error").Inc()
		return err
	}
	if req.IsWildcard() {
		metrics.PermissionChecks.WithLabelValues("error").Inc()
		return ErrInvalidPermission
	}

	_, perms, err := e.Resolve(ctx, userID)
	if err != nil {
		metrics.PermissionChecks.WithLabelValues("error").Inc()
		return err
	}

	if !Allowed(perms, req) {
		metrics.PermissionChecks.WithLabelValues("forbidden").Inc()
		return ErrForbidden
	}
	metrics.PermissionChecks.WithLabelValues("authorized").Inc()
	return nil
}

// AssignRole asigna un rol e invalida el cache del principal en el mismo
// paso, no diferido: un check posterior ya ve el rol nuevo.
func (e *Engine) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := e.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	e.Invalidate(userID)
	return nil
}

// AssignRoleByName resuelve el rol por nombre y lo asigna.
func (e *Engine) AssignRoleByName(ctx context.Context, userID uuid.UUID, name string) error {
	role, err := e.repo.GetRoleByName(ctx, name)
	if err != nil {
		return err
	}
	return e.AssignRole(ctx, userID, role.ID)
}

// RevokeRole quita un rol e invalida el cache del principal. Quitar un rol
// no asignado es no-op, no error.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := e.repo.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	e.Invalidate(userID)
	return nil
}

// ---------- administración de roles ----------

func (e *Engine) CreateRole(ctx context.Context, name string, perms []string) (*repository.Role, error) {
	for _, p := range perms {
		if _, err := Parse(p); err != nil {
			return nil, err
		}
	}
	return e.repo.CreateRole(ctx, name, perms)
}

func (e *Engine) GetRoleByName(ctx context.Context, name string) (*repository.Role, error) {
	return e.repo.GetRoleByName(ctx, name)
}

func (e *Engine) ListRoles(ctx context.Context) ([]repository.Role, error) {
	return e.repo.ListRoles(ctx)
}

// AddRolePerms agrega permisos a un rol. Afecta a todos los principals con
// ese rol, así que acá se flushea el cache entero.
func (e *Engine) AddRolePerms(ctx context.Context, roleID uuid.UUID, perms []string) error {
	for _, p := range perms {
		if _, err := Parse(p); err != nil {
			return err
		}
	}
	if err := e.repo.AddRolePerms(ctx, roleID, perms); err != nil {
		return err
	}
	e.cache.Flush()
	return nil
}

// RemoveRolePerms quita permisos de un rol y flushea el cache entero.
func (e *Engine) RemoveRolePerms(ctx context.Context, roleID uuid.UUID, perms []string) error {
	if err := e.repo.RemoveRolePerms(ctx, roleID, perms); err != nil {
		return err
	}
	e.cache.Flush()
	return nil
}
