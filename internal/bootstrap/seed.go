// Package bootstrap siembra los datos mínimos para servir tráfico: roles
// por defecto y, opcionalmente, la cuenta admin inicial.
package bootstrap

import (
	"context"
	"errors"

	"github.com/dropDatabas3/usersvc/internal/authz"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	"github.com/dropDatabas3/usersvc/internal/util"
)

// Defaults describe qué sembrar. AdminEmail vacío omite la cuenta admin.
type Defaults struct {
	DefaultRole   string
	AdminEmail    string
	AdminPassword string
	Hash          password.Params
}

var defaultRolePerms = []string{"profile:read", "profile:write"}

var adminRolePerms = []string{"*:*"}

// EnsureDefaults es idempotente: roles o cuentas ya existentes se dejan
// como están, nunca se pisan permisos editados por un operador.
func EnsureDefaults(ctx context.Context, engine *authz.Engine, users repository.UserRepository, d Defaults) error {
	log := logger.Named("bootstrap")

	if d.DefaultRole == "" {
		d.DefaultRole = "user"
	}
	if d.Hash == (password.Params{}) {
		d.Hash = password.Default
	}

	if err := ensureRole(ctx, engine, d.DefaultRole, defaultRolePerms); err != nil {
		return err
	}
	if err := ensureRole(ctx, engine, "admin", adminRolePerms); err != nil {
		return err
	}

	if d.AdminEmail == "" {
		return nil
	}

	u, err := users.GetByEmail(ctx, d.AdminEmail)
	switch {
	case err == nil:
		// ya existe; solo garantizar el rol
	case errors.Is(err, repository.ErrNotFound):
		if d.AdminPassword == "" {
			return errors.New("bootstrap: admin password required to create admin account")
		}
		hash, err := password.Hash(d.Hash, d.AdminPassword)
		if err != nil {
			return err
		}
		u, err = users.Create(ctx, repository.CreateUserInput{
			Email:        d.AdminEmail,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		log.Info("admin account created", logger.Email(util.MaskEmail(d.AdminEmail)))
	default:
		return err
	}

	return engine.AssignRoleByName(ctx, u.ID, "admin")
}

func ensureRole(ctx context.Context, engine *authz.Engine, name string, perms []string) error {
	_, err := engine.CreateRole(ctx, name, perms)
	if err == nil {
		logger.Named("bootstrap").Info("role seeded", logger.Role(name))
		return nil
	}
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	return err
}
