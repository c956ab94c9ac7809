// Package auth es el boundary del servicio: registro, login, refresh,
// logout y checks de permiso, con la taxonomía de errores que consume la
// capa HTTP. Orquesta credential store, token service y motor de
// autorización; no contiene lógica de transporte.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/usersvc/internal/authz"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	"github.com/dropDatabas3/usersvc/internal/token"
	"github.com/dropDatabas3/usersvc/internal/util"
)

// Principal es la vista pública de un usuario que devuelve el boundary.
// Nunca incluye el hash de password.
type Principal struct {
	ID     uuid.UUID             `json:"id"`
	Email  string                `json:"email"`
	Name   string                `json:"name,omitempty"`
	Status repository.UserStatus `json:"status"`
	Roles  []string              `json:"roles"`
}

// Result es la respuesta de register y login.
type Result struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	Principal    Principal `json:"principal"`
}

// Options configura el boundary.
type Options struct {
	// Hash es el work factor de argon2id para passwords nuevos.
	Hash password.Params
	// MinPasswordLen mínimo aceptado en register y change-password.
	MinPasswordLen int
	// DefaultRole se asigna a cada registro nuevo. Vacío desactiva la
	// asignación automática.
	DefaultRole string
}

// Service implementa las operaciones del boundary.
type Service struct {
	users  repository.UserRepository
	tokens *token.Service
	engine *authz.Engine
	opts   Options
	log    *zap.Logger
}

func NewService(users repository.UserRepository, tokens *token.Service, engine *authz.Engine, opts Options) *Service {
	if opts.Hash == (password.Params{}) {
		opts.Hash = password.Default
	}
	if opts.MinPasswordLen <= 0 {
		opts.MinPasswordLen = 8
	}
	return &Service{
		users:  users,
		tokens: tokens,
		engine: engine,
		opts:   opts,
		log:    logger.Named("auth"),
	}
}

// NormalizeEmail aplica lowercase + trim. La unicidad del store se impone
// sobre este valor, nunca sobre el input crudo.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) validateRegister(email, plain string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrValidation
	}
	if len(plain) < s.opts.MinPasswordLen {
		return ErrValidation
	}
	return nil
}

// Register crea el principal, le asigna el rol por defecto y abre su
// primera sesión.
func (s *Service) Register(ctx context.Context, email, plain, name string, meta token.ClientMeta) (*Result, error) {
	email = NormalizeEmail(email)
	if err := s.validateRegister(email, plain); err != nil {
		return nil, err
	}

	hash, err := password.Hash(s.opts.Hash, plain)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, repository.CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		return nil, err // ErrDuplicateEmail pasa tal cual
	}

	if s.opts.DefaultRole != "" {
		if err := s.engine.AssignRoleByName(ctx, u.ID, s.opts.DefaultRole); err != nil {
			// cuenta creada pero sin rol; el seed debería haber creado el
			// rol por defecto antes de servir tráfico
			s.log.Warn("default role assignment failed",
				logger.UserID(u.ID.String()), logger.Role(s.opts.DefaultRole), logger.Err(err))
		}
	}

	s.log.Info("user registered", logger.UserID(u.ID.String()), logger.Email(util.MaskEmail(u.Email)))
	return s.open(ctx, u, meta)
}

// Login autentica por email y password y abre una sesión nueva.
//
// Email desconocido, password incorrecto y cuenta inactiva devuelven el
// mismo ErrInvalidCredentials; solo la suspensión se distingue, porque el
// caller ya probó que conoce las credenciales.
func (s *Service) Login(ctx context.Context, email, plain string, meta token.ClientMeta) (*Result, error) {
	email = NormalizeEmail(email)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	if !password.Verify(plain, u.PasswordHash) {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		s.log.Info("login rejected", logger.Email(util.MaskEmail(email)))
		return nil, ErrInvalidCredentials
	}

	switch u.Status {
	case repository.StatusActive:
	case repository.StatusSuspended:
		metrics.LoginAttempts.WithLabelValues("suspended").Inc()
		return nil, ErrAccountSuspended
	default:
		// inactiva: indistinguible de credenciales malas hacia afuera
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	s.log.Info("login ok", logger.UserID(u.ID.String()), logger.Email(util.MaskEmail(u.Email)))
	return s.open(ctx, u, meta)
}

// open resuelve el snapshot vigente de roles/permisos y emite el par.
func (s *Service) open(ctx context.Context, u *repository.User, meta token.ClientMeta) (*Result, error) {
	roles, perms, err := s.engine.Resolve(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, u.ID, u.Email, roles, perms, meta)
	if err != nil {
		return nil, err
	}

	p := Principal{ID: u.ID, Email: u.Email, Status: u.Status, Roles: roles}
	if u.Name != nil {
		p.Name = *u.Name
	}
	return &Result{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		Principal:    p,
	}, nil
}

// Refreshed es la respuesta de Refresh.
type Refreshed struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Refresh cambia un refresh token por un access token nuevo. Sesión
// inexistente y sesión vencida colapsan en ErrSessionNotFound: hacia afuera
// son el mismo fallo.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Refreshed, error) {
	got, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrSessionNotFound) || errors.Is(err, token.ErrSessionExpired) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &Refreshed{AccessToken: got.AccessToken, ExpiresIn: got.ExpiresIn}, nil
}

// Logout revoca la sesión del refresh token. Idempotente.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// CheckPermission verifica el access token y evalúa el permiso requerido
// contra los permisos VIGENTES del principal (no el snapshot del token, que
// puede estar viejo hasta expiry). Cualquier fallo de verificación colapsa
// en ErrUnauthenticated.
func (s *Service) CheckPermission(ctx context.Context, accessToken, required string) (*token.Claims, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if err := s.engine.Check(ctx, userID, required); err != nil {
		switch {
		case errors.Is(err, authz.ErrForbidden):
			return nil, ErrForbidden
		case errors.Is(err, authz.ErrInvalidPermission):
			return nil, ErrValidation
		}
		return nil, err
	}
	return claims, nil
}

// ChangePassword verifica el password actual, guarda el hash nuevo y revoca
// todas las sesiones del principal. Los refresh tokens emitidos antes del
// cambio dejan de servir de inmediato.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPlain, newPlain string) error {
	if len(newPlain) < s.opts.MinPasswordLen {
		return ErrValidation
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !password.Verify(oldPlain, u.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := password.Hash(s.opts.Hash, newPlain)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info("password changed", logger.UserID(userID.String()), logger.Count(n))
	return nil
}

// Suspend marca la cuenta como suspendida y revoca todas sus sesiones.
func (s *Service) Suspend(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.SetStatus(ctx, userID, repository.StatusSuspended); err != nil {
		return err
	}
	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info("account suspended", logger.UserID(userID.String()), logger.Count(n))
	return nil
}

// Reactivate vuelve la cuenta a activa. No restaura sesiones: el usuario
// tiene que loguearse de nuevo.
func (s *Service) Reactivate(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.SetStatus(ctx, userID, repository.StatusActive); err != nil {
		return err
	}
	s.log.Info("account reactivated", logger.UserID(userID.String()))
	return nil
}
