package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	tokens "github.com/dropDatabas3/usersvc/internal/security/token"
	"github.com/dropDatabas3/usersvc/internal/session"
)

var (
	// ErrSessionNotFound: el refresh token no corresponde a ninguna sesión
	// viva (nunca existió o fue revocada).
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired: la sesión existe pero venció.
	ErrSessionExpired = errors.New("session expired")
)

// Resolver re-resuelve el snapshot vigente de roles/permisos de un
// principal. Lo implementa authz.Engine.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (roles, perms []string, err error)
}

// Pair es el resultado de issuePair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // segundos de vida del access token
}

// Refreshed es el resultado de refresh: solo un access token nuevo, el
// refresh token no rota.
type Refreshed struct {
	AccessToken string
	ExpiresIn   int64
	UserID      uuid.UUID
}

// ClientMeta es metadata del cliente que abre la sesión.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Service orquesta emisión, refresh y revocación del par de tokens.
type Service struct {
	issuer     *Issuer
	sessions   *session.Cache
	users      repository.UserRepository
	resolver   Resolver
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewService(issuer *Issuer, sessions *session.Cache, users repository.UserRepository, resolver Resolver, refreshTTL time.Duration) *Service {
	if refreshTTL <= 0 {
		refreshTTL = 15 * 24 * time.Hour
	}
	return &Service{
		issuer:     issuer,
		sessions:   sessions,
		users:      users,
		resolver:   resolver,
		refreshTTL: refreshTTL,
		log:        logger.Named("token"),
		now:        time.Now,
	}
}

// IssuePair emite access + refresh y crea la sesión asociada 1:1 al
// refresh token.
func (s *Service) IssuePair(ctx context.Context, userID uuid.UUID, email string, roles, perms []string, meta ClientMeta) (*Pair, error) {
	access, _, err := s.issuer.IssueAccess(userID.String(), email, roles, perms)
	if err != nil {
		return nil, err
	}

	refresh, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	_, err = s.sessions.Put(ctx, repository.CreateSessionInput{
		UserID:    userID,
		TokenHash: tokens.SHA256Base64URL(refresh),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(s.refreshTTL),
	})
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues("refresh").Inc()

	s.log.Debug("pair issued", logger.UserID(userID.String()))
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		// derivado del TTL configurado, no de exp menos un now re-leído:
		// esa resta queda fraccionalmente corta y trunca a TTL-1
		ExpiresIn: int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// VerifyAccess valida un access token sin tocar el store (stateless).
func (s *Service) VerifyAccess(tokenStr string) (*Claims, error) {
	return s.issuer.Verify(tokenStr)
}

// Refresh cambia un refresh token válido por un access token nuevo.
// Re-resuelve roles/permisos vigentes (no el snapshot embebido en el token
// vencido) para reflejar cambios de rol desde la emisión. No rota el
// refresh token; actualiza last_used_at.
//
// Refreshes concurrentes sobre el mismo token son idempotentes: cada uno
// retorna su propio access token válido, no se serializan.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Refreshed, error) {
	hash := tokens.SHA256Base64URL(refreshToken)

	sess, err := s.sessions.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	now := s.now().UTC()
	if !now.Before(sess.ExpiresAt) {
		// vencida: sacarla de ambas capas y reportar
		_ = s.sessions.Invalidate(ctx, hash)
		return nil, ErrSessionExpired
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	roles, perms, err := s.resolver.Resolve(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	access, _, err := s.issuer.IssueAccess(sess.UserID.String(), u.Email, roles, perms)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Touch(ctx, sess, now); err != nil {
		// el access ya salió; perder un last_used_at no es fatal
		s.log.Warn("session touch failed", logger.Err(err))
	}

	return &Refreshed{
		AccessToken: access,
		ExpiresIn:   int64(s.issuer.AccessTTL().Seconds()),
		UserID:      sess.UserID,
	}, nil
}

// Revoke elimina la sesión del refresh token. Idempotente: revocar un
// token ya revocado es no-op.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	return s.sessions.Invalidate(ctx, tokens.SHA256Base64URL(refreshToken))
}

// RevokeAll elimina todas las sesiones del principal (logout-all,
// cambio de password, suspensión).
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.sessions.InvalidateAll(ctx, userID)
}
