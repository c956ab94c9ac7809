// Package session implementa la capa de lookup rápido de sesiones.
//
// El store durable (repository.SessionRepository) es la autoridad; la capa
// volátil (internal/cache) es un espejo write-through que se invalida en
// cada escritura. Si la capa volátil no responde, todo degrada en silencio
// a acceso directo al store durable: más latencia, nunca error.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

const keyPrefix = "sess:"

// Cache combina el repositorio durable de sesiones con la capa volátil.
type Cache struct {
	repo     repository.SessionRepository
	volatile cache.Client
	maxTTL   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// New crea la capa de sesiones. maxTTL es el techo para el TTL de las
// entradas volátiles (el TTL real es el lifetime restante de la sesión).
func New(repo repository.SessionRepository, volatile cache.Client, maxTTL time.Duration) *Cache {
	return &Cache{
		repo:     repo,
		volatile: volatile,
		maxTTL:   maxTTL,
		log:      logger.Named("session"),
		now:      time.Now,
	}
}

func (c *Cache) key(tokenHash string) string { return keyPrefix + tokenHash }

// Get busca una sesión por token hash: primero la capa volátil, después el
// store durable. En hit durable repuebla la capa volátil.
// Retorna repository.ErrNotFound si la sesión no existe.
func (c *Cache) Get(ctx context.Context, tokenHash string) (*repository.Session, error) {
	if b, err := c.volatile.Get(ctx, c.key(tokenHash)); err == nil {
		var s repository.Session
		if jsonErr := json.Unmarshal(b, &s); jsonErr == nil {
			metrics.SessionCacheHits.Inc()
			return &s, nil
		}
		// entrada corrupta: descartarla y seguir al durable
		_ = c.volatile.Delete(ctx, c.key(tokenHash))
	}
	metrics.SessionCacheMisses.Inc()

	s, err := c.repo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, s)
	return s, nil
}

// Put escribe la sesión: durable primero (autoridad), después volátil.
// Un fallo de la capa volátil no hace fallar la operación.
func (c *Cache) Put(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s, err := c.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, s)
	return s, nil
}

// Touch actualiza last_used_at en el durable y refresca la copia volátil.
func (c *Cache) Touch(ctx context.Context, s *repository.Session, at time.Time) error {
	if err := c.repo.Touch(ctx, s.TokenHash, at); err != nil {
		return err
	}
	s.LastUsedAt = at
	c.populate(ctx, s)
	return nil
}

// Invalidate elimina la sesión de ambas capas. La invalidación volátil es
// un paso síncrono, no best-effort: logout/cambio de password/suspensión
// dependen de esto para cortar refresh tokens ya emitidos.
func (c *Cache) Invalidate(ctx context.Context, tokenHash string) error {
	if err := c.volatile.Delete(ctx, c.key(tokenHash)); err != nil {
		c.log.Warn("volatile delete failed", logger.Err(err))
	}
	return c.repo.Delete(ctx, tokenHash)
}

// InvalidateAll elimina todas las sesiones del usuario de ambas capas.
func (c *Cache) InvalidateAll(ctx context.Context, userID uuid.UUID) (int, error) {
	sessions, err := c.repo.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, s := range sessions {
		if err := c.volatile.Delete(ctx, c.key(s.TokenHash)); err != nil {
			c.log.Warn("volatile delete failed", logger.Err(err))
		}
	}
	return c.repo.DeleteByUser(ctx, userID)
}

// SweepExpired elimina sesiones vencidas del durable. Las copias volátiles
// vencen solas por TTL.
func (c *Cache) SweepExpired(ctx context.Context) (int, error) {
	n, err := c.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsSwept.Add(float64(n))
		c.log.Info("expired sessions swept", logger.Count(n))
	}
	return n, nil
}

// populate escribe la copia volátil con TTL = lifetime restante, con techo
// en maxTTL. Sesiones ya vencidas no se cachean.
func (c *Cache) populate(ctx context.Context, s *repository.Session) {
	ttl := s.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	if c.maxTTL > 0 && ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.volatile.Set(ctx, c.key(s.TokenHash), b, ttl); err != nil {
		c.log.Warn("volatile set failed", logger.Err(err))
	}
}
