// Package pg implementa los repositorios del dominio sobre PostgreSQL
// usando pgxpool. Es la copia autoritativa: la capa volátil (internal/cache)
// nunca decide por encima de lo que diga esta.
package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

type Config struct {
	DSN      string
	MaxConns int32
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.Named("store.pg")

	// Arranque no bloqueante: ping best-effort, la app puede levantar
	// aunque la DB esté momentáneamente caída.
	if err := pool.Ping(ctx); err != nil {
		log.Warn("startup ping failed", logger.Err(err))
	} else {
		log.Info("pool ready", zap.Int32("max_conns", pcfg.MaxConns))
	}

	return &Store{pool: pool, log: log}, nil
}

// Pool expone el pool interno (migraciones, health checks).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// mapErr traduce errores de infraestructura al vocabulario del dominio.
// Un deadline vencido contra la DB es ErrUnavailable: el caller decide si
// reintenta la operación completa, acá no se reintenta nada.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return repository.ErrUnavailable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "23503": // foreign_key_violation
			return repository.ErrNotFound
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return repository.ErrUnavailable
	}
	return err
}
