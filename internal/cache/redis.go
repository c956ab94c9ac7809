package cache

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Redis es el backend distribuido. Las invalidaciones son visibles para
// todas las instancias del servicio.
type Redis struct {
	c      *rdb.Client
	prefix string
}

func NewRedis(cfg Config) (*Redis, error) {
	client := rdb.NewClient(&rdb.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{c: client, prefix: cfg.Prefix}, nil
}

// NewRedisFromClient envuelve un cliente existente (tests, limiter compartido).
func NewRedisFromClient(client *rdb.Client, prefix string) *Redis {
	return &Redis{c: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.c.Close() }

var _ Client = (*Redis)(nil)
