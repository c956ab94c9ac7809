// Package rate limita intentos de login por clave (IP o email).
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*LocalLimiter)(nil)
)

// RedisLimiter: fixed window sencillo (INCR + EXPIRE). Compartido entre
// instancias; es el limiter para deployments multi-nodo.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return Result{}, err
	}

	// set expiry on first hit
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
		ttl = l.Client.TTL(ctx, redisKey)
	}

	hits := incr.Val()
	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl.Val(),
	}
	if !allowed {
		// Retry after: resto de la ventana
		res.RetryAfter = ttl.Val()
		if res.RetryAfter < 0 {
			res.RetryAfter = time.Duration(math.Ceil(l.Window.Seconds())) * time.Second
		}
	}
	return res, nil
}

// LocalLimiter: token bucket in-process por clave. Fallback para
// deployments de una sola instancia sin redis. Los buckets viejos se
// purgan de forma perezosa.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	limit   xrate.Limit
	burst   int
	maxIdle time.Duration
}

type localBucket struct {
	lim      *xrate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter reparte max tokens por window, con burst igual a max.
func NewLocalLimiter(max int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		limit:   xrate.Every(window / time.Duration(max)),
		burst:   max,
		maxIdle: 3 * window,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) > 10_000 {
			l.purgeLocked(now)
		}
		b = &localBucket{lim: xrate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if !b.lim.Allow() {
		res := Result{Allowed: false}
		if d := b.lim.Reserve(); d.OK() {
			res.RetryAfter = d.Delay()
			d.Cancel()
		}
		return res, nil
	}
	return Result{
		Allowed:   true,
		Remaining: int64(b.lim.Tokens()),
	}, nil
}

func (l *LocalLimiter) purgeLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.maxIdle {
			delete(l.buckets, k)
		}
	}
}
