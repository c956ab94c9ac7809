package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr         string `yaml:"addr"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Storage struct {
		// DSN postgres; se puede inyectar por env USERSVC_DB_DSN.
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Secret HMAC; se puede inyectar por env USERSVC_JWT_SECRET.
		Secret     string `yaml:"secret"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Session struct {
		// Techo para el TTL de entradas en la capa volátil.
		MaxCacheTTL string `yaml:"max_cache_ttl"`
		// Intervalo del barrido de sesiones vencidas.
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"session"`

	Password struct {
		MemoryKiB   uint32 `yaml:"memory_kib"`
		Time        uint32 `yaml:"time"`
		Parallelism uint8  `yaml:"parallelism"`
		MinLength   int    `yaml:"min_length"`
	} `yaml:"password"`

	Authz struct {
		// TTL del cache de permisos resueltos. Red de seguridad para
		// invalidaciones perdidas entre instancias, no el mecanismo
		// primario de consistencia.
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"authz"`

	Register struct {
		DefaultRole string `yaml:"default_role"`
	} `yaml:"register"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "usersvc:"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "360h" // 15d
	}
	if c.Session.MaxCacheTTL == "" {
		c.Session.MaxCacheTTL = "360h"
	}
	if c.Session.SweepInterval == "" {
		c.Session.SweepInterval = "1h"
	}
	if c.Password.MemoryKiB == 0 {
		c.Password.MemoryKiB = 64 * 1024
	}
	if c.Password.Time == 0 {
		c.Password.Time = 3
	}
	if c.Password.Parallelism == 0 {
		c.Password.Parallelism = 1
	}
	if c.Password.MinLength == 0 {
		c.Password.MinLength = 8
	}
	if c.Authz.CacheTTL == "" {
		c.Authz.CacheTTL = "6h"
	}
	if c.Register.DefaultRole == "" {
		c.Register.DefaultRole = "user"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}

	// env overrides para secretos (no van en YAML en prod)
	if v := os.Getenv("USERSVC_DB_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("USERSVC_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("USERSVC_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}

	return &c, nil
}

// MustDuration parsea una duración de config. Las duraciones ya pasaron por
// Validate, así que un parse error acá es un bug de programación.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: bad duration %q: %v", s, err))
	}
	return d
}

// Validate chequea los campos obligatorios y el formato de las duraciones.
func (c *Config) Validate() error {
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required (or USERSVC_DB_DSN)")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (or USERSVC_JWT_SECRET)")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 bytes")
	}
	for name, v := range map[string]string{
		"server.read_timeout":    c.Server.ReadTimeout,
		"server.write_timeout":   c.Server.WriteTimeout,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
		"jwt.access_ttl":         c.JWT.AccessTTL,
		"jwt.refresh_ttl":        c.JWT.RefreshTTL,
		"session.max_cache_ttl":  c.Session.MaxCacheTTL,
		"session.sweep_interval": c.Session.SweepInterval,
		"authz.cache_ttl":        c.Authz.CacheTTL,
		"rate.login.window":      c.Rate.Login.Window,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
