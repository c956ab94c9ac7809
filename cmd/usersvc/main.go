package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/authz"
	"github.com/dropDatabas3/usersvc/internal/bootstrap"
	cachepkg "github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/config"
	httpapi "github.com/dropDatabas3/usersvc/internal/http"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rate"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	"github.com/dropDatabas3/usersvc/internal/session"
	"github.com/dropDatabas3/usersvc/internal/store/pg"
	"github.com/dropDatabas3/usersvc/internal/token"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "usersvc",
		Short:         "Servicio de identidad: auth, sesiones y RBAC",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env es opcional; en prod los secretos vienen del entorno
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "ruta del archivo de configuración")

	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "usersvc"})
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Named("main")

	store, err := pg.New(ctx, pg.Config{DSN: cfg.Storage.DSN, MaxConns: cfg.Storage.MaxConns})
	if err != nil {
		return err
	}
	defer store.Close()

	volatile, err := cachepkg.New(cachepkg.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.MustDuration(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		return err
	}
	defer volatile.Close()

	pool := store.Pool()
	users := pg.NewUserRepo(pool)
	rbac := pg.NewRBACRepo(pool)

	sessions := session.New(pg.NewSessionRepo(pool), volatile, config.MustDuration(cfg.Session.MaxCacheTTL))
	engine := authz.NewEngine(rbac, config.MustDuration(cfg.Authz.CacheTTL))

	issuer := token.NewIssuer(cfg.JWT.Issuer, []byte(cfg.JWT.Secret), config.MustDuration(cfg.JWT.AccessTTL))
	tokens := token.NewService(issuer, sessions, users, engine, config.MustDuration(cfg.JWT.RefreshTTL))

	svc := auth.NewService(users, tokens, engine, auth.Options{
		Hash: password.Params{
			Memory:      cfg.Password.MemoryKiB,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			KeyLen:      32,
		},
		MinPasswordLen: cfg.Password.MinLength,
		DefaultRole:    cfg.Register.DefaultRole,
	})

	handlers := &httpapi.Handlers{Auth: svc, Engine: engine, Limiter: buildLimiter(cfg)}

	srv := httpapi.NewServer(
		cfg.Server.Addr,
		httpapi.NewRouter(handlers),
		config.MustDuration(cfg.Server.ReadTimeout),
		config.MustDuration(cfg.Server.WriteTimeout),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", logger.Key(cfg.Server.Addr))
		return srv.Run(ctx)
	})

	// janitor de sesiones vencidas
	g.Go(func() error {
		interval := config.MustDuration(cfg.Session.SweepInterval)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := sessions.SweepExpired(sweepCtx); err != nil {
					log.Warn("session sweep failed", logger.Err(err))
				}
				cancel()
			}
		}
	})

	return g.Wait()
}

// buildLimiter arma el limiter de login. Con redis el límite es compartido
// entre instancias; sin redis cae a un token bucket in-process.
func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	limit := cfg.Rate.Login.Limit
	window := config.MustDuration(cfg.Rate.Login.Window)

	if cfg.Cache.Kind == "redis" && cfg.Cache.Redis.Addr != "" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rl:", limit, window)
	}
	return rate.NewLocalLimiter(limit, window)
}

func migrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de esquema",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if down {
				m, err := pg.NewMigrator(cfg.Storage.DSN)
				if err != nil {
					return err
				}
				defer m.Close()
				if err := m.Steps(-1); err != nil {
					return err
				}
				logger.Named("migrate").Info("rolled back one step")
				return nil
			}

			if err := pg.RunMigrations(cfg.Storage.DSN); err != nil {
				return err
			}
			logger.Named("migrate").Info("migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revierte la última migración en vez de aplicar")
	return cmd
}

func seedCmd() *cobra.Command {
	var adminEmail, adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Siembra roles por defecto y la cuenta admin inicial",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := pg.New(ctx, pg.Config{DSN: cfg.Storage.DSN, MaxConns: cfg.Storage.MaxConns})
			if err != nil {
				return err
			}
			defer store.Close()

			if adminPassword == "" {
				adminPassword = os.Getenv("USERSVC_ADMIN_PASSWORD")
			}

			engine := authz.NewEngine(pg.NewRBACRepo(store.Pool()), config.MustDuration(cfg.Authz.CacheTTL))
			return bootstrap.EnsureDefaults(ctx, engine, pg.NewUserRepo(store.Pool()), bootstrap.Defaults{
				DefaultRole:   cfg.Register.DefaultRole,
				AdminEmail:    adminEmail,
				AdminPassword: adminPassword,
				Hash: password.Params{
					Memory:      cfg.Password.MemoryKiB,
					Time:        cfg.Password.Time,
					Parallelism: cfg.Password.Parallelism,
					KeyLen:      32,
				},
			})
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "email de la cuenta admin inicial (opcional)")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password de la cuenta admin (o USERSVC_ADMIN_PASSWORD)")
	return cmd
}
