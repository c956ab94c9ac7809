// Package http expone el API v1 sobre chi. La lógica vive en
// internal/auth y internal/authz; acá solo hay transporte.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// NewRouter arma el árbol de rutas completo.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, okResponse{OK: true})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
			r.Post("/check", h.Check)
			r.Post("/password", h.ChangePassword)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.requirePermission("roles:write"))
				r.Post("/roles", h.CreateRole)
				r.Post("/roles/{roleID}/permissions", h.AddRolePerms)
				r.Delete("/roles/{roleID}/permissions", h.RemoveRolePerms)
				r.Post("/users/{userID}/roles", h.AssignRole)
				r.Delete("/users/{userID}/roles/{roleID}", h.RevokeRole)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.requirePermission("roles:read"))
				r.Get("/roles", h.ListRoles)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.requirePermission("users:admin"))
				r.Post("/users/{userID}/suspend", h.SuspendUser)
				r.Post("/users/{userID}/reactivate", h.ReactivateUser)
			})
		})
	})

	return r
}

// Server envuelve http.Server con shutdown ordenado.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{srv: &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}}
}

// Run bloquea hasta que el contexto se cancele o el listener falle.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Named("http").Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
