package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// RequestLogger genera un request id, inyecta un logger anotado en el
// contexto y loguea cada request al terminar.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)

		log := logger.L().With(logger.RequestID(rid))
		ctx := logger.ToContext(r.Context(), log)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.Info("request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Duration(time.Since(start)),
			logger.ClientIP(clientIP(r)),
		)
	})
}

// requirePermission corta la cadena si el access token del header no
// autoriza el permiso dado. Protege las rutas admin.
func (h *Handlers) requirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := h.Auth.CheckPermission(r.Context(), bearerToken(r), perm); err != nil {
				writeServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
