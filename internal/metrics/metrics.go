// Package metrics registra los contadores Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts por resultado: ok | invalid_credentials | suspended | error.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usersvc_login_attempts_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// TokensIssued por tipo: access | refresh.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usersvc_tokens_issued_total",
		Help: "Tokens issued by type.",
	}, []string{"type"})

	// TokenVerifications por resultado: ok | expired | malformed | bad_signature.
	TokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usersvc_token_verifications_total",
		Help: "Access token verifications by result.",
	}, []string{"result"})

	// SessionCacheHits / Misses de la capa volátil.
	SessionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usersvc_session_cache_hits_total",
		Help: "Session lookups served from the volatile layer.",
	})
	SessionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usersvc_session_cache_misses_total",
		Help: "Session lookups that fell through to the durable store.",
	})

	// PermissionChecks por resultado: authorized | forbidden | error.
	PermissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usersvc_permission_checks_total",
		Help: "Permission checks by result.",
	}, []string{"result"})

	// SessionsSwept cuenta sesiones vencidas eliminadas por el janitor.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usersvc_sessions_swept_total",
		Help: "Expired sessions removed by the background sweeper.",
	})
)
