package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/authz"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rate"
	"github.com/dropDatabas3/usersvc/internal/token"
)

// Handlers agrupa los endpoints del API v1 con sus dependencias.
type Handlers struct {
	Auth   *auth.Service
	Engine *authz.Engine
	// Limiter limita intentos de login por IP. Nil desactiva el límite.
	Limiter rate.Limiter
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func clientIP(r *http.Request) string {
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientMeta(r *http.Request) token.ClientMeta {
	return token.ClientMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
}

// Register maneja POST /v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	res, err := h.Auth.Register(r.Context(), req.Email, req.Password, req.Name, clientMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusCreated, res)
}

// Login maneja POST /v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.Limiter != nil {
		res, err := h.Limiter.Allow(r.Context(), "login:"+ip)
		if err != nil {
			// limiter caído no bloquea logins
			logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
		} else if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "demasiados intentos, reintentar más tarde")
			return
		}
	}

	var req loginRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Email, req.Password, clientMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, res)
}

// Refresh maneja POST /v1/auth/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "refresh_token es obligatorio")
		return
	}

	res, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, res)
}

// Logout maneja POST /v1/auth/logout. Idempotente: siempre 200.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	if err := h.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// Check maneja POST /v1/auth/check: evalúa un permiso contra el access
// token del header.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	claims, err := h.Auth.CheckPermission(r.Context(), bearerToken(r), req.Permission)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, checkResponse{Authorized: true, UserID: claims.UserID})
}

// ChangePassword maneja POST /v1/auth/password. El principal sale del
// access token, no del body.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Auth.CheckPermission(r.Context(), bearerToken(r), "profile:write")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		writeServiceError(w, auth.ErrUnauthenticated)
		return
	}

	var req changePasswordRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// ---------- admin ----------

// CreateRole maneja POST /v1/admin/roles
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "name es obligatorio")
		return
	}

	role, err := h.Engine.CreateRole(r.Context(), req.Name, req.Permissions)
	if err != nil {
		if err == authz.ErrInvalidPermission {
			WriteError(w, http.StatusBadRequest, "validation_error", "permiso mal formado")
			return
		}
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, role)
}

// ListRoles maneja GET /v1/admin/roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Engine.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, roles)
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", param+" inválido")
		return uuid.Nil, false
	}
	return id, true
}

// AddRolePerms maneja POST /v1/admin/roles/{roleID}/permissions
func (h *Handlers) AddRolePerms(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(w, r, "roleID")
	if !ok {
		return
	}
	var req rolePermsRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	if err := h.Engine.AddRolePerms(r.Context(), roleID, req.Permissions); err != nil {
		if err == authz.ErrInvalidPermission {
			WriteError(w, http.StatusBadRequest, "validation_error", "permiso mal formado")
			return
		}
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// RemoveRolePerms maneja DELETE /v1/admin/roles/{roleID}/permissions
func (h *Handlers) RemoveRolePerms(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(w, r, "roleID")
	if !ok {
		return
	}
	var req rolePermsRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	if err := h.Engine.RemoveRolePerms(r.Context(), roleID, req.Permissions); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// AssignRole maneja POST /v1/admin/users/{userID}/roles
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var req assignRoleRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "role es obligatorio")
		return
	}

	if err := h.Engine.AssignRoleByName(r.Context(), userID, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// RevokeRole maneja DELETE /v1/admin/users/{userID}/roles/{roleID}
func (h *Handlers) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := pathUUID(w, r, "roleID")
	if !ok {
		return
	}

	if err := h.Engine.RevokeRole(r.Context(), userID, roleID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// SuspendUser maneja POST /v1/admin/users/{userID}/suspend
func (h *Handlers) SuspendUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.Auth.Suspend(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// ReactivateUser maneja POST /v1/admin/users/{userID}/reactivate
func (h *Handlers) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.Auth.Reactivate(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}
