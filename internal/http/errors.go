package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON: decodifica JSON de forma tolerante (NO falla por campos
// desconocidos). Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido")
		return false
	}
	return true
}

// writeServiceError traduce la taxonomía del boundary a HTTP. Nunca expone
// detalle interno en fallos inesperados.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "input inválido")

	case errors.Is(err, repository.ErrDuplicateEmail):
		WriteError(w, http.StatusConflict, "duplicate_email", "el email ya está registrado")

	case errors.Is(err, auth.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "usuario o password inválidos")

	case errors.Is(err, auth.ErrAccountSuspended):
		WriteError(w, http.StatusLocked, "account_suspended", "cuenta suspendida")

	case errors.Is(err, auth.ErrSessionNotFound):
		WriteError(w, http.StatusUnauthorized, "session_not_found", "sesión inexistente o vencida")

	case errors.Is(err, auth.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthenticated", "token inválido")

	case errors.Is(err, auth.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "permiso insuficiente")

	case errors.Is(err, repository.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "recurso inexistente")

	case errors.Is(err, repository.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "el recurso ya existe")

	case errors.Is(err, repository.ErrUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "store no disponible, reintentar")

	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
