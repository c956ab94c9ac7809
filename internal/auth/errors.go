package auth

import "errors"

// Taxonomía de errores del boundary. Los fallos de verificación de token
// (vencido, malformado, firma inválida) se colapsan todos en
// ErrUnauthenticated para no filtrar cuál chequeo falló.
var (
	// ErrValidation: input malformado. Culpa del caller, nunca se reintenta.
	ErrValidation = errors.New("validation error")

	// ErrInvalidCredentials: email desconocido, password incorrecto o cuenta
	// inactiva. Un solo error para las tres causas, a propósito.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountSuspended: la cuenta existe y el password es correcto, pero
	// un admin la suspendió.
	ErrAccountSuspended = errors.New("account suspended")

	// ErrSessionNotFound: el refresh token no corresponde a una sesión viva.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnauthenticated: el access token no valida, por el motivo que sea.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden: autenticado pero sin el permiso requerido.
	ErrForbidden = errors.New("forbidden")
)
