package repository

import "errors"

var (
	// ErrNotFound indica que el registro no existe.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail indica que el email ya está registrado.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrConflict indica una violación de unicidad distinta al email.
	ErrConflict = errors.New("conflict")

	// ErrInvalid indica input inválido a nivel repositorio.
	ErrInvalid = errors.New("invalid")

	// ErrUnavailable indica fallo de infraestructura en el store durable.
	// El caller puede reintentar la operación completa; el repositorio no
	// reintenta por su cuenta.
	ErrUnavailable = errors.New("store unavailable")
)
