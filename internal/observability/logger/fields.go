package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar HTTP.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// Campos estándar de negocio.

// UserID crea un campo para el ID del principal.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Email crea un campo para el email. Pasar siempre el valor enmascarado.
func Email(v string) zap.Field { return zap.String("email", v) }

// SessionID crea un campo para el ID de la sesión.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }

// Role crea un campo para un nombre de rol.
func Role(v string) zap.Field { return zap.String("role", v) }

// Permission crea un campo para un par resource:action.
func Permission(v string) zap.Field { return zap.String("permission", v) }

// Campos estándar de sistema.

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Count crea un campo para un conteo.
func Count(v int) zap.Field { return zap.Int("count", v) }

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field { return zap.String("key", v) }
