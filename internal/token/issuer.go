// Package token emite y verifica el par access/refresh.
//
// El access token es un JWT HS256 auto-contenido: la verificación es
// computación pura, sin I/O ni locks, para mantener el hot path de
// autorización libre de contención. El refresh token es opaco y revocable;
// su estado vive en internal/session.
package token

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/usersvc/internal/metrics"
)

var (
	// ErrExpired: el token está vencido (exactamente en el límite cuenta
	// como vencido).
	ErrExpired = errors.New("token expired")

	// ErrMalformed: el token no es un JWT bien formado o le faltan claims.
	ErrMalformed = errors.New("token malformed")

	// ErrBadSignature: la firma no valida contra el secret configurado.
	ErrBadSignature = errors.New("token signature invalid")
)

// Claims son los claims verificados de un access token.
type Claims struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// accessClaims es la forma on-wire: claims estándar + arrays planos.
type accessClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Perms []string `json:"perms,omitempty"`
	jwtv5.RegisteredClaims
}

// Issuer firma y verifica access tokens con un secret HMAC compartido.
type Issuer struct {
	iss       string
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewIssuer(iss string, secret []byte, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &Issuer{
		iss:       iss,
		secret:    secret,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL retorna el TTL configurado del access token.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccess emite un access token firmado con el snapshot de roles y
// permisos del momento de emisión. El snapshot queda congelado hasta expiry.
func (i *Issuer) IssueAccess(userID, email string, roles, perms []string) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.accessTTL)

	claims := accessClaims{
		Email: email,
		Roles: roles,
		Perms: perms,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.iss,
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	metrics.TokensIssued.WithLabelValues("access").Inc()
	return signed, exp, nil
}

// Verify valida firma, algoritmo y expiry. No consulta el session store:
// es el fast path stateless.
//
// La validación de claims es manual (WithoutClaimsValidation) para imponer
// el límite exacto: un token con exp == now ya está vencido.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwtv5.ParseWithClaims(tokenStr, &accessClaims{}, func(t *jwtv5.Token) (any, error) {
		return i.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}), jwtv5.WithoutClaimsValidation())
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
			metrics.TokenVerifications.WithLabelValues("bad_signature").Inc()
			return nil, ErrBadSignature
		default:
			metrics.TokenVerifications.WithLabelValues("malformed").Inc()
			return nil, ErrMalformed
		}
	}

	ac, ok := parsed.Claims.(*accessClaims)
	if !ok || ac.Subject == "" || ac.ExpiresAt == nil || ac.IssuedAt == nil {
		metrics.TokenVerifications.WithLabelValues("malformed").Inc()
		return nil, ErrMalformed
	}
	if i.iss != "" && ac.Issuer != i.iss {
		metrics.TokenVerifications.WithLabelValues("malformed").Inc()
		return nil, ErrMalformed
	}
	if !i.now().Before(ac.ExpiresAt.Time) {
		metrics.TokenVerifications.WithLabelValues("expired").Inc()
		return nil, ErrExpired
	}

	metrics.TokenVerifications.WithLabelValues("ok").Inc()
	return &Claims{
		UserID:      ac.Subject,
		Email:       ac.Email,
		Roles:       ac.Roles,
		Permissions: ac.Perms,
		IssuedAt:    ac.IssuedAt.Time,
		ExpiresAt:   ac.ExpiresAt.Time,
	}, nil
}
