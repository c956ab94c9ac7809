// Package authz implementa el motor de autorización RBAC.
//
// Un permiso es un par "resource:action". "*" es comodín en cualquiera de
// las dos posiciones; "*:*" concede todo. El modelo es allow-only: no
// existe un tipo de permiso deny, el primer match autoriza.
package authz

import (
	"errors"
	"strings"
)

// Wildcard es el comodín de resource o action.
const Wildcard = "*"

// ErrInvalidPermission: el string no tiene forma "resource:action".
var ErrInvalidPermission = errors.New("invalid permission")

// Permission es un par resource:action parseado.
type Permission struct {
	Resource string
	Action   string
}

// Parse valida y descompone un string "resource:action".
func Parse(s string) (Permission, error) {
	res, act, ok := strings.Cut(s, ":")
	if !ok || res == "" || act == "" || strings.Contains(act, ":") {
		return Permission{}, ErrInvalidPermission
	}
	return Permission{Resource: res, Action: act}, nil
}

func (p Permission) String() string { return p.Resource + ":" + p.Action }

// IsWildcard reporta si alguna posición es comodín.
func (p Permission) IsWildcard() bool {
	return p.Resource == Wildcard || p.Action == Wildcard
}

// Grants reporta si p concede el permiso concreto required.
// Orden de match: par exacto, comodín de resource, comodín de action,
// comodín total.
func (p Permission) Grants(required Permission) bool {
	if p.Resource != Wildcard && p.Resource != required.Resource {
		return false
	}
	if p.Action != Wildcard && p.Action != required.Action {
		return false
	}
	return true
}

// Allowed testea required contra cada permiso tenido; el primer match
// autoriza. Permisos mal formados en held se ignoran.
func Allowed(held []string, required Permission) bool {
	for _, h := range held {
		p, err := Parse(h)
		if err != nil {
			continue
		}
		if p.Grants(required) {
			return true
		}
	}
	return false
}
