package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

// rbacRepo implementa repository.RBACRepository.
type rbacRepo struct {
	pool *pgxpool.Pool
}

var _ repository.RBACRepository = (*rbacRepo)(nil)

// NewRBACRepo crea el repositorio de roles/permisos/asignaciones.
func NewRBACRepo(pool *pgxpool.Pool) repository.RBACRepository {
	return &rbacRepo{pool: pool}
}

// cleanPerms normaliza y de-duplica una lista de permisos.
func cleanPerms(perms []string) []string {
	clean := make([]string, 0, len(perms))
	seen := map[string]struct{}{}
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		clean = append(clean, p)
	}
	return clean
}

// ---------- LECTURAS ----------

func (r *rbacRepo) GetRoleByID(ctx context.Context, id uuid.UUID) (*repository.Role, error) {
	const q = `SELECT id, name, created_at FROM role WHERE id = $1`
	var role repository.Role
	if err := r.pool.QueryRow(ctx, q, id).Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapErr(err)
	}
	perms, err := r.rolePerms(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (r *rbacRepo) GetRoleByName(ctx context.Context, name string) (*repository.Role, error) {
	const q = `SELECT id, name, created_at FROM role WHERE name = $1`
	var role repository.Role
	if err := r.pool.QueryRow(ctx, q, name).Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapErr(err)
	}
	perms, err := r.rolePerms(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (r *rbacRepo) rolePerms(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	const q = `SELECT perm FROM role_permission WHERE role_id = $1 ORDER BY perm`
	rows, err := r.pool.Query(ctx, q, roleID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *rbacRepo) ListRoles(ctx context.Context) ([]repository.Role, error) {
	const q = `
SELECT r.id, r.name, r.created_at, COALESCE(array_agg(rp.perm ORDER BY rp.perm) FILTER (WHERE rp.perm IS NOT NULL), '{}')
FROM role r
LEFT JOIN role_permission rp ON rp.role_id = r.id
GROUP BY r.id, r.name, r.created_at
ORDER BY r.name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Role
	for rows.Next() {
		var role repository.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.Permissions); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// GetUserRoles: nombres de los roles asignados al usuario.
func (r *rbacRepo) GetUserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const q = `
SELECT r.name
FROM user_role ur
JOIN role r ON r.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY r.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetUserPermissions: permisos efectivos derivados de los roles del usuario.
func (r *rbacRepo) GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const q = `
SELECT DISTINCT rp.perm
FROM user_role ur
JOIN role_permission rp ON rp.role_id = ur.role_id
WHERE ur.user_id = $1
ORDER BY rp.perm`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------- ESCRITURAS ----------

func (r *rbacRepo) CreateRole(ctx context.Context, name string, perms []string) (*repository.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, repository.ErrInvalid
	}
	var role repository.Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO role (name) VALUES ($1) RETURNING id, name, created_at`, name,
	).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create role: %w", mapErr(err))
	}
	if err := r.AddRolePerms(ctx, role.ID, perms); err != nil {
		return nil, err
	}
	role.Permissions = cleanPerms(perms)
	return &role, nil
}

func (r *rbacRepo) AddRolePerms(ctx context.Context, roleID uuid.UUID, perms []string) error {
	clean := cleanPerms(perms)
	if len(clean) == 0 {
		return nil
	}
	// El FK contra role mapea a ErrNotFound si el rol no existe.
	b := &pgx.Batch{}
	for _, p := range clean {
		b.Queue(`INSERT INTO role_permission (role_id, perm) VALUES ($1,$2) ON CONFLICT DO NOTHING`, roleID, p)
	}
	br := r.pool.SendBatch(ctx, b)
	defer br.Close()
	for range clean {
		if _, err := br.Exec(); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r *rbacRepo) RemoveRolePerms(ctx context.Context, roleID uuid.UUID, perms []string) error {
	clean := cleanPerms(perms)
	if len(clean) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permission WHERE role_id = $1 AND perm = ANY($2)`, roleID, clean)
	return mapErr(err)
}

// AssignRole es idempotente via ON CONFLICT DO NOTHING; usuario o rol
// inexistente cae por FK y mapea a ErrNotFound.
func (r *rbacRepo) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_role (user_id, role_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, userID, roleID)
	return mapErr(err)
}

// RevokeRole: quitar un rol no asignado es no-op; un rol inexistente sí es error.
func (r *rbacRepo) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM role WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_role WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return mapErr(err)
}
