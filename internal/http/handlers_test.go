package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/authz"
	"github.com/dropDatabas3/usersvc/internal/bootstrap"
	cachepkg "github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/rate"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	"github.com/dropDatabas3/usersvc/internal/session"
	"github.com/dropDatabas3/usersvc/internal/token"
)

// fakes mínimos en memoria para armar el stack completo detrás del router

type memUserRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*repository.User
}

func (f *memUserRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == in.Email {
			return nil, repository.ErrDuplicateEmail
		}
	}
	u := &repository.User{ID: uuid.New(), Email: in.Email, PasswordHash: in.PasswordHash, Status: repository.StatusActive}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *memUserRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *memUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (f *memUserRepo) SetStatus(_ context.Context, id uuid.UUID, status repository.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = status
	return nil
}

type memSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*repository.Session
}

func (f *memSessionRepo) Create(_ context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	s := &repository.Session{ID: uuid.New(), UserID: in.UserID, TokenHash: in.TokenHash, CreatedAt: now, LastUsedAt: now, ExpiresAt: in.ExpiresAt}
	f.byHash[in.TokenHash] = s
	cp := *s
	return &cp, nil
}

func (f *memSessionRepo) GetByTokenHash(_ context.Context, hash string) (*repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *memSessionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Session
	for _, s := range f.byHash {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *memSessionRepo) Touch(_ context.Context, hash string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byHash[hash]; ok {
		s.LastUsedAt = at
	}
	return nil
}

func (f *memSessionRepo) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byHash, hash)
	return nil
}

func (f *memSessionRepo) DeleteByUser(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for h, s := range f.byHash {
		if s.UserID == userID {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *memSessionRepo) DeleteExpired(_ context.Context) (int, error) { return 0, nil }

type memRBACRepo struct {
	mu          sync.Mutex
	roles       map[uuid.UUID]*repository.Role
	assignments map[uuid.UUID][]uuid.UUID
}

func (f *memRBACRepo) CreateRole(_ context.Context, name string, perms []string) (*repository.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return nil, repository.ErrConflict
		}
	}
	r := &repository.Role{ID: uuid.New(), Name: name, Permissions: append([]string{}, perms...)}
	f.roles[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *memRBACRepo) GetRoleByID(_ context.Context, id uuid.UUID) (*repository.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *memRBACRepo) GetRoleByName(_ context.Context, name string) (*repository.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *memRBACRepo) ListRoles(_ context.Context) ([]repository.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Role
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *memRBACRepo) AddRolePerms(_ context.Context, roleID uuid.UUID, perms []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok {
		return repository.ErrNotFound
	}
	r.Permissions = append(r.Permissions, perms...)
	return nil
}

func (f *memRBACRepo) RemoveRolePerms(context.Context, uuid.UUID, []string) error { return nil }

func (f *memRBACRepo) AssignRole(_ context.Context, userID, roleID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[roleID]; !ok {
		return repository.ErrNotFound
	}
	for _, id := range f.assignments[userID] {
		if id == roleID {
			return nil
		}
	}
	f.assignments[userID] = append(f.assignments[userID], roleID)
	return nil
}

func (f *memRBACRepo) RevokeRole(_ context.Context, userID, roleID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[roleID]; !ok {
		return repository.ErrNotFound
	}
	var keep []uuid.UUID
	for _, id := range f.assignments[userID] {
		if id != roleID {
			keep = append(keep, id)
		}
	}
	f.assignments[userID] = keep
	return nil
}

func (f *memRBACRepo) GetUserRoles(_ context.Context, userID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range f.assignments[userID] {
		out = append(out, f.roles[id].Name)
	}
	return out, nil
}

func (f *memRBACRepo) GetUserPermissions(_ context.Context, userID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range f.assignments[userID] {
		out = append(out, f.roles[id].Permissions...)
	}
	return out, nil
}

func newTestServer(t *testing.T, limiter rate.Limiter) *httptest.Server {
	t.Helper()

	users := &memUserRepo{byID: map[uuid.UUID]*repository.User{}}
	rbac := &memRBACRepo{roles: map[uuid.UUID]*repository.Role{}, assignments: map[uuid.UUID][]uuid.UUID{}}
	engine := authz.NewEngine(rbac, time.Hour)

	require.NoError(t, bootstrap.EnsureDefaults(context.Background(), engine, users, bootstrap.Defaults{
		DefaultRole:   "user",
		AdminEmail:    "root@example.com",
		AdminPassword: "Bootstrap1!",
		Hash:          password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32},
	}))

	sessions := session.New(&memSessionRepo{byHash: map[string]*repository.Session{}}, cachepkg.NewMemory("", time.Minute), 360*time.Hour)
	issuer := token.NewIssuer("usersvc", []byte("0123456789abcdef0123456789abcdef"), time.Hour)
	tokens := token.NewService(issuer, sessions, users, engine, 360*time.Hour)

	svc := auth.NewService(users, tokens, engine, auth.Options{
		Hash:           password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		MinPasswordLen: 8,
		DefaultRole:    "user",
	})

	ts := httptest.NewServer(NewRouter(&Handlers{Auth: svc, Engine: engine, Limiter: limiter}))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAuthFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, reg := postJSON(t, ts.URL+"/v1/auth/register", "", registerRequest{
		Email: "alice@example.com", Password: "Secret123!", Name: "Alice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.EqualValues(t, 3600, reg["expires_in"])
	access := reg["access_token"].(string)
	refresh := reg["refresh_token"].(string)

	// email duplicado
	resp, _ = postJSON(t, ts.URL+"/v1/auth/register", "", registerRequest{
		Email: "alice@example.com", Password: "Secret123!",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// password incorrecto
	resp, _ = postJSON(t, ts.URL+"/v1/auth/login", "", loginRequest{Email: "alice@example.com", Password: "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// login correcto: refresh token distinto al del registro
	resp, login := postJSON(t, ts.URL+"/v1/auth/login", "", loginRequest{Email: "alice@example.com", Password: "Secret123!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEqual(t, refresh, login["refresh_token"])

	// check con el rol por defecto
	resp, check := postJSON(t, ts.URL+"/v1/auth/check", access, checkRequest{Permission: "profile:read"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, check["authorized"])

	resp, _ = postJSON(t, ts.URL+"/v1/auth/check", access, checkRequest{Permission: "billing:read"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/v1/auth/check", "garbage", checkRequest{Permission: "profile:read"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// refresh + logout
	resp, _ = postJSON(t, ts.URL+"/v1/auth/refresh", "", refreshRequest{RefreshToken: login["refresh_token"].(string)})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/v1/auth/logout", "", logoutRequest{RefreshToken: login["refresh_token"].(string)})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/v1/auth/refresh", "", refreshRequest{RefreshToken: login["refresh_token"].(string)})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRequirePermission(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, reg := postJSON(t, ts.URL+"/v1/auth/register", "", registerRequest{
		Email: "bob@example.com", Password: "Secret123!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userAccess := reg["access_token"].(string)

	// usuario común no puede crear roles
	resp, _ = postJSON(t, ts.URL+"/v1/admin/roles", userAccess, createRoleRequest{Name: "ops", Permissions: []string{"jobs:run"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// el admin sembrado sí (rol admin = *:*)
	resp, login := postJSON(t, ts.URL+"/v1/auth/login", "", loginRequest{Email: "root@example.com", Password: "Bootstrap1!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	adminAccess := login["access_token"].(string)

	resp, _ = postJSON(t, ts.URL+"/v1/admin/roles", adminAccess, createRoleRequest{Name: "ops", Permissions: []string{"jobs:run"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// permiso mal formado
	resp, _ = postJSON(t, ts.URL+"/v1/admin/roles", adminAccess, createRoleRequest{Name: "bad", Permissions: []string{"nope"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginRateLimitOverHTTP(t *testing.T) {
	ts := newTestServer(t, rate.NewLocalLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		resp, _ := postJSON(t, ts.URL+"/v1/auth/login", "", loginRequest{Email: "ghost@example.com", Password: "whatever1!"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := postJSON(t, ts.URL+"/v1/auth/login", "", loginRequest{Email: "ghost@example.com", Password: "whatever1!"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
