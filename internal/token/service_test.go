package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cachepkg "github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/session"
)

// --- fakes ---

type memSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*repository.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byHash: map[string]*repository.Session{}}
}

func (f *memSessionRepo) Create(_ context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	s := &repository.Session{
		ID: uuid.New(), UserID: in.UserID, TokenHash: in.TokenHash,
		CreatedAt: now, LastUsedAt: now, ExpiresAt: in.ExpiresAt,
	}
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

// strictSessionRepo emula las constraints del esquema real: user_id,
// token_hash y expires_at obligatorios, token_hash único, ip/user-agent
// nullables (string vacío se guarda como NULL, nunca rechaza).
type strictSessionRepo struct {
	*memSessionRepo
}

func (f *strictSessionRepo) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	if in.UserID == uuid.Nil || in.TokenHash == "" || in.ExpiresAt.IsZero() {
		return nil, repository.ErrInvalid
	}
	f.mu.Lock()
	if _, dup := f.byHash[in.TokenHash]; dup {
		f.mu.Unlock()
		return nil, repository.ErrConflict
	}
	f.mu.Unlock()

	s, err := f.memSessionRepo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.IPAddress != "" {
		ip := in.IPAddress
		s.IPAddress = &ip
	}
	if in.UserAgent != "" {
		ua := in.UserAgent
		s.UserAgent = &ua
	}
	return s, nil
}

type memUserRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*repository.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{byID: map[uuid.UUID]*repository.User{}} }

func (f *memUserRepo) add(email string) *repository.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &repository.User{ID: uuid.New(), Email: email, Status: repository.StatusActive}
	f.byID[u.ID] = u
	return u
}

func (f *memUserRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	return nil, repository.ErrInvalid
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

func (f *memUserRepo) UpdatePasswordHash(context.Context, uuid.UUID, string) error { return nil }
func (f *memUserRepo) SetStatus(context.Context, uuid.UUID, repository.UserStatus) error {
	return nil
}

// staticResolver devuelve siempre el mismo snapshot y cuenta llamadas.
type staticResolver struct {
	mu    sync.Mutex
	roles []string
	perms []string
	calls int
}

func (r *staticResolver) Resolve(context.Context, uuid.UUID) ([]string, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.roles, r.perms, nil
}

func newTestService(t *testing.T) (*Service, *memUserRepo, *memSessionRepo, *staticResolver) {
	t.Helper()
	sessRepo := newMemSessionRepo()
	users := newMemUserRepo()
	resolver := &staticResolver{roles: []string{"user"}, perms: []string{"profile:read"}}
	sessions := session.New(sessRepo, cachepkg.NewMemory("", time.Minute), 15*24*time.Hour)
	issuer := NewIssuer("usersvc", testSecret, time.Hour)
	return NewService(issuer, sessions, users, resolver, 15*24*time.Hour), users, sessRepo, resolver
}

// --- tests ---

func TestIssuePairAndRefresh(t *testing.T) {
	ctx := context.Background()
	svc, users, _, resolver := newTestService(t)
	u := users.add("alice@example.com")

	pair, err := svc.IssuePair(ctx, u.ID, u.Email, []string{"user"}, []string{"profile:read"}, ClientMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.EqualValues(t, 3600, pair.ExpiresIn)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), claims.UserID)

	// refresh re-resuelve el snapshot vigente
	resolver.mu.Lock()
	resolver.roles = []string{"user", "admin"}
	resolver.perms = []string{"*:*"}
	resolver.mu.Unlock()

	got, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)

	claims, err = svc.VerifyAccess(got.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"user", "admin"}, claims.Roles)
	require.Equal(t, []string{"*:*"}, claims.Permissions)
}

func TestIssuePairWithEmptyClientMeta(t *testing.T) {
	// curl y clientes de API no mandan User-Agent ni header de IP: la
	// sesión se tiene que crear igual contra un store con constraints
	ctx := context.Background()
	sessRepo := &strictSessionRepo{memSessionRepo: newMemSessionRepo()}
	users := newMemUserRepo()
	resolver := &staticResolver{}
	sessions := session.New(sessRepo, cachepkg.NewMemory("", time.Minute), 15*24*time.Hour)
	issuer := NewIssuer("usersvc", testSecret, time.Hour)
	svc := NewService(issuer, sessions, users, resolver, 15*24*time.Hour)

	u := users.add("cli@example.com")
	pair, err := svc.IssuePair(ctx, u.ID, u.Email, nil, nil, ClientMeta{})
	require.NoError(t, err)
	require.EqualValues(t, 3600, pair.ExpiresIn)

	got, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)
	require.EqualValues(t, 3600, got.ExpiresIn)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefreshAfterRevoke(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	u := users.add("bob@example.com")

	pair, err := svc.IssuePair(ctx, u.ID, u.Email, nil, nil, ClientMeta{})
	require.NoError(t, err)

	// el get previo dejó la entrada volátil poblada
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))

	// la invalidación es síncrona: el refresh inmediato ya falla
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// revocar dos veces es no-op
	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
}

func TestRefreshExpiredSession(t *testing.T) {
	ctx := context.Background()
	sessRepo := newMemSessionRepo()
	users := newMemUserRepo()
	resolver := &staticResolver{}
	sessions := session.New(sessRepo, cachepkg.NewMemory("", time.Minute), 15*24*time.Hour)
	issuer := NewIssuer("usersvc", testSecret, time.Hour)

	// refreshTTL microscópico: la sesión nace prácticamente vencida
	svc := NewService(issuer, sessions, users, resolver, time.Nanosecond)
	u := users.add("carol@example.com")

	pair, err := svc.IssuePair(ctx, u.ID, u.Email, nil, nil, ClientMeta{})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionExpired)

	// la sesión vencida quedó eliminada de ambas capas
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	u := users.add("dave@example.com")

	// multi-device: dos sesiones concurrentes
	p1, err := svc.IssuePair(ctx, u.ID, u.Email, nil, nil, ClientMeta{UserAgent: "phone"})
	require.NoError(t, err)
	p2, err := svc.IssuePair(ctx, u.ID, u.Email, nil, nil, ClientMeta{UserAgent: "laptop"})
	require.NoError(t, err)
	require.NotEqual(t, p1.RefreshToken, p2.RefreshToken)

	n, err := svc.RevokeAll(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, p := range []*Pair{p1, p2} {
		_, err = svc.Refresh(ctx, p.RefreshToken)
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
}

func TestConcurrentRefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _ := newTestService(t)
	u := users.add("eve@example.com")

	pair, err := svc.IssuePair(ctx, u.ID, u.Email, nil, nil, ClientMeta{})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
}
