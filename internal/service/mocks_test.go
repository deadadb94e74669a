package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"astro-starter/internal/domain"
)

type mockUserRepo struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]domain.User
	deleted   []int64
	updateErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]domain.User)}
}

func cloneUser(u domain.User) domain.User {
	u.Authorities = append([]string(nil), u.Authorities...)
	if u.ResetDate != nil {
		d := *u.ResetDate
		u.ResetDate = &d
	}
	return u
}

func (m *mockUserRepo) seed(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = cloneUser(u)
	return u
}

func (m *mockUserRepo) get(id int64) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return cloneUser(u), ok
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = cloneUser(*user)
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	user = cloneUser(user)
	user.Authorities = existing.Authorities
	m.users[user.ID] = user
	return nil
}

// UpdateWithAuthorities simula la transacción: con updateErr no se escribe nada.
func (m *mockUserRepo) UpdateWithAuthorities(_ context.Context, user domain.User, authorities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user = cloneUser(user)
	user.Authorities = append([]string(nil), authorities...)
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) FindOneByID(_ context.Context, id int64) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *mockUserRepo) FindOneByLogin(_ context.Context, login string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Login == login })
}

func (m *mockUserRepo) FindOneByEmailIgnoreCase(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email != "" && strings.EqualFold(u.Email, email) })
}

func (m *mockUserRepo) FindOneByActivationKey(_ context.Context, key string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ActivationKey != "" && u.ActivationKey == key })
}

func (m *mockUserRepo) FindOneByResetKey(_ context.Context, key string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ResetKey != "" && u.ResetKey == key })
}

func (m *mockUserRepo) FindOneWithAuthoritiesByLogin(ctx context.Context, login string) (domain.User, error) {
	return m.FindOneByLogin(ctx, login)
}

func (m *mockUserRepo) FindOneWithAuthoritiesByEmailIgnoreCase(ctx context.Context, email string) (domain.User, error) {
	return m.FindOneByEmailIgnoreCase(ctx, email)
}

func (m *mockUserRepo) FindAllByLoginNot(_ context.Context, login string, offset, limit int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.User
	for _, u := range m.users {
		if u.Login != login {
			all = append(all, cloneUser(u))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockUserRepo) CountByLoginNot(_ context.Context, login string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Login != login {
			n++
		}
	}
	return n, nil
}

type mockAuthorityRepo struct {
	names []string
}

func newMockAuthorityRepo(names ...string) *mockAuthorityRepo {
	return &mockAuthorityRepo{names: names}
}

func (m *mockAuthorityRepo) FindByName(_ context.Context, name string) (domain.Authority, error) {
	for _, n := range m.names {
		if n == name {
			return domain.Authority{Name: n}, nil
		}
	}
	return domain.Authority{}, pgx.ErrNoRows
}

func (m *mockAuthorityRepo) FindAll(_ context.Context) ([]domain.Authority, error) {
	out := make([]domain.Authority, 0, len(m.names))
	for _, n := range m.names {
		out = append(out, domain.Authority{Name: n})
	}
	return out, nil
}

// spyCache registra las invalidaciones sobre una caché en memoria.
type spyCache struct {
	UserCache
	mu          sync.Mutex
	invalidated []string
}

func newSpyCache() *spyCache {
	return &spyCache{UserCache: NewMemoryUserCache(0)}
}

func (c *spyCache) Invalidate(ctx context.Context, cacheName, key string) {
	c.mu.Lock()
	c.invalidated = append(c.invalidated, cacheName+":"+key)
	c.mu.Unlock()
	c.UserCache.Invalidate(ctx, cacheName, key)
}

func (c *spyCache) wasInvalidated(cacheName, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.invalidated {
		if k == cacheName+":"+key {
			return true
		}
	}
	return false
}

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(4)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	return h
}
