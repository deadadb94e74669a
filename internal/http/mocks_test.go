package http

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"astro-starter/internal/config"
	"astro-starter/internal/domain"
	"astro-starter/internal/email"
	"astro-starter/internal/logging"
	"astro-starter/internal/metrics"
	"astro-starter/internal/service"
)

const testAppName = "astroApp"

type mockUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]domain.User
	findErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]domain.User)}
}

func copyUser(u domain.User) domain.User {
	u.Authorities = append([]string(nil), u.Authorities...)
	if u.ResetDate != nil {
		d := *u.ResetDate
		u.ResetDate = &d
	}
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = copyUser(*user)
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	user = copyUser(user)
	user.Authorities = existing.Authorities
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateWithAuthorities(_ context.Context, user domain.User, authorities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user = copyUser(user)
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
	return nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return domain.User{}, m.findErr
	}
	for _, u := range m.users {
		if match(u) {
			return copyUser(u), nil
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
			all = append(all, copyUser(u))
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

func (m *mockUserRepo) byLogin(login string) (domain.User, bool) {
	u, err := m.FindOneByLogin(context.Background(), login)
	return u, err == nil
}

type mockAuthorityRepo struct {
	names []string
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

type sentMail struct {
	to, subject, body string
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []sentMail
}

func (s *mockEmailSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func (s *mockEmailSender) last() (sentMail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentMail{}, false
	}
	return s.sent[len(s.sent)-1], true
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

type testServer struct {
	router  *gin.Engine
	repo    *mockUserRepo
	hasher  *service.PasswordHasher
	tokens  *service.TokenProvider
	mailer  *mockEmailSender
	logs    *logging.Registry
	metrics *metrics.Metrics
	cfg     *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppName:        testAppName,
		AppDisplayName: "Astro Starter",
		AppProfile:     "dev",
		SwaggerEnabled: true,
		MailBaseURL:    "http://localhost:8080",
		SMTPPass:       "smtp-secret",
		StaticDir:      t.TempDir(),
	}

	hasher, err := service.NewPasswordHasher(4)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	tokens, err := service.NewTokenProvider(testRSAKey(t), "https://astro-starter/issuer", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	repo := newMockUserRepo()
	authorities := &mockAuthorityRepo{names: []string{domain.RoleAdmin, domain.RoleUser}}
	cache := service.NewMemoryUserCache(time.Minute)
	logs := logging.NewWithSink(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(io.Discard), zapcore.InfoLevel)
	logger := logs.Root()
	mailer := &mockEmailSender{}
	m := metrics.New()

	users := service.NewUserService(logger, repo, authorities, hasher, cache, nil)
	auth := service.NewAuthenticationService(logger, repo, hasher, cache)
	mail := service.NewMailService(logger, mailer, renderer, cfg.AppDisplayName, cfg.MailBaseURL)

	accountH := NewAccountHandler(logger, cfg.AppName, users, auth, tokens, mail)
	userH := NewUserHandler(logger, cfg.AppName, users, mail)
	mgmtH := NewManagementHandler(logger, cfg, logs, m, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	spaH := NewSPAHandler(cfg.AppName, cfg.StaticDir)

	return &testServer{
		router:  NewRouter(logger, m, tokens, accountH, userH, mgmtH, spaH),
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		mailer:  mailer,
		logs:    logs,
		metrics: m,
		cfg:     cfg,
	}
}

// seedUser guarda un usuario activado con la contraseña dada.
func (s *testServer) seedUser(t *testing.T, login, password string, roles ...string) domain.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	u := domain.User{
		Login:            login,
		PasswordHash:     hash,
		Email:            login + "@example.com",
		Activated:        true,
		LangKey:          "en",
		CreatedBy:        domain.SystemAccount,
		CreatedDate:      now,
		LastModifiedDate: now,
		Authorities:      roles,
	}
	if err := s.repo.Create(context.Background(), &u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (s *testServer) tokenFor(t *testing.T, login string, roles ...string) string {
	t.Helper()
	token, err := s.tokens.CreateToken(service.Identity{Principal: login, Roles: roles}, false)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return token
}

func performRequest(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v (body %q)", err, rec.Body.String())
	}
	return p
}
