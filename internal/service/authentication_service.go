package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"astro-starter/internal/domain"
	"astro-starter/internal/repository"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserNotActivated     = errors.New("user not activated")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

var emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// Identity es el principal autenticado con sus roles.
type Identity struct {
	Principal string
	Roles     []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthenticationService verifica credenciales contra el repositorio de usuarios.
type AuthenticationService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher *PasswordHasher
	cache  UserCache
}

func NewAuthenticationService(logger *zap.Logger, users repository.UserRepository, hasher *PasswordHasher, cache UserCache) *AuthenticationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthenticationService{
		logger: logger,
		users:  users,
		hasher: hasher,
		cache:  cache,
	}
}

// Authenticate acepta login o email. Un email se busca sin distinguir mayúsculas;
// un login se pasa a minúsculas antes de buscarlo.
func (s *AuthenticationService) Authenticate(ctx context.Context, login, password string) (Identity, error) {
	if s.users == nil || s.hasher == nil {
		return Identity{}, errors.New("authentication service not configured")
	}
	s.logger.Debug("authenticating", zap.String("login", login))

	user, err := s.loadByUsername(ctx, login)
	if err != nil {
		return Identity{}, err
	}
	if !user.Activated {
		return Identity{}, ErrUserNotActivated
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		s.logger.Debug("authentication failed: password does not match stored value", zap.String("login", user.Login))
		return Identity{}, ErrAuthenticationFailed
	}
	return Identity{Principal: user.Login, Roles: append([]string{}, user.Authorities...)}, nil
}

func (s *AuthenticationService) loadByUsername(ctx context.Context, login string) (domain.User, error) {
	if emailPattern.MatchString(login) {
		return loadUserByEmail(ctx, s.users, s.cache, login)
	}
	return loadUserByLogin(ctx, s.users, s.cache, strings.ToLower(login))
}

// loadUserByLogin es una lectura con caché sobre usersByLogin.
func loadUserByLogin(ctx context.Context, users repository.UserRepository, cache UserCache, login string) (domain.User, error) {
	if cache != nil {
		if u, ok := cache.Get(ctx, UsersByLoginCache, login); ok {
			return u, nil
		}
	}
	u, err := users.FindOneWithAuthoritiesByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if cache != nil {
		cache.Put(ctx, UsersByLoginCache, login, u)
	}
	return u, nil
}

// loadUserByEmail es una lectura con caché sobre usersByEmail.
func loadUserByEmail(ctx context.Context, users repository.UserRepository, cache UserCache, email string) (domain.User, error) {
	key := strings.ToLower(email)
	if cache != nil {
		if u, ok := cache.Get(ctx, UsersByEmailCache, key); ok {
			return u, nil
		}
	}
	u, err := users.FindOneWithAuthoritiesByEmailIgnoreCase(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if cache != nil {
		cache.Put(ctx, UsersByEmailCache, key, u)
	}
	return u, nil
}
