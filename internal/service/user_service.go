package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"astro-starter/internal/domain"
	"astro-starter/internal/repository"
)

var (
	ErrLoginAlreadyUsed      = errors.New("login already used")
	ErrEmailAlreadyUsed      = errors.New("email already used")
	ErrActivationKeyNotFound = errors.New("no user was found for this activation key")
	ErrResetKeyNotFound      = errors.New("no user was found for this reset key")
	ErrResetKeyExpired       = errors.New("reset key has expired")
	ErrEmailNotFound         = errors.New("email address not registered")
	ErrInvalidPassword       = errors.New("incorrect password")
)

const (
	resetKeyValidity = 24 * time.Hour

	defaultResetRequestsPerWindow = 3
	defaultResetRequestWindow     = time.Hour
)

// UserService coordina el ciclo de vida de los usuarios. Cada mutación invalida
// explícitamente las cachés usersByLogin y usersByEmail.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	authorities repository.AuthorityRepository
	hasher      *PasswordHasher
	cache       UserCache
	limiter     RateLimiter
	randomKey   RandomGenerator
	now         func() time.Time
}

// NewUserService crea el servicio. Sin limiter se usa uno en memoria para las solicitudes de reset.
func NewUserService(logger *zap.Logger, users repository.UserRepository, authorities repository.AuthorityRepository, hasher *PasswordHasher, cache UserCache, resetLimiter RateLimiter) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resetLimiter == nil {
		resetLimiter = NewMemoryRateLimiter(defaultResetRequestWindow, defaultResetRequestsPerWindow)
	}
	return &UserService{
		logger:      logger,
		users:       users,
		authorities: authorities,
		hasher:      hasher,
		cache:       cache,
		limiter:     resetLimiter,
		randomKey:   GenerateRandomKey,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RegisterUser crea un usuario inactivo con clave de activación. Un duplicado no
// activado (por login o email) se elimina antes de crear el nuevo.
func (s *UserService) RegisterUser(ctx context.Context, dto domain.UserDTO, password string) (domain.User, error) {
	login := strings.ToLower(dto.Login)
	email := strings.ToLower(dto.Email)

	existing, err := s.users.FindOneByLogin(ctx, login)
	switch {
	case err == nil:
		if err := s.removeNonActivatedUser(ctx, existing, ErrLoginAlreadyUsed); err != nil {
			return domain.User{}, err
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.User{}, err
	}

	existing, err = s.users.FindOneByEmailIgnoreCase(ctx, email)
	switch {
	case err == nil:
		if err := s.removeNonActivatedUser(ctx, existing, ErrEmailAlreadyUsed); err != nil {
			return domain.User{}, err
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	activationKey, err := s.randomKey()
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user := domain.User{
		Login:            login,
		PasswordHash:     hash,
		FirstName:        dto.FirstName,
		LastName:         dto.LastName,
		Email:            email,
		ImageURL:         dto.ImageURL,
		LangKey:          langKeyOrDefault(dto.LangKey),
		Activated:        false,
		ActivationKey:    activationKey,
		CreatedBy:        domain.AnonymousUser,
		CreatedDate:      now,
		LastModifiedBy:   domain.AnonymousUser,
		LastModifiedDate: now,
	}
	if _, err := s.authorities.FindByName(ctx, domain.RoleUser); err == nil {
		user.Authorities = []string{domain.RoleUser}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return domain.User{}, err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("created information for user", zap.String("login", user.Login))
	return user, nil
}

func (s *UserService) removeNonActivatedUser(ctx context.Context, existing domain.User, conflict error) error {
	if existing.Activated {
		return conflict
	}
	if err := s.users.Delete(ctx, existing.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	invalidateUser(ctx, s.cache, existing.Login, existing.Email)
	s.logger.Debug("removed non activated user", zap.String("login", existing.Login))
	return nil
}

// ActivateRegistration activa la cuenta asociada a la clave y la consume.
func (s *UserService) ActivateRegistration(ctx context.Context, key string) (domain.User, error) {
	s.logger.Debug("activating user for activation key")
	if strings.TrimSpace(key) == "" {
		return domain.User{}, ErrActivationKeyNotFound
	}
	user, err := s.users.FindOneByActivationKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrActivationKeyNotFound
		}
		return domain.User{}, err
	}
	user.Activated = true
	user.ActivationKey = ""
	s.touch(ctx, &user)
	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("activated user", zap.String("login", user.Login))
	return user, nil
}

// ChangePassword exige la contraseña actual; si no coincide el hash guardado no cambia.
func (s *UserService) ChangePassword(ctx context.Context, login, currentPassword, newPassword string) error {
	user, err := s.findByLogin(ctx, login)
	if err != nil {
		return err
	}
	if !s.hasher.Check(currentPassword, user.PasswordHash) {
		return ErrInvalidPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	s.touch(ctx, &user)
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("changed password for user", zap.String("login", user.Login))
	return nil
}

// RequestPasswordReset genera clave y fecha de reset para una cuenta activada.
// Las solicitudes por email están limitadas por ventana de tiempo.
func (s *UserService) RequestPasswordReset(ctx context.Context, mail string) (domain.User, error) {
	mail = strings.TrimSpace(mail)
	if mail == "" {
		return domain.User{}, ErrEmailNotFound
	}
	if !s.limiter.Allow(ctx, mail) {
		s.logger.Warn("password reset rate limited", zap.String("email", mail))
		return domain.User{}, ErrTooManyRequests
	}
	user, err := s.users.FindOneByEmailIgnoreCase(ctx, mail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrEmailNotFound
		}
		return domain.User{}, err
	}
	if !user.Activated {
		return domain.User{}, ErrUserNotActivated
	}
	resetKey, err := s.randomKey()
	if err != nil {
		return domain.User{}, err
	}
	now := s.now()
	user.ResetKey = resetKey
	user.ResetDate = &now
	s.touch(ctx, &user)
	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("request to reset password", zap.String("login", user.Login))
	return user, nil
}

// CompletePasswordReset aplica la nueva contraseña si la clave tiene menos de 24h.
// Una clave con exactamente 24h se considera vencida.
func (s *UserService) CompletePasswordReset(ctx context.Context, newPassword, key string) (domain.User, error) {
	if strings.TrimSpace(key) == "" {
		return domain.User{}, ErrResetKeyNotFound
	}
	user, err := s.users.FindOneByResetKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrResetKeyNotFound
		}
		return domain.User{}, err
	}
	if user.ResetDate == nil || !user.ResetDate.After(s.now().Add(-resetKeyValidity)) {
		return domain.User{}, ErrResetKeyExpired
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = hash
	user.ResetKey = ""
	user.ResetDate = nil
	s.touch(ctx, &user)
	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("completed password reset", zap.String("login", user.Login))
	return user, nil
}

// CreateUser da de alta un usuario activado con contraseña aleatoria y clave de reset,
// para que el destinatario defina su contraseña desde el correo de creación.
func (s *UserService) CreateUser(ctx context.Context, dto domain.UserDTO) (domain.User, error) {
	login := strings.ToLower(dto.Login)
	email := strings.ToLower(dto.Email)

	if _, err := s.users.FindOneByLogin(ctx, login); err == nil {
		return domain.User{}, ErrLoginAlreadyUsed
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if _, err := s.users.FindOneByEmailIgnoreCase(ctx, email); err == nil {
		return domain.User{}, ErrEmailAlreadyUsed
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	password, err := s.randomKey()
	if err != nil {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	resetKey, err := s.randomKey()
	if err != nil {
		return domain.User{}, err
	}
	authorities, err := s.resolveAuthorities(ctx, dto.Authorities)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	actor := actorFrom(ctx)
	user := domain.User{
		Login:            login,
		PasswordHash:     hash,
		FirstName:        dto.FirstName,
		LastName:         dto.LastName,
		Email:            email,
		ImageURL:         dto.ImageURL,
		LangKey:          langKeyOrDefault(dto.LangKey),
		Activated:        true,
		ResetKey:         resetKey,
		ResetDate:        &now,
		CreatedBy:        actor,
		CreatedDate:      now,
		LastModifiedBy:   actor,
		LastModifiedDate: now,
		Authorities:      authorities,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return domain.User{}, err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("created information for user", zap.String("login", user.Login))
	return user, nil
}

// UpdateUser reemplaza perfil, estado y roles de un usuario existente.
func (s *UserService) UpdateUser(ctx context.Context, dto domain.UserDTO) (domain.UserDTO, error) {
	login := strings.ToLower(dto.Login)
	email := strings.ToLower(dto.Email)

	var (
		user domain.User
		err  error
	)
	if dto.ID != nil {
		user, err = s.findByID(ctx, *dto.ID)
	} else {
		user, err = s.findByLogin(ctx, login)
	}
	if err != nil {
		return domain.UserDTO{}, err
	}

	if owner, err := s.users.FindOneByEmailIgnoreCase(ctx, email); err == nil {
		if owner.ID != user.ID {
			return domain.UserDTO{}, ErrEmailAlreadyUsed
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.UserDTO{}, err
	}
	if owner, err := s.users.FindOneByLogin(ctx, login); err == nil {
		if owner.ID != user.ID {
			return domain.UserDTO{}, ErrLoginAlreadyUsed
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.UserDTO{}, err
	}

	authorities, err := s.resolveAuthorities(ctx, dto.Authorities)
	if err != nil {
		return domain.UserDTO{}, err
	}

	oldLogin, oldEmail := user.Login, user.Email
	user.Login = login
	user.FirstName = dto.FirstName
	user.LastName = dto.LastName
	user.Email = email
	user.ImageURL = dto.ImageURL
	user.Activated = dto.Activated
	user.LangKey = langKeyOrDefault(dto.LangKey)
	user.Authorities = authorities
	s.touch(ctx, &user)

	// Se invalidan ambas claves aunque la escritura falle.
	defer func() {
		invalidateUser(ctx, s.cache, oldLogin, oldEmail)
		invalidateUser(ctx, s.cache, user.Login, user.Email)
	}()
	if err := s.users.UpdateWithAuthorities(ctx, user, authorities); err != nil {
		return domain.UserDTO{}, err
	}
	s.logger.Debug("changed information for user", zap.String("login", user.Login))
	return domain.NewUserDTO(user), nil
}

// UpdateAccount actualiza los datos básicos del usuario actual.
func (s *UserService) UpdateAccount(ctx context.Context, login, firstName, lastName, email, langKey, imageURL string) error {
	user, err := s.findByLogin(ctx, login)
	if err != nil {
		return err
	}
	email = strings.ToLower(email)
	if owner, err := s.users.FindOneByEmailIgnoreCase(ctx, email); err == nil {
		if owner.Login != user.Login {
			return ErrEmailAlreadyUsed
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	oldEmail := user.Email
	user.FirstName = firstName
	user.LastName = lastName
	user.Email = email
	user.LangKey = langKeyOrDefault(langKey)
	user.ImageURL = imageURL
	s.touch(ctx, &user)
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	invalidateUser(ctx, s.cache, user.Login, oldEmail)
	invalidateUser(ctx, s.cache, "", user.Email)
	s.logger.Debug("changed information for user", zap.String("login", user.Login))
	return nil
}

func (s *UserService) DeleteUser(ctx context.Context, login string) error {
	user, err := s.findByLogin(ctx, strings.ToLower(login))
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	invalidateUser(ctx, s.cache, user.Login, user.Email)
	s.logger.Debug("deleted user", zap.String("login", user.Login))
	return nil
}

// GetUserWithAuthoritiesByLogin devuelve el usuario con sus roles o ErrUserNotFound.
func (s *UserService) GetUserWithAuthoritiesByLogin(ctx context.Context, login string) (domain.User, error) {
	return loadUserByLogin(ctx, s.users, s.cache, strings.ToLower(login))
}

// GetAllManagedUsers devuelve una página de usuarios, sin la cuenta anónima, y el total.
func (s *UserService) GetAllManagedUsers(ctx context.Context, page, size int) ([]domain.UserDTO, int64, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	if page > math.MaxInt32/size {
		page = math.MaxInt32 / size
	}
	users, err := s.users.FindAllByLoginNot(ctx, domain.AnonymousUser, page*size, size)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.users.CountByLoginNot(ctx, domain.AnonymousUser)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, domain.NewUserDTO(u))
	}
	return out, total, nil
}

func (s *UserService) GetAuthorities(ctx context.Context) ([]string, error) {
	all, err := s.authorities.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, a := range all {
		names = append(names, a.Name)
	}
	return names, nil
}

// FindOneByLogin expone la búsqueda sin caché usada por los handlers.
func (s *UserService) FindOneByLogin(ctx context.Context, login string) (domain.User, error) {
	return s.findByLogin(ctx, strings.ToLower(login))
}

func (s *UserService) findByLogin(ctx context.Context, login string) (domain.User, error) {
	user, err := s.users.FindOneByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) findByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.FindOneByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// resolveAuthorities descarta en silencio los roles inexistentes.
func (s *UserService) resolveAuthorities(ctx context.Context, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		a, err := s.authorities.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		seen[name] = struct{}{}
		out = append(out, a.Name)
	}
	return out, nil
}

func (s *UserService) touch(ctx context.Context, user *domain.User) {
	user.LastModifiedBy = actorFrom(ctx)
	user.LastModifiedDate = s.now()
}

func langKeyOrDefault(langKey string) string {
	if strings.TrimSpace(langKey) == "" {
		return domain.DefaultLanguage
	}
	return langKey
}
