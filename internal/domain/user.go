package domain

import (
	"sort"
	"time"
)

const (
	RoleAdmin     = "ROLE_ADMIN"
	RoleUser      = "ROLE_USER"
	RoleAnonymous = "ROLE_ANONYMOUS"

	SystemAccount   = "system"
	AnonymousUser   = "anonymoususer"
	DefaultLanguage = "en"

	PasswordMinLength = 4
	PasswordMaxLength = 100
)

// LoginPattern es la expresión aceptada para logins.
const LoginPattern = `^[_.@A-Za-z0-9-]*$`

// User es la fila persistida de un usuario. PasswordHash siempre es un hash bcrypt.
type User struct {
	ID               int64
	Login            string
	PasswordHash     string
	FirstName        string
	LastName         string
	Email            string
	Activated        bool
	LangKey          string
	ImageURL         string
	ActivationKey    string
	ResetKey         string
	ResetDate        *time.Time
	CreatedBy        string
	CreatedDate      time.Time
	LastModifiedBy   string
	LastModifiedDate time.Time
	Authorities      []string
}

// Authority es un rol identificado por su nombre.
type Authority struct {
	Name string `json:"name"`
}

// HasAuthority indica si el usuario tiene el rol dado.
func (u User) HasAuthority(name string) bool {
	for _, a := range u.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// UserDTO es la proyección pública de User; nunca incluye hash ni claves.
type UserDTO struct {
	ID               *int64    `json:"id,omitempty"`
	Login            string    `json:"login"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	ImageURL         string    `json:"imageUrl"`
	Activated        bool      `json:"activated"`
	LangKey          string    `json:"langKey"`
	CreatedBy        string    `json:"createdBy,omitempty"`
	CreatedDate      time.Time `json:"createdDate,omitempty"`
	LastModifiedBy   string    `json:"lastModifiedBy,omitempty"`
	LastModifiedDate time.Time `json:"lastModifiedDate,omitempty"`
	Authorities      []string  `json:"authorities"`
}

// NewUserDTO proyecta un User al DTO de transporte.
func NewUserDTO(u User) UserDTO {
	id := u.ID
	authorities := append([]string(nil), u.Authorities...)
	sort.Strings(authorities)
	if authorities == nil {
		authorities = []string{}
	}
	return UserDTO{
		ID:               &id,
		Login:            u.Login,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		ImageURL:         u.ImageURL,
		Activated:        u.Activated,
		LangKey:          u.LangKey,
		CreatedBy:        u.CreatedBy,
		CreatedDate:      u.CreatedDate,
		LastModifiedBy:   u.LastModifiedBy,
		LastModifiedDate: u.LastModifiedDate,
		Authorities:      authorities,
	}
}

// ManagedUserVM es el payload de registro: perfil público más contraseña.
type ManagedUserVM struct {
	UserDTO
	Password string `json:"password"`
}

// LoginVM contiene credenciales de autenticación.
type LoginVM struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// PasswordChangeDTO contiene la contraseña actual y la nueva.
type PasswordChangeDTO struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// KeyAndPasswordVM completa un reset de contraseña.
type KeyAndPasswordVM struct {
	Key         string `json:"key"`
	NewPassword string `json:"newPassword"`
}
