package domain

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var loginRegexp = regexp.MustCompile(LoginPattern)

// Validate aplica las restricciones de longitud y formato del perfil.
func (d UserDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Login, validation.Required, validation.Length(1, 50), validation.Match(loginRegexp)),
		validation.Field(&d.FirstName, validation.Length(0, 50)),
		validation.Field(&d.LastName, validation.Length(0, 50)),
		validation.Field(&d.Email, validation.Required, validation.Length(5, 254), is.EmailFormat),
		validation.Field(&d.ImageURL, validation.Length(0, 256)),
		validation.Field(&d.LangKey, validation.Length(2, 10)),
	)
}

// Validate valida el perfil y la longitud de la contraseña.
func (vm ManagedUserVM) Validate() error {
	if err := vm.UserDTO.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&vm,
		validation.Field(&vm.Password, validation.Length(PasswordMinLength, PasswordMaxLength)),
	)
}

// Validate aplica los límites de LoginVM.
func (vm LoginVM) Validate() error {
	return validation.ValidateStruct(&vm,
		validation.Field(&vm.Username, validation.Required, validation.Length(1, 50)),
		validation.Field(&vm.Password, validation.Required, validation.Length(PasswordMinLength, PasswordMaxLength)),
	)
}

// CheckPasswordLength indica si la contraseña cumple los límites [4,100].
func CheckPasswordLength(password string) bool {
	n := len([]rune(password))
	return n >= PasswordMinLength && n <= PasswordMaxLength
}
