package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"astro-starter/internal/domain"
	"astro-starter/internal/service"
)

// AccountHandler expone registro, activación, autenticación y la cuenta del usuario actual.
type AccountHandler struct {
	logger  *zap.Logger
	appName string
	users   *service.UserService
	auth    *service.AuthenticationService
	tokens  *service.TokenProvider
	mail    *service.MailService
}

func NewAccountHandler(logger *zap.Logger, appName string, users *service.UserService, auth *service.AuthenticationService, tokens *service.TokenProvider, mail *service.MailService) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{
		logger:  logger,
		appName: appName,
		users:   users,
		auth:    auth,
		tokens:  tokens,
		mail:    mail,
	}
}

type jwtTokenResponse struct {
	IDToken string `json:"id_token"`
}

// Register maneja POST /api/register.
func (h *AccountHandler) Register(c *gin.Context) {
	var vm domain.ManagedUserVM
	if err := c.ShouldBindJSON(&vm); err != nil {
		writeProblem(c, h.appName, validationProblem("managedUserVM", err))
		return
	}
	if !domain.CheckPasswordLength(vm.Password) {
		writeProblem(c, h.appName, invalidPasswordProblem)
		return
	}
	if err := vm.Validate(); err != nil {
		writeProblem(c, h.appName, validationProblem("managedUserVM", err))
		return
	}

	user, err := h.users.RegisterUser(c.Request.Context(), vm.UserDTO, vm.Password)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	h.sendMail(c, user, h.mail.SendActivationEmail)
	c.Status(http.StatusCreated)
}

// Activate maneja GET /api/activate?key=.
func (h *AccountHandler) Activate(c *gin.Context) {
	if _, err := h.users.ActivateRegistration(c.Request.Context(), c.Query("key")); err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.Status(http.StatusOK)
}

// Authorize maneja POST /api/authenticate y devuelve el JWT en el body y en el header.
func (h *AccountHandler) Authorize(c *gin.Context) {
	var vm domain.LoginVM
	if err := c.ShouldBindJSON(&vm); err != nil {
		writeProblem(c, h.appName, validationProblem("loginVM", err))
		return
	}
	if err := vm.Validate(); err != nil {
		writeProblem(c, h.appName, validationProblem("loginVM", err))
		return
	}

	identity, err := h.auth.Authenticate(c.Request.Context(), vm.Username, vm.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrUserNotActivated),
		errors.Is(err, service.ErrAuthenticationFailed):
		h.logger.Debug("authentication failed", zap.String("username", vm.Username), zap.Error(err))
		writeProblem(c, h.appName, simpleProblem(http.StatusUnauthorized, "Unauthorized", defaultUnauthorizedMessage))
		return
	default:
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	token, err := h.tokens.CreateToken(identity, vm.RememberMe)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.Header(authorizationHeader, bearerPrefix+token)
	c.JSON(http.StatusOK, jwtTokenResponse{IDToken: token})
}

// IsAuthenticated maneja GET /api/authenticate: login actual o cadena vacía.
func (h *AccountHandler) IsAuthenticated(c *gin.Context) {
	login := ""
	if identity, ok := GetIdentity(c); ok {
		login = identity.Principal
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, login)
}

// GetAccount maneja GET /api/account.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	identity, _ := GetIdentity(c)
	user, err := h.users.GetUserWithAuthoritiesByLogin(c.Request.Context(), identity.Principal)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.JSON(http.StatusOK, domain.NewUserDTO(user))
}

// SaveAccount maneja POST /api/account.
func (h *AccountHandler) SaveAccount(c *gin.Context) {
	var dto domain.UserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		writeProblem(c, h.appName, validationProblem("userDTO", err))
		return
	}
	if err := dto.Validate(); err != nil {
		writeProblem(c, h.appName, validationProblem("userDTO", err))
		return
	}

	identity, _ := GetIdentity(c)
	err := h.users.UpdateAccount(c.Request.Context(), identity.Principal, dto.FirstName, dto.LastName, dto.Email, dto.LangKey, dto.ImageURL)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.Status(http.StatusOK)
}

// ChangePassword maneja POST /api/account/change-password.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var dto domain.PasswordChangeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		writeProblem(c, h.appName, validationProblem("passwordChangeDTO", err))
		return
	}
	if !domain.CheckPasswordLength(dto.NewPassword) {
		writeProblem(c, h.appName, invalidPasswordProblem)
		return
	}

	identity, _ := GetIdentity(c)
	if err := h.users.ChangePassword(c.Request.Context(), identity.Principal, dto.CurrentPassword, dto.NewPassword); err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.Status(http.StatusOK)
}

// RequestPasswordReset maneja POST /api/account/reset-password/init. El body es el email en texto plano.
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeProblem(c, h.appName, simpleProblem(http.StatusBadRequest, "Bad Request", "error.http.400"))
		return
	}
	mail := strings.TrimSpace(string(raw))

	user, err := h.users.RequestPasswordReset(c.Request.Context(), mail)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	h.sendMail(c, user, h.mail.SendPasswordResetMail)
	c.Status(http.StatusOK)
}

// FinishPasswordReset maneja POST /api/account/reset-password/finish.
func (h *AccountHandler) FinishPasswordReset(c *gin.Context) {
	var vm domain.KeyAndPasswordVM
	if err := c.ShouldBindJSON(&vm); err != nil {
		writeProblem(c, h.appName, validationProblem("keyAndPasswordVM", err))
		return
	}
	if !domain.CheckPasswordLength(vm.NewPassword) {
		writeProblem(c, h.appName, invalidPasswordProblem)
		return
	}

	if _, err := h.users.CompletePasswordReset(c.Request.Context(), vm.NewPassword, vm.Key); err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.Status(http.StatusOK)
}

// sendMail registra el error de envío sin fallar la petición.
func (h *AccountHandler) sendMail(c *gin.Context, user domain.User, send func(ctx context.Context, user domain.User) error) {
	if h.mail == nil {
		return
	}
	if err := send(c.Request.Context(), user); err != nil {
		h.logger.Warn("send email failed", zap.String("login", user.Login), zap.Error(err))
	}
}
