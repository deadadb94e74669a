package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"astro-starter/internal/domain"
	"astro-starter/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserHandler expone la administración de usuarios (ROLE_ADMIN).
type UserHandler struct {
	logger  *zap.Logger
	appName string
	users   *service.UserService
	mail    *service.MailService
}

func NewUserHandler(logger *zap.Logger, appName string, users *service.UserService, mail *service.MailService) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		logger:  logger,
		appName: appName,
		users:   users,
		mail:    mail,
	}
}

// CreateUser maneja POST /api/users.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var dto domain.UserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		writeProblem(c, h.appName, validationProblem("userDTO", err))
		return
	}
	if dto.ID != nil {
		writeProblem(c, h.appName, badRequestAlert(defaultProblemType, "A new user cannot already have an ID", userManagementEntity, "idexists"))
		return
	}
	if err := dto.Validate(); err != nil {
		writeProblem(c, h.appName, validationProblem("userDTO", err))
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), dto)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	if h.mail != nil {
		if err := h.mail.SendCreationEmail(c.Request.Context(), user); err != nil {
			h.logger.Warn("send creation email failed", zap.String("login", user.Login), zap.Error(err))
		}
	}

	c.Header("Location", "/api/users/"+user.Login)
	writeAlert(c, h.appName, userManagementEntity+".created", user.Login)
	c.JSON(http.StatusCreated, domain.NewUserDTO(user))
}

// UpdateUser maneja PUT /api/users.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var dto domain.UserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		writeProblem(c, h.appName, validationProblem("userDTO", err))
		return
	}
	if err := dto.Validate(); err != nil {
		writeProblem(c, h.appName, validationProblem("userDTO", err))
		return
	}

	updated, err := h.users.UpdateUser(c.Request.Context(), dto)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	writeAlert(c, h.appName, userManagementEntity+".updated", updated.Login)
	c.JSON(http.StatusOK, updated)
}

// GetAllUsers maneja GET /api/users?page=&size=.
func (h *UserHandler) GetAllUsers(c *gin.Context) {
	page := queryInt(c, "page", 0)
	size := queryInt(c, "size", defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}

	users, total, err := h.users.GetAllManagedUsers(c.Request.Context(), page, size)
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, users)
}

// GetAuthorities maneja GET /api/users/authorities.
func (h *UserHandler) GetAuthorities(c *gin.Context) {
	names, err := h.users.GetAuthorities(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// GetUser maneja GET /api/users/:login.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetUserWithAuthoritiesByLogin(c.Request.Context(), c.Param("login"))
	if err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	c.JSON(http.StatusOK, domain.NewUserDTO(user))
}

// DeleteUser maneja DELETE /api/users/:login.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	login := c.Param("login")
	if err := h.users.DeleteUser(c.Request.Context(), login); err != nil {
		writeServiceError(c, h.logger, h.appName, err)
		return
	}
	writeAlert(c, h.appName, userManagementEntity+".deleted", login)
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

