package http

import (
	"errors"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"astro-starter/internal/logging"
	"astro-starter/internal/service"
)

const problemBaseURL = "https://www.app.com/problem"

const (
	defaultProblemType         = problemBaseURL + "/problem-with-message"
	constraintViolationType    = problemBaseURL + "/constraint-violation"
	invalidPasswordType        = problemBaseURL + "/invalid-password"
	emailAlreadyUsedType       = problemBaseURL + "/email-already-used"
	loginAlreadyUsedType       = problemBaseURL + "/login-already-used"
	emailNotFoundType          = problemBaseURL + "/email-not-found"
	problemContentType         = "application/problem+json"
	userManagementEntity       = "userManagement"
	validationErrorMessage     = "error.validation"
	defaultUnauthorizedMessage = "error.http.401"
)

// Problem es el cuerpo de error devuelto por la API.
type Problem struct {
	Type        string       `json:"type"`
	Title       string       `json:"title"`
	Status      int          `json:"status"`
	Detail      string       `json:"detail,omitempty"`
	EntityName  string       `json:"entityName,omitempty"`
	ErrorKey    string       `json:"errorKey,omitempty"`
	Message     string       `json:"message,omitempty"`
	Params      string       `json:"params,omitempty"`
	Path        string       `json:"path,omitempty"`
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

type FieldError struct {
	ObjectName string `json:"objectName"`
	Field      string `json:"field"`
	Message    string `json:"message"`
}

func badRequestAlert(problemType, title, entityName, errorKey string) Problem {
	return Problem{
		Type:       problemType,
		Title:      title,
		Status:     http.StatusBadRequest,
		EntityName: entityName,
		ErrorKey:   errorKey,
		Message:    "error." + errorKey,
		Params:     entityName,
	}
}

func simpleProblem(status int, title, message string) Problem {
	return Problem{
		Type:    defaultProblemType,
		Title:   title,
		Status:  status,
		Message: message,
	}
}

var (
	invalidPasswordProblem  = badRequestAlert(invalidPasswordType, "Incorrect Password!", userManagementEntity, "incorrectpassword")
	emailAlreadyUsedProblem = badRequestAlert(emailAlreadyUsedType, "Email is already in use!", userManagementEntity, "emailexists")
	loginAlreadyUsedProblem = badRequestAlert(loginAlreadyUsedType, "Login name already used!", userManagementEntity, "userexists")
	emailNotFoundProblem    = badRequestAlert(emailNotFoundType, "Email address not registered", userManagementEntity, "emailnotfound")
)

// writeProblem responde con el problema y, si tiene errorKey, los headers X-<app>-error / X-<app>-params.
func writeProblem(c *gin.Context, appName string, p Problem) {
	if p.Path == "" {
		p.Path = c.Request.URL.Path
	}
	if p.ErrorKey != "" && appName != "" {
		c.Header("X-"+appName+"-error", "error."+p.ErrorKey)
		c.Header("X-"+appName+"-params", p.EntityName)
	}
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(p.Status, p)
}

// writeAlert agrega los headers de aviso de éxito.
func writeAlert(c *gin.Context, appName, message, param string) {
	c.Header("X-"+appName+"-alert", message)
	c.Header("X-"+appName+"-params", param)
}

// validationProblem traduce errores de ozzo-validation a un problema 400.
func validationProblem(objectName string, err error) Problem {
	p := Problem{
		Type:    constraintViolationType,
		Title:   "Method argument not valid",
		Status:  http.StatusBadRequest,
		Message: validationErrorMessage,
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make([]string, 0, len(errs))
		for f := range errs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			p.FieldErrors = append(p.FieldErrors, FieldError{
				ObjectName: objectName,
				Field:      f,
				Message:    errs[f].Error(),
			})
		}
	} else {
		p.Detail = err.Error()
	}
	return p
}

// writeServiceError traduce los errores de servicio al código HTTP correspondiente.
func writeServiceError(c *gin.Context, logger *zap.Logger, appName string, err error) {
	switch {
	case errors.Is(err, service.ErrLoginAlreadyUsed):
		writeProblem(c, appName, loginAlreadyUsedProblem)
	case errors.Is(err, service.ErrEmailAlreadyUsed):
		writeProblem(c, appName, emailAlreadyUsedProblem)
	case errors.Is(err, service.ErrInvalidPassword):
		writeProblem(c, appName, invalidPasswordProblem)
	case errors.Is(err, service.ErrEmailNotFound):
		writeProblem(c, appName, emailNotFoundProblem)
	case errors.Is(err, service.ErrResetKeyExpired):
		writeProblem(c, appName, badRequestAlert(defaultProblemType, "Reset key has expired", userManagementEntity, "resetkeyexpired"))
	case errors.Is(err, service.ErrTooManyRequests):
		writeProblem(c, appName, simpleProblem(http.StatusTooManyRequests, "Too Many Requests", "error.http.429"))
	case errors.Is(err, logging.ErrInvalidLevel):
		writeProblem(c, appName, simpleProblem(http.StatusBadRequest, "Invalid log level", err.Error()))
	case errors.Is(err, service.ErrActivationKeyNotFound):
		writeProblem(c, appName, simpleProblem(http.StatusNotFound, "No user was found for this activation key", "error.activationkeynotfound"))
	case errors.Is(err, service.ErrResetKeyNotFound):
		writeProblem(c, appName, simpleProblem(http.StatusNotFound, "No user was found for this reset key", "error.resetkeynotfound"))
	case errors.Is(err, service.ErrUserNotFound):
		writeProblem(c, appName, simpleProblem(http.StatusNotFound, "User could not be found", "error.http.404"))
	case errors.Is(err, service.ErrUserNotActivated), errors.Is(err, service.ErrAuthenticationFailed):
		writeProblem(c, appName, simpleProblem(http.StatusUnauthorized, "Unauthorized", defaultUnauthorizedMessage))
	default:
		logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		writeProblem(c, appName, simpleProblem(http.StatusInternalServerError, "Internal Server Error", "error.http.500"))
	}
}
