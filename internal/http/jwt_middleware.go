package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"astro-starter/internal/service"
)

const (
	authIdentityKey     = "auth_identity"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// JWTAuthMiddleware exige un bearer token válido y guarda la identidad en el contexto.
func JWTAuthMiddleware(tokens *service.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			writeProblem(c, "", simpleProblem(http.StatusInternalServerError, "Internal Server Error", "jwt not configured"))
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			writeProblem(c, "", simpleProblem(http.StatusUnauthorized, "Unauthorized", defaultUnauthorizedMessage))
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			writeProblem(c, "", simpleProblem(http.StatusUnauthorized, "Unauthorized", defaultUnauthorizedMessage))
			return
		}

		setIdentity(c, claims.Identity())
		c.Next()
	}
}

// OptionalJWTMiddleware guarda la identidad si hay un token válido; si no, sigue como anónimo.
func OptionalJWTMiddleware(tokens *service.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens != nil {
			if token, ok := bearerToken(c); ok {
				if claims, err := tokens.Parse(token); err == nil {
					setIdentity(c, claims.Identity())
				}
			}
		}
		c.Next()
	}
}

// RequireRole corta con 403 si la identidad no tiene el rol. Debe ir después de JWTAuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			writeProblem(c, "", simpleProblem(http.StatusUnauthorized, "Unauthorized", defaultUnauthorizedMessage))
			return
		}
		if !identity.HasRole(role) {
			writeProblem(c, "", simpleProblem(http.StatusForbidden, "Forbidden", "error.http.403"))
			return
		}
		c.Next()
	}
}

// GetIdentity obtiene la identidad autenticada desde el contexto.
func GetIdentity(c *gin.Context) (service.Identity, bool) {
	val, ok := c.Get(authIdentityKey)
	if !ok {
		return service.Identity{}, false
	}
	identity, ok := val.(service.Identity)
	return identity, ok
}

func setIdentity(c *gin.Context, identity service.Identity) {
	c.Set(authIdentityKey, identity)
	c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), identity.Principal))
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
