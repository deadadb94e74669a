package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"astro-starter/internal/domain"
	"astro-starter/internal/metrics"
	"astro-starter/internal/service"
)

const unmatchedRoute = "NOT_FOUND"

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	m *metrics.Metrics,
	tokens *service.TokenProvider,
	accountH *AccountHandler,
	userH *UserHandler,
	mgmtH *ManagementHandler,
	spaH *SPAHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y métricas.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	if m != nil {
		r.Use(metricsMiddleware(m))
	}

	requireAuth := JWTAuthMiddleware(tokens)
	requireAdmin := RequireRole(domain.RoleAdmin)

	api := r.Group("/api", jsonContentTypeMiddleware())
	api.POST("/register", accountH.Register)
	api.GET("/activate", accountH.Activate)
	api.POST("/authenticate", accountH.Authorize)
	api.GET("/authenticate", OptionalJWTMiddleware(tokens), accountH.IsAuthenticated)
	api.POST("/account/reset-password/init", accountH.RequestPasswordReset)
	api.POST("/account/reset-password/finish", accountH.FinishPasswordReset)

	account := api.Group("/account", requireAuth)
	account.GET("", accountH.GetAccount)
	account.POST("", accountH.SaveAccount)
	account.POST("/change-password", accountH.ChangePassword)

	users := api.Group("/users", requireAuth, requireAdmin)
	users.GET("", userH.GetAllUsers)
	users.POST("", userH.CreateUser)
	users.PUT("", userH.UpdateUser)
	users.GET("/authorities", userH.GetAuthorities)
	users.GET("/:login", userH.GetUser)
	users.DELETE("/:login", userH.DeleteUser)

	mgmt := r.Group("/management", jsonContentTypeMiddleware())
	mgmt.GET("/info", mgmtH.Info)
	mgmt.GET("/health", mgmtH.Health)
	mgmt.GET("/prometheus", mgmtH.Prometheus)

	admin := mgmt.Group("", requireAuth, requireAdmin)
	admin.GET("/loggers", mgmtH.Loggers)
	admin.POST("/loggers/:name", mgmtH.UpdateLogger)
	admin.GET("/env", mgmtH.Env)
	admin.GET("/configprops", mgmtH.ConfigProps)
	admin.GET("/metrics", mgmtH.Metrics)
	admin.GET("/threaddump", mgmtH.ThreadDump)

	if spaH != nil {
		r.NoRoute(spaH.NoRoute)
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware registra la duración por ruta registrada, no por path concreto.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		uri := c.FullPath()
		if uri == "" {
			uri = unmatchedRoute
		}
		m.Observe(c.Request.Method, uri, c.Writer.Status(), time.Since(start))
	}
}

// jsonContentTypeMiddleware fija Content-Type: application/json por defecto; los handlers pueden sobrescribirlo.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
