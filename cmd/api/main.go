package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"astro-starter/internal/config"
	"astro-starter/internal/db"
	"astro-starter/internal/email"
	apihttp "astro-starter/internal/http"
	"astro-starter/internal/logging"
	"astro-starter/internal/metrics"
	"astro-starter/internal/repository"
	"astro-starter/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logs, err := logging.New(cfg.AppProfile, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	logger := logs.Root()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		logger.Info("database migrations applied")
	}

	userRepo := repository.NewPgUserRepository(pool)
	authorityRepo := repository.NewPgAuthorityRepository(pool)

	healthChecks := map[string]apihttp.HealthCheck{
		"database": func(ctx context.Context) error { return db.Ping(ctx, pool) },
	}
	userCache := service.NewMemoryUserCache(cfg.CacheTTL)
	resetLimiter := service.NewMemoryRateLimiter(cfg.ResetRateWindow, cfg.ResetRateMax)
	if cfg.RedisAddr != "" {
		redisClient := newRedisClient(ctx, cfg, logger)
		defer redisClient.Close()
		userCache = service.NewRedisUserCache(redisClient, cfg.CacheTTL, logs.Logger("cache"))
		resetLimiter = service.NewRedisRateLimiter(redisClient, "reset", cfg.ResetRateWindow, cfg.ResetRateMax)
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	hasher, err := service.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}

	privateKey, err := service.LoadRSAPrivateKey(cfg.JWTPrivateKeyPath)
	if err != nil {
		logger.Fatal("jwt private key", zap.String("path", cfg.JWTPrivateKeyPath), zap.Error(err))
	}
	tokens, err := service.NewTokenProvider(privateKey, cfg.JWTIssuer, cfg.TokenValidity(), cfg.RememberMeValidity())
	if err != nil {
		logger.Fatal("token provider", zap.Error(err))
	}

	mailSvc := newMailService(cfg, logs)

	userSvc := service.NewUserService(logs.Logger("service.user"), userRepo, authorityRepo, hasher, userCache, resetLimiter)
	authSvc := service.NewAuthenticationService(logs.Logger("service.auth"), userRepo, hasher, userCache)

	m := metrics.New()
	webLogger := logs.Logger("web")
	accountHandler := apihttp.NewAccountHandler(webLogger, cfg.AppName, userSvc, authSvc, tokens, mailSvc)
	userHandler := apihttp.NewUserHandler(webLogger, cfg.AppName, userSvc, mailSvc)
	mgmtHandler := apihttp.NewManagementHandler(logs.Logger("management"), cfg, logs, m, healthChecks)
	spaHandler := apihttp.NewSPAHandler(cfg.AppName, cfg.StaticDir)
	router := apihttp.NewRouter(logs.Logger("http"), m, tokens, accountHandler, userHandler, mgmtHandler, spaHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("profile", cfg.AppProfile))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

// newRedisClient crea el cliente; si el ping falla se sigue arrancando y la caché degrada a misses.
func newRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
	}
	return client
}

func newMailService(cfg *config.Config, logs *logging.Registry) *service.MailService {
	logger := logs.Logger("mail")
	renderer, err := email.NewRenderer()
	if err != nil {
		logger.Fatal("mail templates", zap.Error(err))
	}

	sender := email.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		smtp, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			sender = smtp
		}
	}
	return service.NewMailService(logger, sender, renderer, cfg.AppDisplayName, cfg.MailBaseURL)
}

