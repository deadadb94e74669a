package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	DBMigrate      bool   `env:"DB_MIGRATE" envDefault:"true"`
	AppName        string `env:"APP_NAME" envDefault:"astroApp"`
	AppDisplayName string `env:"APP_DISPLAY_NAME" envDefault:"Astro Starter"`
	AppProfile     string `env:"APP_PROFILE" envDefault:"prod"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir      string `env:"STATIC_DIR" envDefault:"webapp/dist"`

	JWTPrivateKeyPath         string `env:"JWT_PRIVATE_KEY_PATH" envDefault:"config/jwt/privateKey.pem"`
	JWTIssuer                 string `env:"JWT_ISSUER" envDefault:"https://astro-starter/issuer"`
	JWTTokenValiditySeconds   int64  `env:"JWT_TOKEN_VALIDITY_SECONDS" envDefault:"86400"`
	JWTRememberMeValiditySecs int64  `env:"JWT_TOKEN_VALIDITY_REMEMBER_ME_SECONDS" envDefault:"2592000"`
	BcryptCost                int    `env:"BCRYPT_COST" envDefault:"10"`

	MailBaseURL  string `env:"MAIL_BASE_URL" envDefault:"http://127.0.0.1:8080"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"astro@localhost"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	ResetRateMax    int           `env:"RESET_RATE_LIMIT_MAX" envDefault:"3"`
	ResetRateWindow time.Duration `env:"RESET_RATE_LIMIT_WINDOW" envDefault:"1h"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TokenValidity devuelve la vigencia normal del JWT.
func (c *Config) TokenValidity() time.Duration {
	return time.Duration(c.JWTTokenValiditySeconds) * time.Second
}

// RememberMeValidity devuelve la vigencia del JWT con "remember me".
func (c *Config) RememberMeValidity() time.Duration {
	return time.Duration(c.JWTRememberMeValiditySecs) * time.Second
}

// IsDev indica si el perfil activo es de desarrollo.
func (c *Config) IsDev() bool {
	return c.AppProfile == "dev"
}
