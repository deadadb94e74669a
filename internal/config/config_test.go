package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/astro")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 24*time.Hour, cfg.TokenValidity())
	assert.Equal(t, 30*24*time.Hour, cfg.RememberMeValidity())
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.DBMigrate)
	assert.False(t, cfg.IsDev())
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "unset-below")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestPropertySourcesObfuscateSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/astro")
	t.Setenv("SMTP_PASS", "hunter2")
	t.Setenv("REDIS_PASSWORD", "redis-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	sources := cfg.PropertySources()
	require.Len(t, sources, 2)

	app := sources[0].Properties
	assert.Equal(t, obfuscatedValue, app["SMTP_PASS"].Value)
	assert.Equal(t, obfuscatedValue, app["REDIS_PASSWORD"].Value)
	assert.Equal(t, "8080", app["HTTP_PORT"].Value)

	envs := sources[1].Properties
	assert.Equal(t, obfuscatedValue, envs["SMTP_PASS"].Value)
}

func TestBeansGroupedByPrefix(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/astro")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	beans := cfg.Beans()
	require.Contains(t, beans, "jwt")
	assert.Equal(t, "86400", beans["jwt"]["JWT_TOKEN_VALIDITY_SECONDS"])
	require.Contains(t, beans, "smtp")
	assert.Equal(t, "587", beans["smtp"]["SMTP_PORT"])
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, IsSecretKey("db.Password"))
	assert.True(t, IsSecretKey("CLIENT_SECRET"))
	assert.True(t, IsSecretKey("aws.credentials"))
	assert.False(t, IsSecretKey("HTTP_PORT"))
	assert.True(t, IsSecretKey("GITHUB_TOKEN"))
	assert.True(t, IsSecretKey("OPENAI_API_KEY"))
	assert.True(t, IsSecretKey("stripe.apiKey"))
	assert.False(t, IsSecretKey("JWT_TOKEN_VALIDITY_SECONDS"))
}

func TestPropertySourcesObfuscateTokensAndKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/astro")
	t.Setenv("GITHUB_TOKEN", "ghp_plaintext")
	t.Setenv("OPENAI_API_KEY", "sk-plaintext")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	envs := cfg.PropertySources()[1].Properties
	assert.Equal(t, obfuscatedValue, envs["GITHUB_TOKEN"].Value)
	assert.Equal(t, obfuscatedValue, envs["OPENAI_API_KEY"].Value)
}

func TestPropertySourcesRedactURLPassword(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://astro:s3cret@db:5432/astro?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	app := cfg.PropertySources()[0].Properties
	assert.Equal(t, "postgres://astro:******@db:5432/astro?sslmode=disable", app["DATABASE_URL"].Value)
	assert.Equal(t, "http://127.0.0.1:8080", app["MAIL_BASE_URL"].Value)
}
