package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "DB_URL=postgres://localhost/otp\nJWT_SECRET=s3cret\nMARKUP_MULTIPLIER=1.5\nACQUIRE_TIMEOUT=5s\nADMIN_CHAT_ID=42\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/otp", cfg.DB_URL)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 1.5, cfg.MarkupMultiplier)
	assert.Equal(t, 5*time.Second, cfg.AcquireTimeout)
	assert.Equal(t, int64(42), cfg.AdminChatID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, float64(50), cfg.MinTopUp)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("DB_URL", "postgres://env/otp")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/otp", cfg.DB_URL)
	assert.Equal(t, 1.70, cfg.MarkupMultiplier)
}

func TestConfig_Validate(t *testing.T) {
	base := Config{DB_URL: "x", JWTSecret: "y", MarkupMultiplier: 1.7, MinTopUp: 50, MaxTopUp: 5000}
	require.NoError(t, base.Validate())

	noDB := base
	noDB.DB_URL = ""
	assert.Error(t, noDB.Validate())

	lowMarkup := base
	lowMarkup.MarkupMultiplier = 0.9
	assert.Error(t, lowMarkup.Validate())

	badBounds := base
	badBounds.MaxTopUp = 10
	assert.Error(t, badBounds.Validate())
}
