package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_PORT", "")

	cfg := Load()

	assert.Equal(t, 8084, cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.EqualValues(t, 10<<20, cfg.UploadMaxBytes)
	assert.Equal(t, 5, cfg.UploadMaxFiles)
	assert.Equal(t, "/uploads", cfg.UploadBaseURL)
	assert.Equal(t, "taskchat:rooms", cfg.RedisChannel)
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", ":memory:")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("WS_ORIGIN_PATTERNS", "localhost:5173, example.com")
	t.Setenv("UPLOAD_BASE_URL", "https://cdn.example.com/files/")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"localhost:5173", "example.com"}, cfg.WSOriginPatterns)
	assert.Equal(t, "https://cdn.example.com/files", cfg.UploadBaseURL)
}

func TestValidate_MySQLDSNForcesParseTime(t *testing.T) {
	cfg := Config{
		DBDriver:       "mysql",
		DBDSN:          "root:pw@tcp(localhost:3306)/taskchat",
		JWTSecret:      "x",
		UploadMaxBytes: 1,
		UploadMaxFiles: 1,
	}
	require.NoError(t, cfg.Validate())
	assert.True(t, strings.Contains(cfg.DBDSN, "parseTime=true"), cfg.DBDSN)

	bad := cfg
	bad.DBDSN = "not a dsn"
	assert.Error(t, bad.Validate())

	unknown := cfg
	unknown.DBDriver = "oracle"
	assert.Error(t, unknown.Validate())
}
