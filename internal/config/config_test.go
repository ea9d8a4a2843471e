package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, ":4000", cfg.Addr())
	assert.Equal(t, "readi.db", cfg.DatabasePath)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "gemini-2.0-flash", cfg.AIModel)
	assert.Equal(t, "readi://", cfg.IOSAppScheme)
	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.Equal(t, 24*time.Hour, cfg.PrepLeadTime)
	assert.Equal(t, 4, cfg.SyncConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_EXPIRES_IN", "12h")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")
	t.Setenv("SYNC_INTERVAL", "15m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "fallback-key", cfg.GeminiAPIKey)
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)

	t.Setenv("GEMINI_API_KEY", "primary-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "primary-key", cfg.GeminiAPIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt_secret: "+testSecret+"\ndatabase_path: /tmp/x.db\nweb_url: https://app.example.com\n"), 0o644))
	t.Setenv("WEB_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.JWTSecret)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.Equal(t, "https://env.example.com", cfg.WebURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidDurations(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "JWT_EXPIRES_IN")

	t.Setenv("JWT_EXPIRES_IN", "7d")
	t.Setenv("PREP_LEAD_TIME", "tomorrow")
	_, err = Load("")
	assert.ErrorContains(t, err, "PREP_LEAD_TIME")
}

func TestValidate(t *testing.T) {
	cfg := &Config{JWTSecret: "short", Port: 0, SyncConcurrency: 0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "JWT_SECRET")
	assert.ErrorContains(t, err, "PORT")
	assert.ErrorContains(t, err, "DATABASE_PATH")
	assert.ErrorContains(t, err, "SYNC_CONCURRENCY")

	assert.Error(t, cfg.ValidateCalDAV())
	cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword = "https://caldav.icloud.com/", "ada", "pw"
	assert.NoError(t, cfg.ValidateCalDAV())
}

func TestValidate_JWTOnlyForTokenCommands(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate(), "sync and publish run without a JWT secret")
	assert.ErrorContains(t, cfg.ValidateAuth(), "JWT_SECRET")

	cfg.JWTSecret = testSecret
	assert.NoError(t, cfg.ValidateAuth())
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"0d", 0, true},
		{"xd", 0, true},
		{"-1h", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
