package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PASSIFLORA_ENV", "PASSIFLORA_SERVER_HOST", "PASSIFLORA_SERVER_PORT",
		"PASSIFLORA_DATABASE_URL", "PASSIFLORA_DATA_DIR", JWTSecretEnv,
		"PASSIFLORA_MAX_UPLOAD_SIZE", "PASSIFLORA_RATE_LIMIT_RPS", "PASSIFLORA_RATE_LIMIT_BURST",
		"PASSIFLORA_RECONCILE_INTERVAL_HOURS", "PASSIFLORA_STALE_UPLOAD_HOURS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, "./uploads", cfg.DataDir)
	assert.Equal(t, int64(100*1000*1000*1000), cfg.MaxUploadSize)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.Equal(t, 24*time.Hour, cfg.StaleUploadAge)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PASSIFLORA_SERVER_PORT", "9090")
	t.Setenv("PASSIFLORA_DATA_DIR", "/srv/blobs")
	t.Setenv("PASSIFLORA_MAX_UPLOAD_SIZE", "1024")
	t.Setenv("PASSIFLORA_RATE_LIMIT_RPS", "2.5")
	t.Setenv("PASSIFLORA_STALE_UPLOAD_HOURS", "0.5")
	t.Setenv("PASSIFLORA_RATE_LIMIT_BURST", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/srv/blobs", cfg.DataDir)
	assert.Equal(t, int64(1024), cfg.MaxUploadSize)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 30*time.Minute, cfg.StaleUploadAge)
	assert.Equal(t, 10, cfg.RateLimitBurst, "invalid values fall back to the default")
}

func TestLoad_AllowRegistration(t *testing.T) {
	tests := []struct {
		name  string
		value *string
		want  bool
	}{
		{"unset", nil, false},
		{"false", strPtr("false"), false},
		{"FALSE", strPtr("FALSE"), false},
		{"true", strPtr("true"), true},
		{"any other value", strPtr("yes"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != nil {
				t.Setenv("PASSIFLORA_ALLOW_REGISTRATION", *tt.value)
			} else {
				t.Setenv("PASSIFLORA_ALLOW_REGISTRATION", "")
				os.Unsetenv("PASSIFLORA_ALLOW_REGISTRATION")
			}
			assert.Equal(t, tt.want, Load().AllowRegistration)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"dev without secret", Config{Env: "development"}, nil},
		{"production with secret", Config{Env: "production", JWTSecret: "s3cret"}, nil},
		{"production without secret", Config{Env: "Production"}, ErrMissingSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func strPtr(s string) *string { return &s }
