package configs

import (
	"testing"
)

// setS3Env fills the required S3 variables so LoadConfig can get past them.
func setS3Env(t *testing.T) {
	t.Helper()
	t.Setenv("S3_BUCKET_NAME", "wirechat-test")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_ACCESS_KEY_ID", "test-key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "test-secret")
}

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	setS3Env(t)
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("environment = %q, want development", cfg.Environment)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.JWTSecret == "" {
		t.Error("no development fallback for JWT secret")
	}
	if cfg.DatabaseDSN == "" {
		t.Error("no development fallback for database DSN")
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("allowed origins = %v, want empty", cfg.AllowedOrigins)
	}
}

func TestLoadConfigParsesOrigins(t *testing.T) {
	setS3Env(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("origins = %v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("origin[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	setS3Env(t)

	tests := []struct {
		name string
		port string
	}{
		{"not a number", "eighty"},
		{"privileged", "80"},
		{"out of range", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PORT", tt.port)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("PORT=%s accepted", tt.port)
			}
		})
	}
}

func TestLoadConfigProductionRequirements(t *testing.T) {
	setS3Env(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://prod")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("production config accepted without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("production config accepted without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://prod")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("complete production config rejected: %v", err)
	}
	if cfg.JWTSecret != "prod-secret" {
		t.Errorf("jwt secret = %q", cfg.JWTSecret)
	}
}

func TestLoadConfigRequiresS3Settings(t *testing.T) {
	setS3Env(t)
	t.Setenv("S3_BUCKET_NAME", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("config accepted without S3_BUCKET_NAME")
	}
}
