package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NOTULIO_JWT_SECRET", "test-secret")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
}

func TestLoad_Defaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host, got %q", cfg.Server.Host)
	}
	if cfg.AI.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Expected default model, got %q", cfg.AI.Gemini.Model)
	}
	if cfg.Cache.Capacity != 256 {
		t.Errorf("Expected default cache capacity 256, got %d", cfg.Cache.Capacity)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Expected JWT secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.AI.Gemini.APIKey != "test-gemini-key" {
		t.Errorf("Expected Gemini key from env, got %q", cfg.AI.Gemini.APIKey)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("NOTULIO_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Error("Expected error when JWT secret is missing")
	}
}

func TestLoad_MissingGeminiKey(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("NOTULIO_JWT_SECRET", "test-secret")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_AI_API_KEY", "")

	if _, err := Load(""); err == nil {
		t.Error("Expected error when Gemini key is missing")
	}
}

func TestLoad_EmailRequiresFromAddress(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setRequiredEnv(t)
	t.Setenv("SENDGRID_API_KEY", "sg-key")
	t.Setenv("EMAIL_FROM_ADDRESS", "")
	t.Setenv("SENDGRID_FROM_EMAIL", "")

	if _, err := Load(""); err == nil {
		t.Error("Expected error when email is enabled without a from address")
	}
}

func TestLoad_Cached(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setRequiredEnv(t)

	first, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Error("Load should return the cached config on repeat calls")
	}
}

func TestTTLDurationHelpers(t *testing.T) {
	auth := Auth{TokenTTL: "2h", VerifyTTL: "30m"}
	if auth.TokenTTLDuration() != 2*time.Hour {
		t.Errorf("Expected 2h token TTL, got %v", auth.TokenTTLDuration())
	}
	if auth.VerifyTTLDuration() != 30*time.Minute {
		t.Errorf("Expected 30m verify TTL, got %v", auth.VerifyTTLDuration())
	}

	// Invalid values fall back to defaults.
	bad := Auth{TokenTTL: "garbage", VerifyTTL: ""}
	if bad.TokenTTLDuration() != 168*time.Hour {
		t.Errorf("Expected token TTL fallback, got %v", bad.TokenTTLDuration())
	}
	if bad.VerifyTTLDuration() != 24*time.Hour {
		t.Errorf("Expected verify TTL fallback, got %v", bad.VerifyTTLDuration())
	}

	cache := Cache{TTL: "1h"}
	if cache.TTLDuration() != time.Hour {
		t.Errorf("Expected 1h cache TTL, got %v", cache.TTLDuration())
	}
	if (Cache{}).TTLDuration() != 24*time.Hour {
		t.Errorf("Expected cache TTL fallback, got %v", (Cache{}).TTLDuration())
	}
}

func TestPostProcessConfig_InvalidDuration(t *testing.T) {
	cfg := &Config{Cache: Cache{TTL: "not-a-duration"}}
	if err := postProcessConfig(cfg); err == nil {
		t.Error("Expected error for invalid duration")
	}
}
