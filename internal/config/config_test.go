package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("PORT")
	os.Unsetenv("SQLITE_PATH")
	os.Unsetenv("ENV")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8501" {
		t.Errorf("expected default port 8501, got %s", cfg.Port)
	}
	if cfg.SQLitePath != "medilink.db" {
		t.Errorf("expected default sqlite path medilink.db, got %s", cfg.SQLitePath)
	}
	if cfg.GroqModel == "" {
		t.Error("expected a default GROQ_MODEL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("SQLITE_PATH", "/tmp/records.db")
	os.Setenv("SUPABASE_URL", "postgres://supabase.example/db")
	defer os.Unsetenv("SQLITE_PATH")
	defer os.Unsetenv("SUPABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SQLitePath != "/tmp/records.db" {
		t.Errorf("expected SQLITE_PATH override, got %s", cfg.SQLitePath)
	}
	if !cfg.MirrorEnabled() {
		t.Error("expected MirrorEnabled() when SUPABASE_URL is set")
	}
}

func TestLoad_DevAccessSecretFallback(t *testing.T) {
	os.Unsetenv("ENV")
	os.Unsetenv("ACCESS_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessSecret == "" {
		t.Fatal("expected a fallback ACCESS_SECRET in development")
	}
	if len(cfg.AccessSecret) < 16 {
		t.Errorf("fallback secret too short: %d chars", len(cfg.AccessSecret))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("dev defaults must validate: %v", err)
	}
}

func TestLoad_DevAccessSecretExplicit(t *testing.T) {
	os.Setenv("ACCESS_SECRET", "an-explicit-dev-passphrase")
	defer os.Unsetenv("ACCESS_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessSecret != "an-explicit-dev-passphrase" {
		t.Errorf("expected explicit secret to win, got %q", cfg.AccessSecret)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}

func TestValidate_ProductionRequiresSecrets(t *testing.T) {
	c := &Config{Env: "production", SQLitePath: "medilink.db"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing JWT_SECRET in production")
	}

	c.JWTSecret = "0123456789abcdef0123456789abcdef"
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing ACCESS_SECRET in production")
	}

	c.AccessSecret = "a-long-shared-passphrase"
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ShortSecretsRejected(t *testing.T) {
	c := &Config{
		Env:          "production",
		SQLitePath:   "medilink.db",
		JWTSecret:    "short",
		AccessSecret: "also-short-hmm", // 14 chars
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for short JWT_SECRET")
	}
}

func TestValidate_MirrorNeedsKey(t *testing.T) {
	c := &Config{
		Env:         "development",
		SQLitePath:  "medilink.db",
		SupabaseURL: "postgres://supabase.example/db",
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error when SUPABASE_URL is set without SUPABASE_KEY")
	}

	c.SupabaseKey = "service-role-key"
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_TLSFilesRequired(t *testing.T) {
	c := &Config{Env: "development", SQLitePath: "medilink.db", TLSEnabled: true}
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing TLS_CERT_FILE")
	}
}
