package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// devAccessSecret backs share-token encryption when no ACCESS_SECRET is
// configured in development, so a fresh checkout can boot. Production
// refuses to start without an explicit secret.
const devAccessSecret = "medilink-dev-access-secret"

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	SQLitePath     string   `mapstructure:"SQLITE_PATH"`
	AccessSecret   string   `mapstructure:"ACCESS_SECRET"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	GroqAPIKey     string   `mapstructure:"GROQ_API_KEY"`
	GroqModel      string   `mapstructure:"GROQ_MODEL"`
	SupabaseURL    string   `mapstructure:"SUPABASE_URL"`
	SupabaseKey    string   `mapstructure:"SUPABASE_KEY"`
	MirrorMaxConns int32    `mapstructure:"MIRROR_MAX_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled     bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8501")
	v.SetDefault("ENV", "development")
	v.SetDefault("SQLITE_PATH", "medilink.db")
	v.SetDefault("GROQ_MODEL", "llama-3.1-8b-instant")
	v.SetDefault("MIRROR_MAX_CONNS", 4)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("SQLITE_PATH")
	v.BindEnv("ACCESS_SECRET")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("GROQ_API_KEY")
	v.BindEnv("GROQ_MODEL")
	v.BindEnv("SUPABASE_URL")
	v.BindEnv("SUPABASE_KEY")
	v.BindEnv("MIRROR_MAX_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		if cfg.AccessSecret == "" {
			cfg.AccessSecret = devAccessSecret
			log.Println("WARNING: Share tokens use a well-known fallback ACCESS_SECRET.")
		}
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MirrorEnabled reports whether the optional Supabase mirror should run.
func (c *Config) MirrorEnabled() bool {
	return c.SupabaseURL != ""
}

// Validate checks that the configuration is safe to run. Outside development
// mode JWT_SECRET must be set so real authentication is enforced, and in
// production ACCESS_SECRET must be set so record-sharing tokens are not
// derived from an empty passphrase.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
	}

	if c.IsProduction() && c.AccessSecret == "" {
		return fmt.Errorf("ACCESS_SECRET is required in production")
	}
	if c.AccessSecret != "" && len(c.AccessSecret) < 16 {
		return fmt.Errorf("ACCESS_SECRET must be at least 16 characters, got %d", len(c.AccessSecret))
	}

	if c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required")
	}

	// The mirror needs both halves of the Supabase credential pair.
	if c.SupabaseURL != "" && c.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_KEY is required when SUPABASE_URL is set")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
