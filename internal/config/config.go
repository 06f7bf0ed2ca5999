package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"
)

type Config struct {
	HTTPAddr           string   `env:"HTTP_ADDR" envDefault:":3000"`
	GRPCAddr           string   `env:"GRPC_ADDR" envDefault:":9090"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	IdentityBackend        string `env:"IDENTITY_BACKEND" envDefault:"supabase"`
	SupabaseURL            string `env:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`

	DatabaseURL   string `env:"DATABASE_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret      string        `env:"JWT_SECRET"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"smec-conclave"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	ResetTokenTTL  time.Duration `env:"RESET_TOKEN_TTL" envDefault:"30m"`

	ResetRedirectURL string `env:"RESET_REDIRECT_URL" envDefault:"http://localhost:5173/reset-password"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	EmailUser    string `env:"EMAIL_USER"`
	EmailPass    string `env:"EMAIL_PASS"`
	MailFromName string `env:"MAIL_FROM_NAME" envDefault:"SMEC Global Innovators Conclave"`
	BrochurePath string `env:"BROCHURE_PATH" envDefault:"public/brochure.pdf"`

	HealthProbeInterval time.Duration `env:"HEALTH_PROBE_INTERVAL" envDefault:"30s"`
	HealthProbeTimeout  time.Duration `env:"HEALTH_PROBE_TIMEOUT" envDefault:"5s"`
}

// Load reads an optional .env file from the working directory and then the
// process environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	var err error
	if cfg.JWTSecret, err = fromFile("JWT_SECRET", cfg.JWTSecret); err != nil {
		return Config{}, err
	}
	if cfg.EmailPass, err = fromFile("EMAIL_PASS", cfg.EmailPass); err != nil {
		return Config{}, err
	}
	cfg.IdentityBackend = strings.ToLower(strings.TrimSpace(cfg.IdentityBackend))
	return cfg, nil
}

// fromFile lets KEY_FILE point at a mounted secret; it takes precedence over KEY.
func fromFile(key, current string) (string, error) {
	path := os.Getenv(key + "_FILE")
	if path == "" {
		return current, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s_FILE: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Validate reports the settings the selected identity backend cannot run
// without.
func (c Config) Validate() error {
	var missing []string
	switch c.IdentityBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseServiceRoleKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
		}
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendLocal:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
		if c.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_BACKEND %q", c.IdentityBackend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
