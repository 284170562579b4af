// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret    = "your-secret-key-change-in-production"
	minProductionSecret = 32
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret            string  `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes        int     `mapstructure:"JWT_TTL_MINUTES"`
	Port                 string  `mapstructure:"PORT"`
	DBHost               string  `mapstructure:"DB_HOST"`
	DBPort               string  `mapstructure:"DB_PORT"`
	DBUser               string  `mapstructure:"DB_USER"`
	DBPassword           string  `mapstructure:"DB_PASSWORD"`
	DBName               string  `mapstructure:"DB_NAME"`
	DBSSLMode            string  `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns       int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns       int     `mapstructure:"DB_MAX_IDLE_CONNS"`
	MigrationsAuto       bool    `mapstructure:"MIGRATIONS_AUTO"`
	RedisURL             string  `mapstructure:"REDIS_URL"`
	AllowedOrigins       string  `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags         string  `mapstructure:"FEATURE_FLAGS"`
	Env                  string  `mapstructure:"APP_ENV"`
	PublicBaseURL        string  `mapstructure:"PUBLIC_BASE_URL"`
	AvatarDir            string  `mapstructure:"AVATAR_DIR"`
	AvatarMaxUploadMB    int     `mapstructure:"AVATAR_MAX_UPLOAD_MB"`
	ResetTokenTTLMinutes int     `mapstructure:"RESET_TOKEN_TTL_MINUTES"`
	SMTPHost             string  `mapstructure:"SMTP_HOST"`
	SMTPPort             int     `mapstructure:"SMTP_PORT"`
	SMTPUser             string  `mapstructure:"SMTP_USER"`
	SMTPPass             string  `mapstructure:"SMTP_PASS"`
	SMTPFrom             string  `mapstructure:"SMTP_FROM"`
	DebugRetentionDays   int     `mapstructure:"DEBUG_LOG_RETENTION_DAYS"`
	TracingEnabled       bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter      string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint         string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio   float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
	DevBootstrapRoot     bool    `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername      string  `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail         string  `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword      string  `mapstructure:"DEV_ROOT_PASSWORD"`
}

// defaults apply to every profile; config.yml and the environment override them.
var defaults = map[string]any{
	"PORT":                     "8080",
	"APP_ENV":                  "development",
	"DB_HOST":                  "localhost",
	"DB_PORT":                  "5432",
	"DB_USER":                  "user",
	"DB_PASSWORD":              "password",
	"DB_NAME":                  "beaconofknowledge",
	"DB_SSLMODE":               "disable",
	"DB_MAX_OPEN_CONNS":        25,
	"DB_MAX_IDLE_CONNS":        5,
	"MIGRATIONS_AUTO":          false,
	"REDIS_URL":                "localhost:6379",
	"JWT_SECRET":               defaultJWTSecret,
	"JWT_TTL_MINUTES":          60 * 24,
	"ALLOWED_ORIGINS":          "http://localhost:5173,http://127.0.0.1:5173",
	"FEATURE_FLAGS":            "",
	"PUBLIC_BASE_URL":          "http://localhost:5173",
	"AVATAR_DIR":               "public/avatars",
	"AVATAR_MAX_UPLOAD_MB":     5,
	"RESET_TOKEN_TTL_MINUTES":  60,
	"SMTP_HOST":                "",
	"SMTP_PORT":                587,
	"SMTP_USER":                "",
	"SMTP_PASS":                "",
	"SMTP_FROM":                "no-reply@beaconofknowledge.local",
	"DEBUG_LOG_RETENTION_DAYS": 30,
	"TRACING_ENABLED":          false,
	"TRACING_EXPORTER":         "stdout",
	"TRACING_SAMPLE_RATIO":     1.0,
	"OTLP_ENDPOINT":            "localhost:4318",
	"DEV_BOOTSTRAP_ROOT":       false,
	"DEV_ROOT_USERNAME":        "beacon_root",
	"DEV_ROOT_EMAIL":           "root@beaconofknowledge.local",
	"DEV_ROOT_PASSWORD":        "",
}

// LoadConfig layers defaults, config.yml, config.<APP_ENV>.yml, .env and the process
// environment, later sources winning, and validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	if err := mergeProfile(viper.GetString("APP_ENV")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// mergeProfile overlays config.<env>.yml when present. Development and test have no profile.
func mergeProfile(env string) error {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" || env == "development" || env == "test" {
		return nil
	}
	viper.SetConfigName("config." + env)
	err := viper.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read profile config 'config.%s.yml': %w", env, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every problem at once. Production additionally rejects the development
// secret, weak database credentials and plaintext database connections.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Port == "", "PORT is required")
	check(c.JWTSecret == "", "JWT_SECRET is required")
	check(c.JWTTTLMinutes < 0, "JWT_TTL_MINUTES must not be negative")
	check(c.DebugRetentionDays < 0, "DEBUG_LOG_RETENTION_DAYS must not be negative")

	if c.IsProduction() {
		check(c.JWTSecret == defaultJWTSecret, "JWT_SECRET must be changed from the default value in production")
		check(len(c.JWTSecret) < minProductionSecret, "JWT_SECRET must be at least 32 characters in production")
		check(c.DBPassword == "" || c.DBPassword == "password", "a strong DB_PASSWORD is required in production")
		check(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE must enable TLS in production")
	}
	return errors.Join(errs...)
}

// Warnings lists settings that are allowed but unwise for the active profile.
func (c *Config) Warnings() []string {
	var out []string
	if c.IsProduction() && c.AllowedOrigins == "*" {
		out = append(out, "ALLOWED_ORIGINS is '*' in production")
	}
	if !c.IsProduction() && len(c.JWTSecret) < minProductionSecret {
		out = append(out, "JWT_SECRET is shorter than 32 characters and would be rejected in production")
	}
	if c.TracingEnabled && c.TracingExporter == "otlp" && c.OTLPEndpoint == "" {
		out = append(out, "TRACING_EXPORTER is otlp but OTLP_ENDPOINT is empty")
	}
	return out
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode,
	)
}

// DatabaseURL renders the same connection as a postgres:// URL for golang-migrate.
func (c *Config) DatabaseURL() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}
