package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	AuthMode    string   `mapstructure:"AUTH_MODE"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	DevUserID      string `mapstructure:"DEV_USER_ID"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	TimeZone               string  `mapstructure:"TIME_ZONE"`
	SlotWindowDays         int     `mapstructure:"SLOT_WINDOW_DAYS"`
	DefaultConsultationFee float64 `mapstructure:"DEFAULT_CONSULTATION_FEE"`

	MailFrom      string        `mapstructure:"MAIL_FROM"`
	SMTPHost      string        `mapstructure:"SMTP_HOST"`
	SMTPPort      int           `mapstructure:"SMTP_PORT"`
	SMTPUsername  string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword  string        `mapstructure:"SMTP_PASSWORD"`
	AMQPURL       string        `mapstructure:"AMQP_URL"`
	AMQPExchange  string        `mapstructure:"AMQP_EXCHANGE"`
	NotifyTimeout time.Duration `mapstructure:"NOTIFY_TIMEOUT"`

	location *time.Location
}

var keys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "DEV_USER_ID",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"TIME_ZONE", "SLOT_WINDOW_DAYS", "DEFAULT_CONSULTATION_FEE",
	"MAIL_FROM", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
	"AMQP_URL", "AMQP_EXCHANGE", "NOTIFY_TIMEOUT",
}

// Load reads configuration from the environment. Variables from the given
// dotenv files (default ".env") fill in anything the process environment
// does not already set.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_ISSUER", "carebook")
	v.SetDefault("DEV_USER_ID", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("TIME_ZONE", "UTC")
	v.SetDefault("SLOT_WINDOW_DAYS", 30)
	v.SetDefault("DEFAULT_CONSULTATION_FEE", 500.00)
	v.SetDefault("MAIL_FROM", "no-reply@carebook.local")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("AMQP_EXCHANGE", "carebook.events")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A single comma-separated env value arrives as one element.
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedAuthMode returns AUTH_MODE, or "development" in a development
// environment and "jwt" otherwise.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Location is the clinic time zone used for slot dates and times.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) DevUser() uuid.UUID {
	id, err := uuid.Parse(c.DevUserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool sizes: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}

	switch mode := c.ResolvedAuthMode(); mode {
	case "development":
		if _, err := uuid.Parse(c.DevUserID); err != nil {
			return fmt.Errorf("DEV_USER_ID must be a UUID: %w", err)
		}
	case "jwt":
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes when AUTH_MODE is \"jwt\"")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}

	if c.SlotWindowDays <= 0 {
		return fmt.Errorf("SLOT_WINDOW_DAYS must be positive")
	}
	if c.DefaultConsultationFee < 0 {
		return fmt.Errorf("DEFAULT_CONSULTATION_FEE must not be negative")
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.location = loc
	return nil
}
