package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
)

const defaultTTL = 30 * time.Minute

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port           string   `env:"PORT"                 envDefault:"8080"`
	StoreDriver    string   `env:"STORE_DRIVER"         envDefault:"postgres"`
	DatabaseURL    string   `env:"DATABASE_URL"`
	MongoURL       string   `env:"MONGODB_URL"`
	MongoDatabase  string   `env:"MONGODB_DATABASE"     envDefault:"limpopoconnect"`
	SQLitePath     string   `env:"SQLITE_PATH"          envDefault:"limpopoconnect.db"`
	JWTSecret      string   `env:"JWT_SECRET"`
	JWTIssuer      string   `env:"JWT_ISSUER"           envDefault:"limpopoconnect-api"`
	JWTTTLMinutes  string   `env:"JWT_TTL_MINUTES"      envDefault:"30"`
	CORSOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	AdsMaxPageSize int      `env:"ADS_MAX_PAGE_SIZE"    envDefault:"100"`
	SendGridAPIKey string   `env:"SENDGRID_API_KEY"`
	MailFrom       string   `env:"MAIL_FROM"            envDefault:"no-reply@limpopoconnect.co.za"`
	MailFromName   string   `env:"MAIL_FROM_NAME"       envDefault:"LimpopoConnect"`
	LogLevel       string   `env:"LOG_LEVEL"            envDefault:"info"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.MongoURL = strings.TrimSpace(c.MongoURL)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.SendGridAPIKey = strings.TrimSpace(c.SendGridAPIKey)

	var origins []string
	for _, origin := range c.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.CORSOrigins = origins
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AdsMaxPageSize < 1 {
		return errors.New("ADS_MAX_PAGE_SIZE must be positive")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverMongo:
		if c.MongoURL == "" {
			return errors.New("MONGODB_URL is required")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// JWTTTL is the access-token lifetime. Unparsable or non-positive values
// fall back to 30 minutes.
func (c Config) JWTTTL() time.Duration {
	minutes, err := strconv.Atoi(strings.TrimSpace(c.JWTTTLMinutes))
	if err != nil || minutes <= 0 {
		return defaultTTL
	}
	return time.Duration(minutes) * time.Minute
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}
