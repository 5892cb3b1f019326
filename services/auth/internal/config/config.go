package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/restaurant/pkg/config"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type ServiceConfig struct {
	ServiceName string
	Port        string
	APIPrefix   string
	CORSOrigins []string
	LogLevel    string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	BcryptCost            int
	SignupAllowPrivileged bool

	KafkaBrokers []string
	UserTopic    string

	ESURL        string
	ESUser       string
	ESPassword   string
	ESUsersIndex string
}

// FromEnv reads the configuration without validating it.
func FromEnv() ServiceConfig {
	return ServiceConfig{
		ServiceName: config.EnvDefault("SERVICE_NAME", "auth"),
		Port:        config.EnvDefault("SERVER_PORT", "8080"),
		APIPrefix:   normalizePrefix(config.EnvDefault("API_PREFIX", "/api")),
		CORSOrigins: config.CSV(config.EnvDefault("CORS_ORIGIN", "http://localhost:3000")),
		LogLevel:    config.EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(config.EnvDefault("DB_DRIVER", DriverPostgres)),
		DatabaseURL: config.EnvDefault("DATABASE_URL", ""),
		SQLitePath:  config.EnvDefault("SQLITE_PATH", "auth.db"),

		AccessSecret:  []byte(config.EnvDefault("JWT_ACCESS_SECRET", "")),
		RefreshSecret: []byte(config.EnvDefault("JWT_REFRESH_SECRET", "")),
		AccessTTL:     config.EnvDurationDefault("JWT_ACCESS_EXPIRES_IN", 15*time.Minute),
		RefreshTTL:    config.EnvDurationDefault("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
		Issuer:        config.EnvDefault("JWT_ISSUER", "restaurant-auth"),

		BcryptCost:            config.EnvIntDefault("BCRYPT_COST", bcrypt.DefaultCost),
		SignupAllowPrivileged: config.EnvBoolDefault("AUTH_SIGNUP_ALLOW_PRIVILEGED", true),

		KafkaBrokers: config.CSV(config.EnvDefault("KAFKA_BROKERS", "")),
		UserTopic:    config.EnvDefault("KAFKA_USER_TOPIC", "user_events"),

		ESURL:        config.EnvDefault("ES_URL", ""),
		ESUser:       config.EnvDefault("ES_USER", ""),
		ESPassword:   config.EnvDefault("ES_PASSWORD", ""),
		ESUsersIndex: config.EnvDefault("ES_USERS_INDEX", "users"),
	}
}

// Load reads and validates the configuration, exiting on failure.
func Load() ServiceConfig {
	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

func (c ServiceConfig) Validate() error {
	var errs []error

	required := map[string]string{
		"JWT_ACCESS_SECRET":  string(c.AccessSecret),
		"JWT_REFRESH_SECRET": string(c.RefreshSecret),
	}
	switch c.DBDriver {
	case DriverPostgres:
		required["DATABASE_URL"] = c.DatabaseURL
	case DriverSQLite:
		required["SQLITE_PATH"] = c.SQLitePath
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}

	if err := config.RequireNonEmpty(required); err != nil {
		errs = append(errs, err)
	} else if string(c.AccessSecret) == string(c.RefreshSecret) {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}

	return errors.Join(errs...)
}

func (c ServiceConfig) Addr() string {
	return ":" + c.Port
}

func (c ServiceConfig) TokenConfig() tokens.Config {
	return tokens.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
		Issuer:        c.Issuer,
	}
}

// RefreshCookiePath scopes the refresh cookie to the refresh endpoint.
func (c ServiceConfig) RefreshCookiePath() string {
	return c.APIPrefix + "/auth/refresh"
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
