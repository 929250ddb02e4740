package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Database config
	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"club"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	DBPath      string `env:"DB_PATH" envDefault:"./club.db"` // SQLite database file path

	// Creates the legacy tables on start; development only
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"false"`

	// Auth config
	JWTSecret string `env:"JWT_SECRET"`

	// App config
	Environment string   `env:"ENVIRONMENT" envDefault:"development"`
	Port        string   `env:"PORT" envDefault:"5000"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// Initial state of the audit disabled flag
	AuditDisabled bool `env:"AUDIT_DISABLED" envDefault:"false"`
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Load parses the environment into a fresh Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	return cfg, nil
}

// IsDevelopment returns true if the application is running in development mode
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsDevelopment reports the mode of the loaded AppConfig.
func IsDevelopment() bool {
	return AppConfig.IsDevelopment()
}
