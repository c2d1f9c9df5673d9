// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AdminUser      string `mapstructure:"ADMIN_USER"`
	AdminPass      string `mapstructure:"ADMIN_PASS"`
	AdminPassHash  string `mapstructure:"ADMIN_PASS_HASH"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBPath         string `mapstructure:"DB_PATH"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode   string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLife  int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	UploadMaxMB    int    `mapstructure:"UPLOAD_MAX_FILE_MB"`
	UploadMaxFiles int    `mapstructure:"UPLOAD_MAX_FILES"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	ReconcileEvery int    `mapstructure:"RECONCILE_INTERVAL_MINUTES"`
	ReconcileGrace int    `mapstructure:"RECONCILE_GRACE_MINUTES"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// keys lists every setting so AutomaticEnv values reach Unmarshal even without a default.
var keys = []string{
	"PORT", "APP_ENV", "ADMIN_USER", "ADMIN_PASS", "ADMIN_PASS_HASH", "JWT_SECRET",
	"DB_DRIVER", "DB_PATH", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"DB_SSLMODE", "DB_SCHEMA_MODE", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"DB_CONN_MAX_LIFETIME_MINUTES", "REDIS_URL", "ALLOWED_ORIGINS", "UPLOAD_DIR",
	"UPLOAD_MAX_FILE_MB", "UPLOAD_MAX_FILES", "FEATURE_FLAGS", "RECONCILE_INTERVAL_MINUTES",
	"RECONCILE_GRACE_MINUTES", "TRACING_ENABLED", "TRACING_EXPORTER", "OTLP_ENDPOINT",
	"TRACING_SAMPLE_RATIO",
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err == nil {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_PATH", "data/4wcycle.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "fourwcycle")
	viper.SetDefault("DB_NAME", "fourwcycle")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("UPLOAD_MAX_FILE_MB", 10)
	viper.SetDefault("UPLOAD_MAX_FILES", 5)
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("RECONCILE_INTERVAL_MINUTES", 60)
	viper.SetDefault("RECONCILE_GRACE_MINUTES", 15)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// MaxUploadBytes is the per-file upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.UploadMaxMB) << 20
}

// ReconcileInterval is the period of the background sweep; zero disables it.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileEvery) * time.Minute
}

// ReconcileGracePeriod protects recently written files and fresh tombstones from the sweep.
func (c *Config) ReconcileGracePeriod() time.Duration {
	return time.Duration(c.ReconcileGrace) * time.Minute
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	var missing []string
	if c.Port == "" {
		missing = append(missing, "PORT")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.AdminUser == "" {
		missing = append(missing, "ADMIN_USER")
	}
	if c.AdminPass == "" && c.AdminPassHash == "" {
		missing = append(missing, "ADMIN_PASS (or ADMIN_PASS_HASH)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}

	if c.UploadDir == "" {
		return errors.New("UPLOAD_DIR must not be empty")
	}
	if c.UploadMaxMB <= 0 || c.UploadMaxFiles <= 0 {
		return errors.New("UPLOAD_MAX_FILE_MB and UPLOAD_MAX_FILES must be positive")
	}
	if c.ReconcileEvery < 0 || c.ReconcileGrace < 0 {
		return errors.New("reconcile intervals must not be negative")
	}

	// Strict checks for production
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "" || c.DBPassword == "password") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
		if c.AdminPassHash == "" {
			log.Println("WARNING: ADMIN_PASS is set in plain text. Prefer ADMIN_PASS_HASH (bcrypt) in production.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
