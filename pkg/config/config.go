package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "dev_secret"
	maxCodeWidth = 12
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Log           LogConfig
	Submissions   SubmissionsConfig
	Notifications NotificationsConfig
	Reports       ReportsConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnLifetime   time.Duration
	ConnectRetries int
	MigrateOnStart bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

// SubmissionsConfig tunes the submission lifecycle engine.
type SubmissionsConfig struct {
	CodePrefix  string
	CodeWidth   int
	CodeRetries int
	TxTimeout   time.Duration
}

// NotificationsConfig controls the post-commit notification fan-out.
type NotificationsConfig struct {
	Enabled bool
	Workers int
	Buffer  int
	Channel string
}

// ReportsConfig governs the placement reporting endpoints and their cache.
type ReportsConfig struct {
	Enabled        bool
	CacheTTL       time.Duration
	CacheNamespace string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnLifetime:   v.GetDuration("DB_CONN_MAX_LIFETIME"),
		ConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
		MigrateOnStart: v.GetBool("DB_MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Submissions = SubmissionsConfig{
		CodePrefix:  strings.ToUpper(strings.TrimSpace(v.GetString("SUBMISSION_CODE_PREFIX"))),
		CodeWidth:   positiveOr(v.GetInt("SUBMISSION_CODE_WIDTH"), 6),
		CodeRetries: positiveOr(v.GetInt("SUBMISSION_CODE_RETRIES"), 3),
		TxTimeout:   parseDuration(v.GetString("SUBMISSION_TX_TIMEOUT"), 5*time.Second),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled: v.GetBool("ENABLE_NOTIFICATIONS"),
		Workers: positiveOr(v.GetInt("NOTIFY_WORKERS"), 1),
		Buffer:  positiveOr(v.GetInt("NOTIFY_BUFFER"), 64),
		Channel: v.GetString("NOTIFY_CHANNEL"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:        v.GetBool("ENABLE_REPORTS"),
		CacheTTL:       parseDuration(v.GetString("REPORTS_CACHE_TTL"), 10*time.Minute),
		CacheNamespace: v.GetString("REPORTS_CACHE_NAMESPACE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting the service cannot start with.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.Submissions.CodePrefix == "" {
		result = multierror.Append(result, errors.New("SUBMISSION_CODE_PREFIX must not be empty"))
	}
	if c.Submissions.CodeWidth > maxCodeWidth {
		result = multierror.Append(result, fmt.Errorf("SUBMISSION_CODE_WIDTH %d exceeds %d", c.Submissions.CodeWidth, maxCodeWidth))
	}
	if c.JWT.Secret == "" || (c.Env == EnvProduction && c.JWT.Secret == devJWTSecret) {
		result = multierror.Append(result, errors.New("JWT_SECRET must be set to a non-default value"))
	}
	return result.ErrorOrNil()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "recruit_pipeline")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_MIGRATE_ON_START", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SUBMISSION_CODE_PREFIX", "SUB")
	v.SetDefault("SUBMISSION_CODE_WIDTH", 6)
	v.SetDefault("SUBMISSION_CODE_RETRIES", 3)
	v.SetDefault("SUBMISSION_TX_TIMEOUT", "5s")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER", 256)
	v.SetDefault("NOTIFY_CHANNEL", "submissions.events")

	v.SetDefault("ENABLE_REPORTS", true)
	v.SetDefault("REPORTS_CACHE_TTL", "10m")
	v.SetDefault("REPORTS_CACHE_NAMESPACE", "recruit-pipeline")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
