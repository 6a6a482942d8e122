// Package config loads service configuration from an optional YAML file with
// environment overrides. Env always wins, so a deployment can run on env
// alone.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/envutil"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Signing    SigningConfig    `yaml:"signing"`
	Retention  RetentionConfig  `yaml:"retention"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	BaseURL     string `yaml:"base_url"`
	Environment string `yaml:"environment"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Addr         string `yaml:"addr"`
	AuditChannel string `yaml:"audit_channel"`
}

type StorageConfig struct {
	LocalDir  string `yaml:"local_dir"`
	GCSBucket string `yaml:"gcs_bucket"`
}

type EncryptionConfig struct {
	// KeyBase64 is the base64 encoding of a 32-byte AES key. Left empty,
	// artifact storage refuses to run with encryption enabled.
	KeyBase64 string `yaml:"key_base64"`
}

// Key decodes the configured encryption key. A configured-but-invalid key is
// an error, not a silent fallback.
func (e EncryptionConfig) Key() ([]byte, error) {
	if strings.TrimSpace(e.KeyBase64) == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(e.KeyBase64))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type SigningConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	MaxAttempts   int           `yaml:"max_attempts"`
	CodeLength    int           `yaml:"code_length"`
	URLSecret     string        `yaml:"url_secret"`
	URLTTL        time.Duration `yaml:"url_ttl"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
}

type RetentionConfig struct {
	Years int `yaml:"years"`
}

func (r RetentionConfig) Period() time.Duration {
	years := r.Years
	if years <= 0 {
		years = 10
	}
	return time.Duration(years) * 365 * 24 * time.Hour
}

// Load reads the YAML file at path (optional; CONFIG_PATH or empty skips the
// file) and applies env overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if _, err := cfg.Encryption.Key(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			BaseURL:     "http://localhost:8080",
			Environment: "development",
		},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "rentline",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			AuditChannel: "contract.audit",
		},
		Storage: StorageConfig{
			LocalDir: "./data/artifacts",
		},
		Signing: SigningConfig{
			SessionTTL:    types.SessionTTL,
			MaxAttempts:   types.SessionMaxAttempts,
			CodeLength:    types.CodeLength,
			URLTTL:        time.Hour,
			RenderTimeout: 20 * time.Second,
		},
		Retention: RetentionConfig{Years: 10},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = envutil.String("PORT", cfg.Server.Port)
	cfg.Server.BaseURL = envutil.String("SERVER_BASE_URL", cfg.Server.BaseURL)
	cfg.Server.Environment = envutil.String("APP_ENV", cfg.Server.Environment)
	cfg.Server.MetricsAddr = envutil.String("METRICS_ADDR", cfg.Server.MetricsAddr)

	cfg.Postgres.Host = envutil.String("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envutil.String("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = envutil.String("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = envutil.String("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.DBName = envutil.String("POSTGRES_DB", cfg.Postgres.DBName)
	cfg.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.AuditChannel = envutil.String("REDIS_AUDIT_CHANNEL", cfg.Redis.AuditChannel)

	cfg.Storage.LocalDir = envutil.String("ARTIFACT_LOCAL_DIR", cfg.Storage.LocalDir)
	cfg.Storage.GCSBucket = envutil.String("CONTRACT_GCS_BUCKET_NAME", cfg.Storage.GCSBucket)

	cfg.Encryption.KeyBase64 = envutil.String("ARTIFACT_ENCRYPTION_KEY", cfg.Encryption.KeyBase64)

	cfg.Signing.SessionTTL = envutil.Duration("SIGNING_SESSION_TTL", cfg.Signing.SessionTTL)
	cfg.Signing.MaxAttempts = envutil.Int("SIGNING_MAX_ATTEMPTS", cfg.Signing.MaxAttempts)
	cfg.Signing.CodeLength = envutil.Int("SIGNING_CODE_LENGTH", cfg.Signing.CodeLength)
	cfg.Signing.URLSecret = envutil.String("SIGNED_URL_SECRET", cfg.Signing.URLSecret)
	cfg.Signing.URLTTL = envutil.Duration("SIGNED_URL_TTL", cfg.Signing.URLTTL)
	cfg.Signing.RenderTimeout = envutil.Duration("RENDER_TIMEOUT", cfg.Signing.RenderTimeout)

	cfg.Retention.Years = envutil.Int("RETENTION_YEARS", cfg.Retention.Years)
}
