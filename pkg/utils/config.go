package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is read from an optional YAML file, then overridden by CARDHUB_*
// environment variables.
type Config struct {
	ManifestPath string `yaml:"manifest" env:"MANIFEST"`
	DBPath       string `yaml:"db_path" env:"DB_PATH"`
	Locale       string `yaml:"locale" env:"LOCALE"`
	Concurrency  int    `yaml:"concurrency" env:"CONCURRENCY"`
	Preview      bool   `yaml:"preview" env:"PREVIEW"`
	Watch        bool   `yaml:"watch" env:"WATCH"`

	HTTP    HTTPConfig    `yaml:"http" envPrefix:"HTTP_"`
	Sync    SyncConfig    `yaml:"sync" envPrefix:"SYNC_"`
	GRPC    GRPCConfig    `yaml:"grpc" envPrefix:"GRPC_"`
	Auth    AuthConfig    `yaml:"auth" envPrefix:"AUTH_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
}

type HTTPConfig struct {
	Addr         string   `yaml:"addr" env:"ADDR"`
	AllowOrigins []string `yaml:"allow_origins" env:"ALLOW_ORIGINS" envSeparator:","`
}

type SyncConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// AuthConfig guards ownership mutations. An empty PasswordHash disables
// token issuance, which leaves mutations closed.
type AuthConfig struct {
	Operator     string        `yaml:"operator" env:"OPERATOR"`
	PasswordHash string        `yaml:"password_hash" env:"PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer    string        `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	JWTDuration  time.Duration `yaml:"jwt_duration" env:"JWT_DURATION"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

func DefaultConfig() Config {
	return Config{
		ManifestPath: "data/cards-manifest.json",
		Locale:       "ja",
		Concurrency:  1,
		Watch:        true,
		HTTP:         HTTPConfig{Addr: ":8080"},
		Sync:         SyncConfig{Addr: ":7070"},
		GRPC:         GRPCConfig{Addr: ":9090"},
		Auth: AuthConfig{
			Operator: "admin",
			// dev default (change for demo / production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "cardhub",
			JWTDuration: 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig layers defaults, the YAML file at path (skipped when path is
// empty or the file does not exist) and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CARDHUB_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Auth.JWTDuration <= 0 {
		cfg.Auth.JWTDuration = 24 * time.Hour
	}
	return cfg, nil
}
