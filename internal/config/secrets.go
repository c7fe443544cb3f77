package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Secrets struct {
	JWTSecret         string `env:"GYMTRACKER_JWT_SECRET, required"`
	RedisPassword     string `env:"GYMTRACKER_REDIS_PASS"`
	PostgresPassword  string `env:"GYMTRACKER_POSTGRES_PASS"`
	AdminEmail        string `env:"GYMTRACKER_ADMIN_EMAIL"`
	AdminPasswordHash string `env:"GYMTRACKER_ADMIN_PASSWORD_HASH"`
	SentryDSN         string `env:"SENTRY_DSN"`
	IPInfoToken       string `env:"IPINFO_TOKEN"`
	HoneycombEnabled  bool   `env:"HONEYCOMB_ENABLED, default=false"`
}

// LoadSecrets reads secrets from the environment. Values from dotEnvPath,
// when the file exists, are loaded first and never override real env vars.
func LoadSecrets(ctx context.Context, dotEnvPath string) (*Secrets, error) {
	if dotEnvPath != "" {
		if err := godotenv.Load(dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotEnvPath, err)
		}
	}

	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &s, nil
}
