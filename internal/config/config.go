package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const DefaultEndpointURL = "https://httpbin.org/post"

type Config struct {
	EndpointURL   string     `env:"BRIDGE_ENDPOINT_URL"   envDefault:"https://httpbin.org/post" validate:"required,http_url"`
	EnvelopeField string     `env:"BRIDGE_ENVELOPE_FIELD" envDefault:"body"                     validate:"oneof=body text"`
	LogLevel      slog.Level `env:"LOG_LEVEL"             envDefault:"info"`
	HTTPAddr      string     `env:"HTTP_ADDR"             envDefault:":8080"                    validate:"required"`
	Token         string     `env:"TOKEN"`
	AllowedUsers  []int64    `env:"ALLOWED_USERS"`
	DBPath        string     `env:"DB_PATH"               envDefault:"db.sqlite"                validate:"required"`
	ProbeSpec     string     `env:"PROBE_SPEC"`
	ProbeText     string     `env:"PROBE_TEXT"            envDefault:"ping"                     validate:"required_with=ProbeSpec"`
}

// Load reads an optional .env file and parses the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}

	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.EndpointURL = strings.TrimSpace(cfg.EndpointURL)
	cfg.EnvelopeField = strings.TrimSpace(cfg.EnvelopeField)
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.ProbeSpec = strings.TrimSpace(cfg.ProbeSpec)

	if err = validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// RequireToken fails unless a Telegram token is configured.
func (c Config) RequireToken() error {
	if c.Token == "" {
		return errors.New("TOKEN is required")
	}

	return nil
}
