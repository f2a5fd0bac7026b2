// Package config loads the tripvoice configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Model    ModelConfig    `yaml:"model"`
	Redis    RedisConfig    `yaml:"redis"`
	Campaign CampaignConfig `yaml:"campaign"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ModelConfig selects the OpenAI-compatible chat model. Fallbacks are tried
// in order when Model fails. Without an API key the agent runs on canned
// prompts only.
type ModelConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	Model     string        `yaml:"model" validate:"required"`
	Fallbacks []string      `yaml:"fallbacks" validate:"dive,required"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

type CampaignConfig struct {
	Pace       time.Duration `yaml:"pace" validate:"gte=0"`
	WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
	SIPTrunkID string        `yaml:"sip_trunk_id"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Model: ModelConfig{
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Prefix: "tripvoice:",
			TTL:    24 * time.Hour,
		},
		Campaign: CampaignConfig{
			Pace: 3 * time.Second,
		},
	}
}

// Load reads path on top of the defaults, expands ${VAR} references, applies
// environment overrides and validates the result. An empty path loads the
// defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("TRIPVOICE_LOG_LEVEL", &cfg.Log.Level)
	str("TRIPVOICE_LOG_FORMAT", &cfg.Log.Format)
	str("TRIPVOICE_HTTP_ADDR", &cfg.HTTP.Addr)
	str("OPENAI_API_KEY", &cfg.Model.APIKey)
	str("OPENAI_BASE_URL", &cfg.Model.BaseURL)
	str("TRIPVOICE_MODEL", &cfg.Model.Model)
	str("TRIPVOICE_REDIS_ADDR", &cfg.Redis.Addr)
	str("TRIPVOICE_REDIS_PASSWORD", &cfg.Redis.Password)
	str("TRIPVOICE_WEBHOOK_URL", &cfg.Campaign.WebhookURL)
	str("TRIPVOICE_SIP_TRUNK_ID", &cfg.Campaign.SIPTrunkID)

	if v, ok := lookup("TRIPVOICE_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRIPVOICE_REDIS_DB %q: %w", v, err)
		}
		cfg.Redis.DB = db
	}
	if v, ok := lookup("TRIPVOICE_CAMPAIGN_PACE"); ok && v != "" {
		pace, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRIPVOICE_CAMPAIGN_PACE %q: %w", v, err)
		}
		cfg.Campaign.Pace = pace
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
