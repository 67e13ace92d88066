// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"go.ngs.io/weather-maps-api/internal/domain"
)

// Config holds every server setting.
type Config struct {
	Port string `env:"PORT" envDefault:"8080" validate:"required,numeric"`

	// Store locations: local NetCDF paths or gs://bucket/object URIs. An
	// empty location leaves the model without data.
	GraphcastStore    string `env:"GRAPHCAST_STORE_PATH"`
	CerroraStore      string `env:"CERRORA_STORE_PATH"`
	CerroraGTStore    string `env:"CERRORA_GT_STORE_PATH"`
	ExperimentalStore string `env:"EXPERIMENTAL_STORE_PATH"`
	StoreCacheDir     string `env:"STORE_CACHE_DIR" envDefault:"./data/stores" validate:"required"`

	OutputDir    string `env:"IMAGE_OUTPUT_DIR" envDefault:"./streaming" validate:"required"`
	BaseURL      string `env:"API_BASE_URL" envDefault:"http://127.0.0.1:8080/streaming" validate:"required,url"`
	StaticPrefix string `env:"STATIC_PREFIX" envDefault:"/streaming" validate:"required,startswith=/"`
	APIPrefix    string `env:"API_PREFIX" envDefault:"/api/v1" validate:"required,startswith=/"`

	// AllowedOrigins is empty to allow every origin.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	AssetWaitTimeout  time.Duration `env:"ASSET_WAIT_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	AssetPollInterval time.Duration `env:"ASSET_POLL_INTERVAL" envDefault:"500ms" validate:"gt=0"`

	RenderWidth int     `env:"RENDER_WIDTH" envDefault:"1024" validate:"min=64,max=8192"`
	WebPQuality float32 `env:"WEBP_QUALITY" envDefault:"80" validate:"gt=0,lte=100"`

	DefaultModel    string        `env:"DEFAULT_MODEL" envDefault:"cerrora" validate:"oneof=graphcast cerrora experimental"`
	DiscoveryWindow time.Duration `env:"DISCOVERY_WINDOW" envDefault:"168h" validate:"gt=0"`
	WarmupInterval  time.Duration `env:"WARMUP_INTERVAL" envDefault:"0s" validate:"gte=0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment and validates the result.
func Parse() (*Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StaticPrefix = "/" + strings.Trim(c.StaticPrefix, "/")
	c.APIPrefix = "/" + strings.Trim(c.APIPrefix, "/")
	c.DefaultModel = strings.ToLower(strings.TrimSpace(c.DefaultModel))
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
}

// Stores returns the configured store location per model.
func (c *Config) Stores() map[domain.ModelID]string {
	return map[domain.ModelID]string{
		domain.ModelGraphcast:    c.GraphcastStore,
		domain.ModelCerrora:      c.CerroraStore,
		domain.ModelCerroraGT:    c.CerroraGTStore,
		domain.ModelExperimental: c.ExperimentalStore,
	}
}

// Default returns the initial model of the legacy current-model endpoint.
func (c *Config) Default() domain.ModelID {
	id, err := domain.ParseModel(c.DefaultModel)
	if err != nil {
		return domain.ModelCerrora
	}
	return id
}
