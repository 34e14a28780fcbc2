package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/observability"
)

type Config struct {
	SlotsSource string                      `yaml:"slots"`
	Log         observability.LogConfig     `yaml:"log"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
	Workers     int                         `yaml:"workers"`
	HTTPAddr    string                      `yaml:"http_addr"`
	Fetch       FetchConfig                 `yaml:"fetch"`
	MinIO       inventory.MinIOConfig       `yaml:"minio"`
}

type FetchConfig struct {
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		SlotsSource: inventory.DefaultSource,
		Log:         observability.LogConfig{Level: "info", Format: "console"},
		Tracing:     observability.TracingConfig{Exporter: "none", Sampler: "parentbased_always_on"},
		Workers:     1,
		HTTPAddr:    ":8080",
		Fetch:       FetchConfig{Retries: 3, Timeout: 10 * time.Second},
	}
}

// Load starts from Default, applies the YAML file named by CRYSTALBALL_CONFIG
// when set, then the CRYSTALBALL_* environment.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CRYSTALBALL_CONFIG")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(&cfg)
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Fetch.Retries < 0 {
		cfg.Fetch.Retries = 0
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.SlotsSource = getenv("CRYSTALBALL_SLOTS", cfg.SlotsSource)
	cfg.Log.Level = getenv("CRYSTALBALL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("CRYSTALBALL_LOG_FORMAT", cfg.Log.Format)
	cfg.Workers = getenvInt("CRYSTALBALL_WORKERS", cfg.Workers)
	cfg.HTTPAddr = getenv("CRYSTALBALL_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Fetch.Retries = getenvInt("CRYSTALBALL_HTTP_RETRIES", cfg.Fetch.Retries)
	if sec := getenvInt("CRYSTALBALL_HTTP_TIMEOUT_SECONDS", 0); sec > 0 {
		cfg.Fetch.Timeout = time.Duration(sec) * time.Second
	}

	cfg.MinIO.Endpoint = getenv("CRYSTALBALL_MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = getenv("CRYSTALBALL_MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = getenv("CRYSTALBALL_MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.UseSSL = getenvBool("CRYSTALBALL_MINIO_USE_SSL", cfg.MinIO.UseSSL)

	cfg.Tracing.Exporter = getenv("CRYSTALBALL_OTEL_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = getenv("CRYSTALBALL_OTEL_ENDPOINT", cfg.Tracing.Endpoint)
	if raw := os.Getenv("CRYSTALBALL_OTEL_HEADERS"); raw != "" {
		cfg.Tracing.Headers = observability.ParseHeaders(raw)
	}
	cfg.Tracing.Insecure = getenvBool("CRYSTALBALL_OTEL_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.Sampler = getenv("CRYSTALBALL_OTEL_SAMPLER", cfg.Tracing.Sampler)
	if raw := os.Getenv("CRYSTALBALL_OTEL_SAMPLER_RATIO"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Tracing.SamplerRatio = v
		}
	}
	cfg.Tracing.Environment = getenv("CRYSTALBALL_ENV", cfg.Tracing.Environment)
}

// InventoryOptions builds the loader options for this configuration.
func (c Config) InventoryOptions() inventory.Options {
	return inventory.Options{
		HTTPRetries: c.Fetch.Retries,
		HTTPTimeout: c.Fetch.Timeout,
		MinIO:       c.MinIO,
	}
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
