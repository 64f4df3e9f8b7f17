package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Atomera server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	RunPod   RunPodConfig
	Dispatch DispatchConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// EngineConfig configures the local Boltz-2 subprocess backend.
type EngineConfig struct {
	Command          string
	Accelerator      string // "auto", "cpu", "gpu"
	Devices          int
	DiffusionSamples int
	UseMSAServer     bool
	Timeout          time.Duration
	WorkDir          string // temp input specs and engine scratch output
}

// RunPodConfig configures the remote queued GPU backend. The remote backend
// is selected when both APIKey and EndpointID are set.
type RunPodConfig struct {
	BaseURL        string
	APIKey         string
	EndpointID     string
	PollInterval   time.Duration
	WaitTimeout    time.Duration
	RequestTimeout time.Duration
}

// DispatchConfig configures the dispatcher, its worker pool, and retention.
type DispatchConfig struct {
	Workers             int
	QueueSize           int
	ArtifactDir         string
	RetentionAge        time.Duration
	ReapInterval        time.Duration
	FallbackPlaceholder bool
	// Strict disables the placeholder downgrade regardless of
	// FallbackPlaceholder: every recoverable local failure fails the job.
	Strict bool
}

var validAccelerators = map[string]bool{
	"auto": true,
	"cpu":  true,
	"gpu":  true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ATOMERA_PORT", 8080),
			Env:  envString("ATOMERA_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Engine: EngineConfig{
			Command:          envString("BOLTZ_COMMAND", "boltz"),
			Accelerator:      envString("BOLTZ_ACCELERATOR", "auto"),
			Devices:          envInt("BOLTZ_DEVICES", 1),
			DiffusionSamples: envInt("BOLTZ_DIFFUSION_SAMPLES", 1),
			UseMSAServer:     envBool("BOLTZ_USE_MSA_SERVER", true),
			Timeout:          envDuration("BOLTZ_TIMEOUT", 30*time.Minute),
			WorkDir:          envString("BOLTZ_WORK_DIR", "output"),
		},
		RunPod: RunPodConfig{
			BaseURL:        envString("RUNPOD_BASE_URL", "https://api.runpod.ai/v2"),
			APIKey:         os.Getenv("RUNPOD_API_KEY"),
			EndpointID:     os.Getenv("RUNPOD_ENDPOINT_ID"),
			PollInterval:   envDuration("RUNPOD_POLL_INTERVAL", 5*time.Second),
			WaitTimeout:    envDuration("RUNPOD_TIMEOUT", 30*time.Minute),
			RequestTimeout: envDuration("RUNPOD_REQUEST_TIMEOUT", 30*time.Second),
		},
		Dispatch: DispatchConfig{
			Workers:             envInt("DISPATCH_WORKERS", 2),
			QueueSize:           envInt("DISPATCH_QUEUE_SIZE", 64),
			ArtifactDir:         envString("DISPATCH_ARTIFACT_DIR", "output/predictions"),
			RetentionAge:        envDuration("DISPATCH_RETENTION_AGE", 24*time.Hour),
			ReapInterval:        envDuration("DISPATCH_REAP_INTERVAL", time.Hour),
			FallbackPlaceholder: envBool("DISPATCH_FALLBACK_PLACEHOLDER", true),
			Strict:              envBool("DISPATCH_STRICT", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RemoteEnabled reports whether the remote backend is fully configured.
func (c *Config) RemoteEnabled() bool {
	return c.RunPod.APIKey != "" && c.RunPod.EndpointID != ""
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validAccelerators[c.Engine.Accelerator] {
		return fmt.Errorf("BOLTZ_ACCELERATOR must be one of auto, cpu, gpu; got %q", c.Engine.Accelerator)
	}
	if c.Engine.Devices < 1 {
		return fmt.Errorf("BOLTZ_DEVICES must be at least 1")
	}
	if c.Engine.DiffusionSamples < 1 {
		return fmt.Errorf("BOLTZ_DIFFUSION_SAMPLES must be at least 1")
	}

	if !strings.HasPrefix(c.RunPod.BaseURL, "http://") && !strings.HasPrefix(c.RunPod.BaseURL, "https://") {
		return fmt.Errorf("RUNPOD_BASE_URL must start with http:// or https://, got %q", c.RunPod.BaseURL)
	}
	if c.RunPod.APIKey != "" && c.RunPod.EndpointID == "" {
		return fmt.Errorf("RUNPOD_ENDPOINT_ID is required when RUNPOD_API_KEY is set")
	}

	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}
	if c.Dispatch.QueueSize < 1 {
		return fmt.Errorf("DISPATCH_QUEUE_SIZE must be at least 1")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
