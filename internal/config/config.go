package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres | redis | memory
}

type DispatchConfig struct {
	Driver    string `yaml:"driver"` // pool | nats
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai | metis | gemini (empty = first configured key)
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	MetisKey        string        `yaml:"metis_key"`
	MetisBaseURL    string        `yaml:"metis_base_url"`
	DefaultModel    string        `yaml:"default_model"`
	MaxTokens       int           `yaml:"max_tokens"`
	MaxToolLoops    int           `yaml:"max_tool_loops"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Timeout         time.Duration `yaml:"timeout"`
}

type PricesConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type JobsConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	SweepBatch     int           `yaml:"sweep_batch"`
	MaxPromptChars int           `yaml:"max_prompt_chars"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Storage   StorageConfig   `yaml:"storage"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	AI        AIConfig        `yaml:"ai"`
	Prices    PricesConfig    `yaml:"prices"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), the YAML file at path and applies
// environment overrides and defaults. A missing YAML file is tolerated in
// dev mode so the service can start on defaults alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
		// defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.Runtime.Dev = dev
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.AI.OpenAIKey, "ADVISOR_OPENAI_KEY")
	override(&cfg.AI.GeminiKey, "ADVISOR_GEMINI_KEY")
	override(&cfg.AI.MetisKey, "ADVISOR_METIS_KEY")
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.NATS.URL, "NATS_URL")
	override(&cfg.Auth.JWTSecret, "ADVISOR_JWT_SECRET")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "advisory.jobs"
	}
	if cfg.NATS.Queue == "" {
		cfg.NATS.Queue = "advisory-workers"
	}
	if cfg.Storage.Driver == "" {
		if cfg.Runtime.Dev {
			cfg.Storage.Driver = "memory"
		} else {
			cfg.Storage.Driver = "postgres"
		}
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Dispatch.Driver == "" {
		cfg.Dispatch.Driver = "pool"
	}
	cfg.Dispatch.Driver = strings.ToLower(cfg.Dispatch.Driver)
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 8
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = cfg.Dispatch.Workers * 4
	}

	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.OpenAIBaseURL == "" {
		cfg.AI.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.MetisBaseURL == "" {
		cfg.AI.MetisBaseURL = "https://api.metisai.ir/openai/v1"
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 2000
	}
	if cfg.AI.MaxToolLoops <= 0 {
		cfg.AI.MaxToolLoops = 5
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))

	if cfg.Prices.Timeout <= 0 {
		cfg.Prices.Timeout = 15 * time.Second
	}

	if cfg.Jobs.TTL <= 0 {
		cfg.Jobs.TTL = 24 * time.Hour
	}
	if cfg.Jobs.StaleAfter <= 0 {
		cfg.Jobs.StaleAfter = 15 * time.Minute
	}
	if cfg.Jobs.SweepInterval <= 0 {
		cfg.Jobs.SweepInterval = 5 * time.Minute
	}
	if cfg.Jobs.SweepBatch <= 0 {
		cfg.Jobs.SweepBatch = 200
	}
	if cfg.Jobs.MaxPromptChars <= 0 {
		cfg.Jobs.MaxPromptChars = 8000
	}
}

// MaxRunDuration bounds one advisory run: every loop iteration may spend a
// full model timeout plus a full price lookup.
func (c *Config) MaxRunDuration() time.Duration {
	return time.Duration(c.AI.MaxToolLoops) * (c.AI.Timeout + c.Prices.Timeout)
}

// Validate performs minimal, driver-aware validation.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for storage.driver=postgres")
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for storage.driver=redis")
		}
	case "memory":
		if !c.Runtime.Dev {
			return errors.New("storage.driver=memory is only allowed with --dev")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Dispatch.Driver {
	case "pool":
	case "nats":
		if c.NATS.URL == "" {
			return errors.New("nats.url is required for dispatch.driver=nats")
		}
		if c.Storage.Driver == "memory" {
			return errors.New("dispatch.driver=nats needs a shared storage.driver (postgres or redis)")
		}
	default:
		return fmt.Errorf("unknown dispatch.driver %q", c.Dispatch.Driver)
	}

	// a live run must never look abandoned to the sweeper
	if run := c.MaxRunDuration(); c.Jobs.StaleAfter < run {
		return fmt.Errorf("jobs.stale_after (%s) is shorter than the longest possible run (%s): raise it or lower ai.max_tool_loops/ai.timeout/prices.timeout", c.Jobs.StaleAfter, run)
	}

	if c.RateLimit.PerMinute > 0 && c.Redis.URL == "" {
		return errors.New("rate_limit.per_minute requires redis.url")
	}

	if !c.Runtime.Dev && c.AI.OpenAIKey == "" && c.AI.GeminiKey == "" && c.AI.MetisKey == "" {
		return errors.New("no AI provider configured: set ai.metis_key, ai.gemini_key or ai.openai_key")
	}
	return nil
}
