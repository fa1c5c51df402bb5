package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the FinSight server and worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Upload   UploadConfig
	Worker   WorkerConfig
	Agent    AgentConfig
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

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// WorkerConfig tunes the execution engine. RetryBackoff is the first
// rate-limit backoff; each further attempt doubles it (60s, 120s, 240s with
// the defaults). ResultTTL bounds how long finished task state lives in the
// cache before polls fall back to the durable store.
type WorkerConfig struct {
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	ResultTTL    time.Duration
	PendingTTL   time.Duration
}

type AgentConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

var validProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("FINSIGHT_PORT", 8080),
			Env:  envString("FINSIGHT_ENV", "development"),
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
		Upload: UploadConfig{
			Dir:      envString("UPLOAD_DIR", "data"),
			MaxBytes: envInt64("UPLOAD_MAX_BYTES", 25<<20),
		},
		Worker: WorkerConfig{
			Concurrency:  envInt("WORKER_CONCURRENCY", 4),
			MaxRetries:   envInt("WORKER_MAX_RETRIES", 3),
			RetryBackoff: envDurationSecs("WORKER_RETRY_BACKOFF_SECS", 60),
			ResultTTL:    envDurationSecs("WORKER_RESULT_TTL_SECS", 3600),
			PendingTTL:   envDurationSecs("WORKER_PENDING_TTL_SECS", 1800),
		},
		Agent: AgentConfig{
			Provider:         os.Getenv("AGENT_PROVIDER"),
			InferenceTimeout: envDurationSecs("AGENT_INFERENCE_TIMEOUT_SECS", 300),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Agent.Provider == "" {
		return fmt.Errorf("AGENT_PROVIDER is required")
	}
	if !validProviders[c.Agent.Provider] {
		return fmt.Errorf("AGENT_PROVIDER must be one of ollama, openai, anthropic; got %q", c.Agent.Provider)
	}

	if c.Agent.Provider == "openai" && c.Agent.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AGENT_PROVIDER is openai")
	}
	if c.Agent.Provider == "anthropic" && c.Agent.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AGENT_PROVIDER is anthropic")
	}

	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("WORKER_MAX_RETRIES must not be negative")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
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

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
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

func envDurationSecs(key string, defaultSecs int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(defaultSecs) * time.Second
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(defaultSecs) * time.Second
	}
	return time.Duration(secs) * time.Second
}
