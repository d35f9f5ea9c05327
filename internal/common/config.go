package common

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Batch    BatchConfig    `yaml:"batch"`
	Platform PlatformConfig `yaml:"platform"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// StorageConfig holds object-storage configuration
type StorageConfig struct {
	Region        string `yaml:"region"`
	DefaultBucket string `yaml:"default_bucket"`
	DefaultPrefix string `yaml:"default_prefix"`
}

// LLMConfig holds completion-service configuration
type LLMConfig struct {
	Model               string        `yaml:"model"`
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	MaxCompletionTokens int           `yaml:"max_completion_tokens"`
	ReasoningEffort     string        `yaml:"reasoning_effort"`
	Verbosity           string        `yaml:"verbosity"`
	Timeout             time.Duration `yaml:"timeout"`
	RateLimitPerMin     int           `yaml:"rate_limit_per_min"`
	PromptFile          string        `yaml:"prompt_file"`
	MergePromptFile     string        `yaml:"merge_prompt_file"`
}

// PipelineConfig holds chunking/segmentation tuning
type PipelineConfig struct {
	MaxChunkBytes    int    `yaml:"max_chunk_bytes"`
	PerCallMaxChars  int    `yaml:"per_call_max_chars"`
	SegmentMinChars  int    `yaml:"segment_min_chars"`
	SegmentOverlap   int    `yaml:"segment_overlap"`
	SegmentBacktrack int    `yaml:"segment_backtrack"`
	MaxSegments      int    `yaml:"max_segments"`
	MergeStrategy    string `yaml:"merge_strategy"` // "deterministic" or "model"
	RetryAttempts    int    `yaml:"retry_attempts"`
}

// BatchConfig holds the batch runner's pacing knobs
type BatchConfig struct {
	BatchSize         int           `yaml:"batch_size"`
	CooldownMin       time.Duration `yaml:"cooldown_min"`
	CooldownMax       time.Duration `yaml:"cooldown_max"`
	RetryWait         time.Duration `yaml:"retry_wait"`
	BurstPauseEvery   int           `yaml:"burst_pause_every"`
	BurstPauseSeconds time.Duration `yaml:"burst_pause"`
}

// PlatformConfig holds vendor-platform credentials and endpoints
type PlatformConfig struct {
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	LoginURL    string `yaml:"login_url"`
	AppURL      string `yaml:"app_url"`
	DownloadURL string `yaml:"download_url"`
	TenantID    string `yaml:"tenant_id"`
	SessionFile string `yaml:"session_file"`
}

// LoadConfig loads configuration from environment variables. If path is
// non-empty, values from the YAML file are read first and env vars override.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "unreadable config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "invalid config file", err)
		}
	}
	mergeWithEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func mergeWithEnv(c *Config) {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Storage.Region = getEnv("AWS_REGION", c.Storage.Region)
	c.Storage.DefaultBucket = getEnv("DEFAULT_S3_BUCKET", c.Storage.DefaultBucket)
	c.Storage.DefaultPrefix = getEnv("DEFAULT_S3_PREFIX", c.Storage.DefaultPrefix)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.ReasoningEffort = getEnv("OPENAI_REASONING_EFFORT", c.LLM.ReasoningEffort)
	c.LLM.Verbosity = getEnv("OPENAI_VERBOSITY", c.LLM.Verbosity)
	c.LLM.PromptFile = getEnv("PROMPT_FILE", c.LLM.PromptFile)
	c.LLM.MergePromptFile = getEnv("MERGE_PROMPT_FILE", c.LLM.MergePromptFile)
	c.Pipeline.PerCallMaxChars = getEnvAsInt("PDF_MAX_CHARS", c.Pipeline.PerCallMaxChars)
	c.Pipeline.MergeStrategy = getEnv("MERGE_STRATEGY", c.Pipeline.MergeStrategy)
	c.Batch.BatchSize = getEnvAsInt("BATCH_SIZE", c.Batch.BatchSize)
	c.Batch.CooldownMin = getEnvAsDuration("COOLDOWN_MIN", c.Batch.CooldownMin)
	c.Batch.CooldownMax = getEnvAsDuration("COOLDOWN_MAX", c.Batch.CooldownMax)
	c.Batch.RetryWait = getEnvAsDuration("RETRY_WAIT", c.Batch.RetryWait)
	c.Platform.Email = getEnv("PLATFORM_EMAIL", c.Platform.Email)
	c.Platform.Password = getEnv("PLATFORM_PASSWORD", c.Platform.Password)
}

func applyDefaults(c *Config) {
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 1
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = 30 * time.Minute
	}
	if c.Database.MaxConnIdleTime == 0 {
		c.Database.MaxConnIdleTime = 5 * time.Minute
	}
	if c.Database.DialTimeout == 0 {
		c.Database.DialTimeout = 3 * time.Second
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.DefaultBucket == "" {
		c.Storage.DefaultBucket = "bid-docs-h2g"
	}
	if c.Storage.DefaultPrefix == "" {
		c.Storage.DefaultPrefix = "all/"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-5-mini"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.MaxCompletionTokens == 0 {
		c.LLM.MaxCompletionTokens = 8000
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.RateLimitPerMin == 0 {
		c.LLM.RateLimitPerMin = 12
	}
	if c.LLM.PromptFile == "" {
		c.LLM.PromptFile = "bid_spec_prompt.txt"
	}
	if c.LLM.MergePromptFile == "" {
		c.LLM.MergePromptFile = "spec_merge_prompt.txt"
	}
	if c.Pipeline.MaxChunkBytes == 0 {
		c.Pipeline.MaxChunkBytes = 25 * 1024 * 1024
	}
	if c.Pipeline.PerCallMaxChars == 0 {
		c.Pipeline.PerCallMaxChars = 60000
	}
	if c.Pipeline.SegmentMinChars == 0 {
		c.Pipeline.SegmentMinChars = 2000
	}
	if c.Pipeline.SegmentOverlap == 0 {
		c.Pipeline.SegmentOverlap = 400
	}
	if c.Pipeline.SegmentBacktrack == 0 {
		c.Pipeline.SegmentBacktrack = 1200
	}
	if c.Pipeline.MaxSegments == 0 {
		c.Pipeline.MaxSegments = 50
	}
	if c.Pipeline.MergeStrategy == "" {
		c.Pipeline.MergeStrategy = "deterministic"
	}
	if c.Pipeline.RetryAttempts == 0 {
		c.Pipeline.RetryAttempts = 2
	}
	if c.Batch.BatchSize == 0 {
		c.Batch.BatchSize = 100
	}
	if c.Batch.CooldownMin == 0 {
		c.Batch.CooldownMin = 3 * time.Second
	}
	if c.Batch.CooldownMax == 0 {
		c.Batch.CooldownMax = 8 * time.Second
	}
	if c.Batch.CooldownMax < c.Batch.CooldownMin {
		c.Batch.CooldownMax = c.Batch.CooldownMin
	}
	if c.Batch.RetryWait == 0 {
		c.Batch.RetryWait = 60 * time.Second
	}
	if c.Batch.BurstPauseEvery == 0 {
		c.Batch.BurstPauseEvery = 15
	}
	if c.Batch.BurstPauseSeconds == 0 {
		c.Batch.BurstPauseSeconds = 20 * time.Second
	}
	if c.Platform.LoginURL == "" {
		c.Platform.LoginURL = "https://login.io.constructconnect.com"
	}
	if c.Platform.AppURL == "" {
		c.Platform.AppURL = "https://app.constructconnect.com"
	}
	if c.Platform.DownloadURL == "" {
		c.Platform.DownloadURL = "https://app.isqft.com/services/file/getprojectdocument"
	}
	if c.Platform.TenantID == "" {
		c.Platform.TenantID = "external-users-ziwpd"
	}
	if c.Platform.SessionFile == "" {
		c.Platform.SessionFile = "session.json"
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// plain integers are read as seconds, matching the old env files
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration. A failure here is the one class
// of error that aborts the process at startup.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
