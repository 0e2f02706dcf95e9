package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

type CrawlerConfig struct {
	MaxConcurrent int    `yaml:"maxConcurrent"`
	TimeoutMs     int    `yaml:"timeoutMs"`
	UserAgent     string `yaml:"userAgent"`
	// BrowserURL points at a remote DevTools endpoint. When empty a
	// local headless chromium is launched.
	BrowserURL string `yaml:"browserURL"`
}

type EmbeddingConfig struct {
	APIKey       string `yaml:"apiKey"`
	Model        string `yaml:"model"`
	Dimension    int    `yaml:"dimension"`
	ChunkSize    int    `yaml:"chunkSize"`
	ChunkOverlap int    `yaml:"chunkOverlap"`
	BatchSize    int    `yaml:"batchSize"`
	BatchDelayMs int    `yaml:"batchDelayMs"`
	MaxAttempts  int    `yaml:"maxAttempts"`
}

type LLMConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
	// RewriteModel is used for the cheap query-rewrite step of the
	// answer endpoint.
	RewriteModel string `yaml:"rewriteModel"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	PollIntervalMs    int `yaml:"pollIntervalMs"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RetentionConfig struct {
	Enabled bool `yaml:"enabled"`
	// JobsDays keeps finished crawl jobs for this many days, 0 keeps
	// them forever.
	JobsDays               int `yaml:"jobsDays"`
	QueryLogDays           int `yaml:"queryLogDays"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Worker    WorkerConfig    `yaml:"worker"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg
}

// applyEnv lets deployment secrets override file values so that the
// config file can be committed without credentials.
func (c *Config) applyEnv() {
	if v := os.Getenv("SONAR_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.DSN == "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Crawler.MaxConcurrent <= 0 {
		c.Crawler.MaxConcurrent = 5
	}
	if c.Crawler.TimeoutMs <= 0 {
		c.Crawler.TimeoutMs = 30000
	}
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = "SonarBot/1.0 (+https://sonar.dev)"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-004"
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 768
	}
	if c.Embedding.ChunkSize <= 0 {
		c.Embedding.ChunkSize = 1000
	}
	if c.Embedding.ChunkOverlap <= 0 {
		c.Embedding.ChunkOverlap = 200
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.BatchDelayMs <= 0 {
		c.Embedding.BatchDelayMs = 500
	}
	if c.Embedding.MaxAttempts <= 0 {
		c.Embedding.MaxAttempts = 3
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.LLM.RewriteModel == "" {
		c.LLM.RewriteModel = "gemini-2.0-flash-exp"
	}
	if c.RateLimit.DefaultPerMinute == 0 {
		c.RateLimit.DefaultPerMinute = 60
	}
	if c.Worker.MaxConcurrentJobs <= 0 {
		c.Worker.MaxConcurrentJobs = 2
	}
	if c.Worker.PollIntervalMs <= 0 {
		c.Worker.PollIntervalMs = 2000
	}
	if c.Retention.JobsDays <= 0 {
		c.Retention.JobsDays = 30
	}
	if c.Retention.QueryLogDays <= 0 {
		c.Retention.QueryLogDays = 90
	}
	if c.Retention.CleanupIntervalMinutes <= 0 {
		c.Retention.CleanupIntervalMinutes = 60
	}
}
