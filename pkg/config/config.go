// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Retrieval, Memory, Ingestion, OpenAI, Redis, Kafka,
// Postgres, etc.). The scoring and windowing constants live here on purpose:
// the threshold asymmetry (filtering on raw distance, not similarity) and the
// confidence blend weights are tunable policy, not hardcoded logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Memory    MemoryConfig    `yaml:"memory"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	RateWindow      time.Duration `yaml:"rateWindow"`
}

// RetrievalConfig controls chunk retrieval and answer scoring.
//
// DistanceThreshold filters on the raw cosine distance returned by the chunk
// store (keep when distance < threshold), not on the transformed similarity.
// BestCutoff, count-factor, and blend weights parameterise the confidence
// formula: countFactor = min(CountFactorBase + CountFactorStep*n, 1.0);
// best > BestCutoff uses best*countFactor, otherwise
// (BestWeight*best + AvgWeight*avg) * countFactor.
type RetrievalConfig struct {
	MaxResults        int     `yaml:"maxResults"`
	TopSources        int     `yaml:"topSources"`
	DistanceThreshold float64 `yaml:"distanceThreshold"`
	BestCutoff        float64 `yaml:"bestCutoff"`
	CountFactorBase   float64 `yaml:"countFactorBase"`
	CountFactorStep   float64 `yaml:"countFactorStep"`
	BestWeight        float64 `yaml:"bestWeight"`
	AvgWeight         float64 `yaml:"avgWeight"`
}

// MemoryConfig controls the per-session conversation window.
type MemoryConfig struct {
	WindowSize    int `yaml:"windowSize"`    // exchanges kept (turns = 2x)
	RenderTurns   int `yaml:"renderTurns"`   // turns included in the prompt
	PreviewLength int `yaml:"previewLength"` // chars per turn in diagnostics
}

// IngestionConfig controls document validation and chunking.
type IngestionConfig struct {
	ChunkSize         int      `yaml:"chunkSize"`
	ChunkOverlap      int      `yaml:"chunkOverlap"`
	MaxDocumentBytes  int      `yaml:"maxDocumentBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	EmbedBatchSize    int      `yaml:"embedBatchSize"`
	EmbedConcurrency  int      `yaml:"embedConcurrency"`
}

// OpenAIConfig holds language-model and embedding settings.
type OpenAIConfig struct {
	APIKey         string        `yaml:"apiKey"`
	BaseURL        string        `yaml:"baseUrl"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"maxTokens"`
	Timeout        time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis connection and retrieval-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryEvents    string `yaml:"queryEvents"`
	DocumentEvents string `yaml:"documentEvents"`
}

// PostgresConfig holds document-registry connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       60,
			RateWindow:      time.Minute,
		},
		Retrieval: RetrievalConfig{
			MaxResults:        5,
			TopSources:        3,
			DistanceThreshold: 0.7,
			BestCutoff:        0.6,
			CountFactorBase:   0.8,
			CountFactorStep:   0.1,
			BestWeight:        0.7,
			AvgWeight:         0.3,
		},
		Memory: MemoryConfig{
			WindowSize:    5,
			RenderTurns:   6,
			PreviewLength: 100,
		},
		Ingestion: IngestionConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			MaxDocumentBytes:  10 * 1024 * 1024,
			AllowedExtensions: []string{".txt", ".md", ".pdf", ".docx"},
			EmbedBatchSize:    64,
			EmbedConcurrency:  4,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4",
			EmbeddingModel: "text-embedding-ada-002",
			Temperature:    0.1,
			MaxTokens:      1000,
			Timeout:        60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docqa-group",
			Topics: KafkaTopics{
				QueryEvents:    "query-events",
				DocumentEvents: "document-events",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docqa",
			User:            "docqa",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads DQ_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DQ_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DQ_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("DQ_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("DQ_OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("DQ_RETRIEVAL_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.DistanceThreshold = threshold
		}
	}
	if v := os.Getenv("DQ_MEMORY_WINDOW"); v != "" {
		if window, err := strconv.Atoi(v); err == nil {
			cfg.Memory.WindowSize = window
		}
	}
	if v := os.Getenv("DQ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DQ_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DQ_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DQ_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DQ_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DQ_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DQ_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DQ_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DQ_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DQ_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
