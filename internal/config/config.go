package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the RAG worker configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Admin     AdminConfig     `yaml:"admin"`
	Broker    BrokerConfig    `yaml:"broker"`
	Vector    VectorConfig    `yaml:"vector"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	AI        AIConfig        `yaml:"ai"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Audit     AuditConfig     `yaml:"audit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AdminConfig holds the health/metrics HTTP server settings.
type AdminConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys"`
}

// BrokerConfig holds RabbitMQ settings.
type BrokerConfig struct {
	URL              string      `yaml:"url"`
	Exchange         string      `yaml:"exchange"`
	Namespace        string      `yaml:"namespace"`
	Queues           QueueConfig `yaml:"queues"`
	RetryTTLMs       int         `yaml:"retry_ttl_ms"`
	MaxAttempts      int         `yaml:"max_attempts"`
	Prefetch         int         `yaml:"prefetch"`
	ReconnectDelayMs int         `yaml:"reconnect_delay_ms"`
}

// QueueConfig names the service part of each consumer queue.
type QueueConfig struct {
	Chat      string `yaml:"chat"`      // default: rag.worker
	Documents string `yaml:"documents"` // default: doc.upload
}

// VectorConfig selects the vector store driver.
type VectorConfig struct {
	Driver    string `yaml:"driver"` // redis (default), pgvector, qdrant, memory
	Dimension int    `yaml:"dimension"`
	TopK      int    `yaml:"top_k"`
}

// RedisConfig holds Redis connection and index settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// PostgresConfig holds the pgvector and audit database settings.
type PostgresConfig struct {
	DSN              string `yaml:"dsn"`
	MaxConns         int32  `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// AIConfig selects chat and embedding providers.
type AIConfig struct {
	ChatProvider      string                    `yaml:"chat_provider"`
	EmbeddingProvider string                    `yaml:"embedding_provider"`
	MaxRetries        int                       `yaml:"max_retries"`
	RetryDelayMs      int                       `yaml:"retry_delay_ms"`
	EmbeddingCache    EmbeddingCacheConfig      `yaml:"embedding_cache"`
	Providers         map[string]ProviderConfig `yaml:"providers"`
}

// EmbeddingCacheConfig enables the Redis embedding cache.
type EmbeddingCacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// ProviderConfig holds one AI provider's settings.
type ProviderConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	APIVersion     string `yaml:"api_version"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSec     int    `yaml:"timeout_sec"`
}

// IngestionConfig holds chunking and extraction settings.
type IngestionConfig struct {
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	BasePath         string `yaml:"base_path"`
	HTMLMode         string `yaml:"html_mode"` // text (default) or markdown
	EmbedConcurrency int    `yaml:"embed_concurrency"`
}

// AuditConfig enables the Postgres execution log.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Vector store drivers.
const (
	DriverRedis    = "redis"
	DriverPgvector = "pgvector"
	DriverQdrant   = "qdrant"
	DriverMemory   = "memory"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates the YAML file at configPath.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if !fileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Admin.Port == 0 {
		c.Admin.Port = 8081
	}
	if c.Admin.ReadTimeoutSec <= 0 {
		c.Admin.ReadTimeoutSec = 10
	}
	if c.Admin.WriteTimeoutSec <= 0 {
		c.Admin.WriteTimeoutSec = 10
	}
	if c.Admin.ShutdownSec <= 0 {
		c.Admin.ShutdownSec = 10
	}

	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "ers.ex.events"
	}
	if c.Broker.Namespace == "" {
		c.Broker.Namespace = "ers"
	}
	if c.Broker.Queues.Chat == "" {
		c.Broker.Queues.Chat = "rag.worker"
	}
	if c.Broker.Queues.Documents == "" {
		c.Broker.Queues.Documents = "doc.upload"
	}
	if c.Broker.RetryTTLMs <= 0 {
		c.Broker.RetryTTLMs = 30000
	}
	if c.Broker.MaxAttempts <= 0 {
		c.Broker.MaxAttempts = 5
	}
	if c.Broker.Prefetch <= 0 {
		c.Broker.Prefetch = 1
	}
	if c.Broker.ReconnectDelayMs <= 0 {
		c.Broker.ReconnectDelayMs = 5000
	}

	if c.Vector.Driver == "" {
		c.Vector.Driver = DriverRedis
	}
	if c.Vector.TopK <= 0 {
		c.Vector.TopK = 5
	}

	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.HNSWM <= 0 {
		c.Redis.HNSWM = 16
	}
	if c.Redis.HNSWEFConstruct <= 0 {
		c.Redis.HNSWEFConstruct = 200
	}
	if c.Postgres.ReadinessTimeout <= 0 {
		c.Postgres.ReadinessTimeout = 10
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}

	if c.AI.MaxRetries <= 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.RetryDelayMs <= 0 {
		c.AI.RetryDelayMs = 500
	}
	c.AI.normalizeNames()

	// Overlap 0 is a valid setting, so it only defaults along with the size.
	if c.Ingestion.ChunkSize <= 0 {
		c.Ingestion.ChunkSize = 800
		if c.Ingestion.ChunkOverlap == 0 {
			c.Ingestion.ChunkOverlap = 100
		}
	}
	if c.Ingestion.HTMLMode == "" {
		c.Ingestion.HTMLMode = "text"
	}
	if c.Ingestion.EmbedConcurrency <= 0 {
		c.Ingestion.EmbedConcurrency = 1
	}
}

// normalizeNames lower-cases provider names so selectors and map keys match
// the case-insensitive provider registry.
func (a *AIConfig) normalizeNames() {
	a.ChatProvider = strings.ToLower(strings.TrimSpace(a.ChatProvider))
	a.EmbeddingProvider = strings.ToLower(strings.TrimSpace(a.EmbeddingProvider))
	if len(a.Providers) == 0 {
		return
	}
	providers := make(map[string]ProviderConfig, len(a.Providers))
	for name, p := range a.Providers {
		providers[strings.ToLower(strings.TrimSpace(name))] = p
	}
	a.Providers = providers
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("admin.port must be between 0 and 65535, got %d", c.Admin.Port)
	}
	if c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required")
	}
	if c.Vector.Dimension <= 0 {
		return fmt.Errorf("vector.dimension must be positive, got %d", c.Vector.Dimension)
	}

	switch c.Vector.Driver {
	case DriverRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for the redis driver")
		}
	case DriverPgvector:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the pgvector driver")
		}
	case DriverQdrant:
		if c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant.host is required for the qdrant driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("vector.driver must be one of redis, pgvector, qdrant, memory, got %q", c.Vector.Driver)
	}

	if c.AI.ChatProvider == "" {
		return fmt.Errorf("ai.chat_provider is required")
	}
	if c.AI.EmbeddingProvider == "" {
		return fmt.Errorf("ai.embedding_provider is required")
	}
	if c.AI.EmbeddingCache.Enabled && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("ai.embedding_cache requires redis.addrs")
	}
	if c.Audit.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("audit requires postgres.dsn")
	}

	if c.Ingestion.ChunkOverlap < 0 {
		return fmt.Errorf("ingestion.chunk_overlap must not be negative, got %d", c.Ingestion.ChunkOverlap)
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize)
	}
	switch c.Ingestion.HTMLMode {
	case "text", "markdown":
	default:
		return fmt.Errorf("ingestion.html_mode must be \"text\" or \"markdown\", got %q", c.Ingestion.HTMLMode)
	}
	return nil
}

// RetryTTL is how long a failed delivery waits in the retry queue.
func (b BrokerConfig) RetryTTL() time.Duration {
	return time.Duration(b.RetryTTLMs) * time.Millisecond
}

// ReconnectDelay is the pause between consume loop reconnects.
func (b BrokerConfig) ReconnectDelay() time.Duration {
	return time.Duration(b.ReconnectDelayMs) * time.Millisecond
}

// RetryDelay is the fixed delay between provider attempts.
func (a AIConfig) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelayMs) * time.Millisecond
}

// Timeout is the per-request provider timeout; zero means the backend default.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
