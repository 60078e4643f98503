// Package config provides configuration management for the generation service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the generation service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains language-model client settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Kafka contains Kafka settings for the extraction queue and job events.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Discovery contains search backend settings for source discovery.
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	// Ingestion contains ingestion service client settings.
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	// Collector contains corpus collection and coverage gating settings.
	Collector CollectorConfig `mapstructure:"collector"`
	// Retrieval contains chunk retrieval settings.
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	// Pipeline contains section pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Citations contains citation coordinator settings.
	Citations CitationsConfig `mapstructure:"citations"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the Prometheus metrics port (default: 9090).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue name for generation workflows.
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds language-model client configuration.
type LLMConfig struct {
	// APIKey is the provider API key (loaded from GENPAPER_LLM_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the chat model identifier.
	Model string `mapstructure:"model"`
	// EmbeddingModel is the embeddings model identifier.
	EmbeddingModel string `mapstructure:"embedding_model"`
	// BaseURL is the API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// RateLimitRPS is the requests-per-second cap applied to all calls.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

// KafkaConfig holds Kafka settings for the extraction queue and job events.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// ExtractionTopic is the topic full-text extraction jobs are enqueued to.
	ExtractionTopic string `mapstructure:"extraction_topic"`
	// EventsTopic is the topic job lifecycle events are published to.
	EventsTopic string `mapstructure:"events_topic"`
	// ControlTopic is the topic external job-control requests are consumed from.
	ControlTopic string `mapstructure:"control_topic"`
	// ControlGroupID is the consumer group for the control listener.
	ControlGroupID string `mapstructure:"control_group_id"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DiscoveryConfig holds search backend settings.
type DiscoveryConfig struct {
	// Enabled controls whether discovery beyond pinned sources is attempted.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the OpenAlex-compatible search API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the search API key, when required (GENPAPER_DISCOVERY_API_KEY).
	APIKey string `mapstructure:"-"`
	// Timeout is the timeout for search API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxResults is the maximum results requested per query.
	MaxResults int `mapstructure:"max_results"`
	// IncludeArXiv adds the arXiv Atom API as a secondary search backend.
	IncludeArXiv bool `mapstructure:"include_arxiv"`
}

// IngestionConfig holds ingestion service client settings.
type IngestionConfig struct {
	// BaseURL is the HTTP base URL of the ingestion service.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for ingestion calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// CollectorConfig holds corpus collection and coverage gating settings.
type CollectorConfig struct {
	// ChunkFloor is the chunk count below which a source needs extraction.
	ChunkFloor int `mapstructure:"chunk_floor"`
	// CoverageTarget is the coverage ratio at which waiting stops early.
	CoverageTarget float64 `mapstructure:"coverage_target"`
	// PollInterval is the coverage polling interval.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// PerSourceAllowance is the per-source contribution to the dynamic
	// coverage wait budget.
	PerSourceAllowance time.Duration `mapstructure:"per_source_allowance"`
	// MinWait is the lower clamp on the coverage wait budget.
	MinWait time.Duration `mapstructure:"min_wait"`
	// MaxWait is the upper clamp on the coverage wait budget.
	MaxWait time.Duration `mapstructure:"max_wait"`
	// MinTermMatchRatio is the minimum significant-term overlap for the
	// on-topic filter.
	MinTermMatchRatio float64 `mapstructure:"min_term_match_ratio"`
	// MinRelevanceScore is the minimum relevance score for discovered
	// sources that carry one.
	MinRelevanceScore float64 `mapstructure:"min_relevance_score"`
	// PermissiveNoScore includes discovered sources that carry no relevance
	// score of any kind, relying on the term filter alone.
	PermissiveNoScore bool `mapstructure:"permissive_no_score"`
	// ProbeConcurrency bounds parallel per-source probes.
	ProbeConcurrency int `mapstructure:"probe_concurrency"`
}

// RetrievalConfig holds chunk retrieval settings.
type RetrievalConfig struct {
	// Tiers are the score thresholds tried in order; the first tier that
	// returns results wins.
	Tiers []float64 `mapstructure:"tiers"`
	// MinChunkChars is the minimum character count for the quality filter.
	MinChunkChars int `mapstructure:"min_chunk_chars"`
	// MinChunkWords is the minimum word count for the quality filter.
	MinChunkWords int `mapstructure:"min_chunk_words"`
	// RawFallbackLimit is how many raw candidates are kept when the quality
	// filter would otherwise empty the result set.
	RawFallbackLimit int `mapstructure:"raw_fallback_limit"`
	// PerSourceFloor is the floor for the per-source balancing cap.
	PerSourceFloor int `mapstructure:"per_source_floor"`
	// ScoreFloor is the minimum acceptable average score of a result set.
	ScoreFloor float64 `mapstructure:"score_floor"`
	// AbstractSplitThreshold is the abstract length above which abstracts are
	// split into sentence pseudo-chunks rather than used whole.
	AbstractSplitThreshold int `mapstructure:"abstract_split_threshold"`
	// CacheTTL is the lifetime of cached retrieval results.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// PipelineConfig holds section pipeline settings.
type PipelineConfig struct {
	// PlanningThresholdWords is the expected word count below which the
	// planning stage is skipped.
	PlanningThresholdWords int `mapstructure:"planning_threshold_words"`
	// DefaultReflectionCycles is the default reflection cycle budget.
	DefaultReflectionCycles int `mapstructure:"default_reflection_cycles"`
	// PlateauEpsilon is the minimum score improvement to continue reflecting.
	PlateauEpsilon float64 `mapstructure:"plateau_epsilon"`
	// MinOutlinePoints is the minimum outline points for a valid plan.
	MinOutlinePoints int `mapstructure:"min_outline_points"`
	// MinCitationSlots is the minimum citation-need slots for a valid plan.
	MinCitationSlots int `mapstructure:"min_citation_slots"`
}

// CitationsConfig holds citation coordinator settings.
type CitationsConfig struct {
	// MaxSnippetChars is the maximum length of a backfill evidence snippet.
	MaxSnippetChars int `mapstructure:"max_snippet_chars"`
	// PerSourceCap is the maximum backfilled citations per source.
	PerSourceCap int `mapstructure:"per_source_cap"`
	// SynthesisHeadings are headings recognized as the synthesis section for
	// evidence insertion, matched case-insensitively.
	SynthesisHeadings []string `mapstructure:"synthesis_headings"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GENPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/genpaper")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.APIKey = os.Getenv("GENPAPER_LLM_API_KEY")
	cfg.Discovery.APIKey = os.Getenv("GENPAPER_DISCOVERY_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "genpaper")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "genpaper")
	// Default to "require" for production security. Use GENPAPER_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 4)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Temporal defaults
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "genpaper")
	v.SetDefault("temporal.task_queue", "genpaper-generation")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.rate_limit_rps", 4.0)
	v.SetDefault("llm.rate_limit_burst", 8)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.extraction_topic", "genpaper.extraction.jobs")
	v.SetDefault("kafka.events_topic", "genpaper.generation.events")
	v.SetDefault("kafka.control_topic", "genpaper.generation.control")
	v.SetDefault("kafka.control_group_id", "genpaper-worker")
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Discovery defaults
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.base_url", "https://api.openalex.org")
	v.SetDefault("discovery.timeout", "30s")
	v.SetDefault("discovery.max_results", 25)
	v.SetDefault("discovery.include_arxiv", true)

	// Ingestion defaults
	v.SetDefault("ingestion.base_url", "http://localhost:9095")
	v.SetDefault("ingestion.timeout", "30s")

	// Collector defaults
	v.SetDefault("collector.chunk_floor", 10)
	v.SetDefault("collector.coverage_target", 0.8)
	v.SetDefault("collector.poll_interval", "10s")
	v.SetDefault("collector.per_source_allowance", "90s")
	v.SetDefault("collector.min_wait", "120s")
	v.SetDefault("collector.max_wait", "600s")
	v.SetDefault("collector.min_term_match_ratio", 0.3)
	v.SetDefault("collector.min_relevance_score", 0.35)
	v.SetDefault("collector.permissive_no_score", true)
	v.SetDefault("collector.probe_concurrency", 5)

	// Retrieval defaults
	v.SetDefault("retrieval.tiers", []float64{0.5, 0.3, 0.2, 0.15})
	v.SetDefault("retrieval.min_chunk_chars", 40)
	v.SetDefault("retrieval.min_chunk_words", 8)
	v.SetDefault("retrieval.raw_fallback_limit", 10)
	v.SetDefault("retrieval.per_source_floor", 2)
	v.SetDefault("retrieval.score_floor", 0.08)
	v.SetDefault("retrieval.abstract_split_threshold", 600)
	v.SetDefault("retrieval.cache_ttl", "10m")

	// Pipeline defaults
	v.SetDefault("pipeline.planning_threshold_words", 400)
	v.SetDefault("pipeline.default_reflection_cycles", 2)
	v.SetDefault("pipeline.plateau_epsilon", 1.0)
	v.SetDefault("pipeline.min_outline_points", 3)
	v.SetDefault("pipeline.min_citation_slots", 2)

	// Citations defaults
	v.SetDefault("citations.max_snippet_chars", 220)
	v.SetDefault("citations.per_source_cap", 3)
	v.SetDefault("citations.synthesis_headings", []string{"discussion", "synthesis", "conclusion"})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("GENPAPER_LLM_API_KEY must be set")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}

	if len(c.Retrieval.Tiers) == 0 {
		return fmt.Errorf("retrieval tiers must not be empty")
	}
	for i := 1; i < len(c.Retrieval.Tiers); i++ {
		if c.Retrieval.Tiers[i] >= c.Retrieval.Tiers[i-1] {
			return fmt.Errorf("retrieval tiers must be strictly decreasing, got %v", c.Retrieval.Tiers)
		}
	}
	if c.Retrieval.ScoreFloor < 0 || c.Retrieval.ScoreFloor > 1 {
		return fmt.Errorf("retrieval score floor must be in [0,1], got %f", c.Retrieval.ScoreFloor)
	}

	if c.Collector.CoverageTarget <= 0 || c.Collector.CoverageTarget > 1 {
		return fmt.Errorf("collector coverage target must be in (0,1], got %f", c.Collector.CoverageTarget)
	}
	if c.Collector.MinWait > c.Collector.MaxWait {
		return fmt.Errorf("collector min_wait (%s) must be <= max_wait (%s)", c.Collector.MinWait, c.Collector.MaxWait)
	}
	if c.Collector.MinTermMatchRatio < 0 || c.Collector.MinTermMatchRatio > 1 {
		return fmt.Errorf("collector min_term_match_ratio must be in [0,1], got %f", c.Collector.MinTermMatchRatio)
	}

	if c.Pipeline.PlanningThresholdWords < 0 {
		return fmt.Errorf("pipeline planning_threshold_words must be non-negative")
	}
	if c.Pipeline.DefaultReflectionCycles < 1 {
		return fmt.Errorf("pipeline default_reflection_cycles must be at least 1")
	}

	if c.Citations.PerSourceCap < 1 {
		return fmt.Errorf("citations per_source_cap must be at least 1")
	}

	return nil
}
