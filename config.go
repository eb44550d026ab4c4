package patchwork

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Writer backends accepted by WriterConfig.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
)

// PipelineConfig controls how batches flow from producers into the assembler.
type PipelineConfig struct {
	// QueueCapacity is the number of submitted batches buffered before Submit blocks.
	// Recommended: 2-4x the number of producers.
	QueueCapacity int `yaml:"queueCapacity"`

	// ReorderWindow is the number of batches the consumer holds back while
	// waiting for a missing sequence number. Exceeding it fails the pipeline.
	ReorderWindow int `yaml:"reorderWindow"`

	// EntryPrefix prefixes every writer entry name, e.g. "run-42/".
	EntryPrefix string `yaml:"entryPrefix"`
}

// WriterConfig selects and configures the storage backend for assembled subjects.
type WriterConfig struct {
	// Backend is one of "memory", "sqlite" or "nats".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `yaml:"sqlitePath"`

	// NATSURL is the server URL used by the nats backend.
	NATSURL string `yaml:"natsUrl"`

	// Bucket is the JetStream object store bucket used by the nats backend.
	Bucket string `yaml:"bucket"`

	// OperationTimeout bounds a single storage operation.
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// VerifyChecksums enables xxh3 verification when entries are read back.
	VerifyChecksums bool `yaml:"verifyChecksums"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`

	// ListenAddr is the address of the /metrics endpoint. Empty disables it.
	ListenAddr string `yaml:"listenAddr"`
}

// Config is the configuration of a patchwork deployment.
type Config struct {
	// Pipeline controls batch queueing and reordering.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Writer selects the storage backend.
	Writer WriterConfig `yaml:"writer"`

	// Metrics configures metric export.
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			QueueCapacity: 16,
			ReorderWindow: 64,
		},
		Writer: WriterConfig{
			Backend:          BackendMemory,
			SQLitePath:       "patchwork.db",
			NATSURL:          "nats://127.0.0.1:4222",
			Bucket:           "patchwork-subjects",
			OperationTimeout: 10 * time.Second,
			VerifyChecksums:  true,
		},
		Metrics: MetricsConfig{
			Namespace: "patchwork",
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Boolean fields are left untouched since their zero value is meaningful.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Pipeline.QueueCapacity == 0 {
		cfg.Pipeline.QueueCapacity = defaults.Pipeline.QueueCapacity
	}
	if cfg.Pipeline.ReorderWindow == 0 {
		cfg.Pipeline.ReorderWindow = defaults.Pipeline.ReorderWindow
	}
	if cfg.Writer.Backend == "" {
		cfg.Writer.Backend = defaults.Writer.Backend
	}
	if cfg.Writer.SQLitePath == "" {
		cfg.Writer.SQLitePath = defaults.Writer.SQLitePath
	}
	if cfg.Writer.NATSURL == "" {
		cfg.Writer.NATSURL = defaults.Writer.NATSURL
	}
	if cfg.Writer.Bucket == "" {
		cfg.Writer.Bucket = defaults.Writer.Bucket
	}
	if cfg.Writer.OperationTimeout == 0 {
		cfg.Writer.OperationTimeout = defaults.Writer.OperationTimeout
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaults.Metrics.Namespace
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - QueueCapacity > 0 and ReorderWindow > 0
//   - Backend is memory, sqlite or nats
//   - sqlite requires SQLitePath; nats requires NATSURL and Bucket
//   - OperationTimeout > 0
//
// Returns:
//   - error: Error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("%w: pipeline.queueCapacity must be > 0, got %d", ErrInvalidConfig, cfg.Pipeline.QueueCapacity)
	}
	if cfg.Pipeline.ReorderWindow <= 0 {
		return fmt.Errorf("%w: pipeline.reorderWindow must be > 0, got %d", ErrInvalidConfig, cfg.Pipeline.ReorderWindow)
	}

	switch cfg.Writer.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Writer.SQLitePath == "" {
			return fmt.Errorf("%w: writer.sqlitePath is required for the sqlite backend", ErrInvalidConfig)
		}
	case BackendNATS:
		if cfg.Writer.NATSURL == "" || cfg.Writer.Bucket == "" {
			return fmt.Errorf("%w: writer.natsUrl and writer.bucket are required for the nats backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown writer.backend %q", ErrInvalidConfig, cfg.Writer.Backend)
	}

	if cfg.Writer.OperationTimeout <= 0 {
		return fmt.Errorf("%w: writer.operationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.Writer.OperationTimeout)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but non-recommended values.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Pipeline.ReorderWindow < cfg.Pipeline.QueueCapacity {
		logger.Warn(
			"reorderWindow is smaller than queueCapacity, parallel producers may overflow it",
			"reorderWindow", cfg.Pipeline.ReorderWindow,
			"queueCapacity", cfg.Pipeline.QueueCapacity,
		)
	}

	if cfg.Writer.Backend != BackendMemory && !cfg.Writer.VerifyChecksums {
		logger.Warn(
			"checksum verification disabled for persistent backend",
			"backend", cfg.Writer.Backend,
		)
	}

	if cfg.Writer.OperationTimeout < time.Second {
		logger.Warn(
			"operationTimeout is very short, large subjects may fail to store",
			"timeout", cfg.Writer.OperationTimeout,
			"recommended", "10s",
		)
	}
}

// TestConfig returns a configuration tuned for tests.
//
// Returns:
//   - Config: In-memory backend with small queues and short timeouts
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Pipeline.QueueCapacity = 4
	cfg.Pipeline.ReorderWindow = 8
	cfg.Writer.Backend = BackendMemory
	cfg.Writer.OperationTimeout = 2 * time.Second

	return cfg
}

// LoadConfig reads a YAML configuration file, applies defaults and validates it.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: Loaded configuration
//   - error: Read, parse or validation error
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, applies defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Config{Writer: WriterConfig{VerifyChecksums: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
