// Package config loads and validates ragindex configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// Duration wraps time.Duration so YAML accepts strings like "30s".
type Duration time.Duration

// UnmarshalYAML parses either a Go duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(v)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete ragindex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	MultiShard MultiShardConfig `yaml:"multi_shard" json:"multi_shard"`
}

// PathsConfig names the on-disk locations the service works against.
type PathsConfig struct {
	// DataDir is the per-file index store root (fingerprint directories
	// live directly under it).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Preload is an optional collection root warmed at service startup
	// so the first external query is a cache hit.
	Preload string `yaml:"preload" json:"preload"`
}

// ChunkingConfig sets the text-splitting geometry.
type ChunkingConfig struct {
	// Size is the target chunk length in characters.
	Size int `yaml:"size" json:"size"`

	// Overlap is the neighbor overlap in characters.
	Overlap int `yaml:"overlap" json:"overlap"`
}

// EmbeddingsConfig selects and tunes the embedding backend.
type EmbeddingsConfig struct {
	// Provider picks the backend. "static" is the only built-in.
	Provider string `yaml:"provider" json:"provider"`

	// BatchSize is how many chunks embed per call during builds.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig tunes the HTTP query service.
type ServerConfig struct {
	// Port is the listen port.
	Port int `yaml:"port" json:"port"`

	// TopK is the default passage count per query.
	TopK int `yaml:"top_k" json:"top_k"`

	// QueryTimeout bounds one query end to end.
	QueryTimeout Duration `yaml:"query_timeout" json:"query_timeout"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// MultiShardConfig tunes fan-out queries over per-file indices.
type MultiShardConfig struct {
	// MaxWorkers bounds concurrent shard queries.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// KPerShard is each shard's passage take before aggregation.
	KPerShard int `yaml:"k_per_shard" json:"k_per_shard"`

	// ShardTimeout bounds each shard independently.
	ShardTimeout Duration `yaml:"shard_timeout" json:"shard_timeout"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			Size:    1200,
			Overlap: 150,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			BatchSize: 32,
		},
		Server: ServerConfig{
			Port:         1411,
			TopK:         4,
			QueryTimeout: Duration(300 * time.Second),
			LogLevel:     "info",
		},
		MultiShard: MultiShardConfig{
			MaxWorkers:   4,
			KPerShard:    3,
			ShardTimeout: Duration(30 * time.Second),
		},
	}
}

// defaultDataDir is ~/.ragindex, falling back to the temp dir when the
// home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragindex")
	}
	return filepath.Join(home, ".ragindex")
}

// GetUserConfigPath returns the user configuration location:
//   - $XDG_CONFIG_HOME/ragindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ragindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragindex", "config.yaml")
}

// Load builds the effective configuration for dir, in order of increasing
// precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/ragindex/config.yaml)
//  3. Directory config (.ragindex.yaml in dir)
//  4. Environment variables (RAGINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir loads .ragindex.yaml (or .yml) from dir when present.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".ragindex.yaml", ".ragindex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges one YAML file's non-zero values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.Preload != "" {
		c.Paths.Preload = other.Paths.Preload
	}
	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.TopK != 0 {
		c.Server.TopK = other.Server.TopK
	}
	if other.Server.QueryTimeout != 0 {
		c.Server.QueryTimeout = other.Server.QueryTimeout
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.MultiShard.MaxWorkers != 0 {
		c.MultiShard.MaxWorkers = other.MultiShard.MaxWorkers
	}
	if other.MultiShard.KPerShard != 0 {
		c.MultiShard.KPerShard = other.MultiShard.KPerShard
	}
	if other.MultiShard.ShardTimeout != 0 {
		c.MultiShard.ShardTimeout = other.MultiShard.ShardTimeout
	}
}

// applyEnvOverrides applies RAGINDEX_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGINDEX_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("RAGINDEX_PRELOAD"); v != "" {
		c.Paths.Preload = v
	}
	if v, ok := envInt("RAGINDEX_CHUNK_SIZE"); ok {
		c.Chunking.Size = v
	}
	if v, ok := envInt("RAGINDEX_CHUNK_OVERLAP"); ok {
		c.Chunking.Overlap = v
	}
	if v := os.Getenv("RAGINDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v, ok := envInt("RAGINDEX_BATCH_SIZE"); ok {
		c.Embeddings.BatchSize = v
	}
	if v, ok := envInt("RAGINDEX_PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := envInt("RAGINDEX_TOP_K"); ok {
		c.Server.TopK = v
	}
	if v, ok := envDuration("RAGINDEX_QUERY_TIMEOUT"); ok {
		c.Server.QueryTimeout = Duration(v)
	}
	if v := os.Getenv("RAGINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v, ok := envInt("RAGINDEX_MAX_WORKERS"); ok {
		c.MultiShard.MaxWorkers = v
	}
	if v, ok := envInt("RAGINDEX_K_PER_SHARD"); ok {
		c.MultiShard.KPerShard = v
	}
	if v, ok := envDuration("RAGINDEX_SHARD_TIMEOUT"); ok {
		c.MultiShard.ShardTimeout = Duration(v)
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %d (want %d)", c.Version, CurrentVersion)
	}
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Chunking.Size < 100 {
		return fmt.Errorf("chunking.size must be at least 100, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Embeddings.BatchSize < 1 || c.Embeddings.BatchSize > 256 {
		return fmt.Errorf("embeddings.batch_size must be in [1, 256], got %d", c.Embeddings.BatchSize)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.TopK < 1 {
		return fmt.Errorf("server.top_k must be positive, got %d", c.Server.TopK)
	}
	if c.Server.QueryTimeout <= 0 {
		return fmt.Errorf("server.query_timeout must be positive")
	}
	if c.MultiShard.MaxWorkers < 1 {
		return fmt.Errorf("multi_shard.max_workers must be positive, got %d", c.MultiShard.MaxWorkers)
	}
	if c.MultiShard.KPerShard < 1 || c.MultiShard.KPerShard > 8 {
		return fmt.Errorf("multi_shard.k_per_shard must be in [1, 8], got %d", c.MultiShard.KPerShard)
	}
	if c.MultiShard.ShardTimeout <= 0 {
		return fmt.Errorf("multi_shard.shard_timeout must be positive")
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error")
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
