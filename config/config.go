package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docrag.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Loader     LoaderConfig     `yaml:"loader"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig holds the data and index directories. Relative paths are
// resolved against the root directory.
type PathsConfig struct {
	DataDir  string `yaml:"data_dir"`
	StoreDir string `yaml:"store_dir"`
}

// LoaderConfig controls which files are ingested.
type LoaderConfig struct {
	MarkerFile        string   `yaml:"marker_file"`        // Always ignored by the loader
	Ignore            []string `yaml:"ignore"`             // Glob patterns matched against file names
	AllowedExtensions []string `yaml:"allowed_extensions"` // Accepted for upload, without dot
}

// ChunkConfig holds chunking configuration. Sizes are in characters.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	ClearAttempts  int `yaml:"clear_attempts"`
	ClearBackoffMS int `yaml:"clear_backoff_ms"`
	OpenTimeoutMS  int `yaml:"open_timeout_ms"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`    // "openai" (any OpenAI-compatible endpoint) or "hash"
	Model       string `yaml:"model"`       // e.g., "all-minilm"
	BaseURL     string `yaml:"base_url"`    // e.g., "http://localhost:11434/v1"
	APIKeyEnv   string `yaml:"api_key_env"` // Environment variable for API key
	Dimension   int    `yaml:"dimension"`   // Only used by the hash provider
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GenerationConfig holds generation backend configuration.
type GenerationConfig struct {
	Provider       string  `yaml:"provider"` // "openai" or "echo"
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	PromptTemplate string  `yaml:"prompt_template"` // text/template with .Context and .Question; empty uses the built-in prompt
	SkipSelfTest   bool    `yaml:"skip_self_test"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK         int     `yaml:"top_k"`
	CacheSize    int     `yaml:"cache_size"` // 0 disables the query cache
	CacheTTLSecs int     `yaml:"cache_ttl_secs"`
	MMRLambda    float64 `yaml:"mmr_lambda"`    // 0 disables MMR diversification
	DedupJaccard float64 `yaml:"dedup_jaccard"` // Drop candidates more similar than this to a selected one
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // Empty logs to stderr only
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:  "data",
			StoreDir: "chroma_db",
		},
		Loader: LoaderConfig{
			MarkerFile:        "README.md",
			Ignore:            []string{".*", "~$*"},
			AllowedExtensions: []string{"pdf", "txt", "csv", "docx"},
		},
		Chunk: ChunkConfig{
			Size:    800,
			Overlap: 80,
		},
		Store: StoreConfig{
			ClearAttempts:  3,
			ClearBackoffMS: 1000,
			OpenTimeoutMS:  2000,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "all-minilm",
			BaseURL:     "http://localhost:11434/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   384,
			BatchSize:   64,
			TimeoutSecs: 60,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "mistral",
			BaseURL:     "http://localhost:11434/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.7,
			TimeoutSecs: 300,
		},
		Retrieve: RetrieveConfig{
			TopK:         5,
			CacheSize:    100,
			CacheTTLSecs: 300,
			MMRLambda:    0,
			DedupJaccard: 0.9,
		},
		Server: ServerConfig{
			Addr:        ":5000",
			MaxUploadMB: 32,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "logs/app.log",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("chunk.overlap must be in [0, %d), got %d", c.Chunk.Size, c.Chunk.Overlap)
	}
	if c.Store.ClearAttempts < 1 {
		return fmt.Errorf("store.clear_attempts must be at least 1, got %d", c.Store.ClearAttempts)
	}
	if c.Retrieve.TopK < 1 {
		return fmt.Errorf("retrieve.top_k must be at least 1, got %d", c.Retrieve.TopK)
	}
	if c.Retrieve.MMRLambda < 0 || c.Retrieve.MMRLambda > 1 {
		return fmt.Errorf("retrieve.mmr_lambda must be in [0, 1], got %g", c.Retrieve.MMRLambda)
	}
	if len(c.Loader.AllowedExtensions) == 0 {
		return fmt.Errorf("loader.allowed_extensions must not be empty")
	}
	return nil
}

// AllowedExtensions returns the normalized allowed extension set.
func (c *Config) AllowedExtensions() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Loader.AllowedExtensions))
	for _, ext := range c.Loader.AllowedExtensions {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return set
}

// DataDir returns the source-document directory resolved against root.
func (c *Config) DataDir(root string) string {
	return resolve(root, c.Paths.DataDir)
}

// StoreDir returns the persistent index directory resolved against root.
func (c *Config) StoreDir(root string) string {
	return resolve(root, c.Paths.StoreDir)
}

// LogFile returns the log file path resolved against root, or "" when file logging is off.
func (c *Config) LogFile(root string) string {
	if c.Logging.File == "" {
		return ""
	}
	return resolve(root, c.Logging.File)
}

// ClearBackoff returns the delay between directory clear attempts.
func (c *Config) ClearBackoff() time.Duration {
	return time.Duration(c.Store.ClearBackoffMS) * time.Millisecond
}

// OpenTimeout returns how long opening the store waits for the file lock.
func (c *Config) OpenTimeout() time.Duration {
	return time.Duration(c.Store.OpenTimeoutMS) * time.Millisecond
}

// GenerationTimeout returns the bound on a single generation call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSecs) * time.Second
}

// EmbeddingTimeout returns the bound on a single embedding request.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSecs) * time.Second
}

// CacheTTL returns the query cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Retrieve.CacheTTLSecs) * time.Second
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
