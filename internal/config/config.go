package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-vault configuration file name.
const ProjectConfigName = ".vaultindex.yaml"

// DataDirName is the per-vault directory holding snapshots and queue state.
const DataDirName = ".vaultindex"

// Config represents the complete vaultindex configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Vault       VaultConfig       `yaml:"vault" json:"vault"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Queue       QueueConfig       `yaml:"queue" json:"queue"`
	Watch       WatchConfig       `yaml:"watch" json:"watch"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// VaultConfig configures which documents are indexed.
type VaultConfig struct {
	// Extensions lists indexable document extensions.
	Extensions []string `yaml:"extensions" json:"extensions"`

	// Exclude lists glob patterns (relative to the vault) that are never indexed.
	// Project values are appended to the defaults.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// MaxFileSize skips larger documents, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of "ollama", "openai" or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the provider model name. Empty uses the provider default.
	Model string `yaml:"model" json:"model"`

	// Dimensions fixes the embedding dimension (0 = learn from the provider).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// Host is the Ollama endpoint or an OpenAI-compatible base URL.
	Host string `yaml:"host" json:"host"`

	// Timeout bounds each embedding call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// RateLimit is the maximum embedding calls per second (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" json:"rate_burst"`

	// CacheSize is the number of query embeddings kept in memory (0 disables).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// QueueConfig configures the work queue.
type QueueConfig struct {
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max" json:"backoff_max"`
	FailureLedgerSize int           `yaml:"failure_ledger_size" json:"failure_ledger_size"`
}

// WatchConfig configures change detection.
type WatchConfig struct {
	// Debounce delays modify events until writes settle.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`

	// PollInterval is used when fsnotify is unavailable or ForcePolling is set.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	ForcePolling bool `yaml:"force_polling" json:"force_polling"`
}

// IndexConfig configures the in-memory index.
type IndexConfig struct {
	// VectorBackend is "flat" (exact) or "hnsw" (approximate).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`

	// PreviewLength bounds the stored content preview, in runes.
	PreviewLength int `yaml:"preview_length" json:"preview_length"`
}

// SearchConfig configures hybrid search.
// Weights and RRF constant are configurable via:
//  1. User config (~/.config/vaultindex/config.yaml)
//  2. Project config (.vaultindex.yaml)
//  3. Env vars (VAULTINDEX_RRF_CONSTANT, VAULTINDEX_KEYWORD_WEIGHT, VAULTINDEX_VECTOR_WEIGHT)
type SearchConfig struct {
	// RRFConstant is the k in 1/(k+rank).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// KeywordWeight scales the keyword list's RRF contribution.
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// VectorWeight scales the vector list's RRF contribution.
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// DefaultLimit is the result count when a query gives none.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// PersistenceConfig configures durable state.
type PersistenceConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `yaml:"backend" json:"backend"`

	// DataDir holds the snapshot and queue state. Relative paths are
	// resolved against the vault root; empty uses <vault>/.vaultindex.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// SaveInterval is the periodic save cadence (negative disables).
	SaveInterval time.Duration `yaml:"save_interval" json:"save_interval"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`

	// File is the log file path; empty uses ~/.vaultindex/logs/server.log.
	File string `yaml:"file" json:"file"`

	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int `yaml:"max_files" json:"max_files"`
}

// defaultExcludePatterns are directories no vault wants indexed.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/.obsidian/**",
	"**/.trash/**",
	"**/node_modules/**",
	"**/" + DataDirName + "/**",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Vault: VaultConfig{
			Extensions:  []string{".md", ".markdown"},
			Exclude:     append([]string(nil), defaultExcludePatterns...),
			MaxFileSize: 10 * 1024 * 1024,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "", // provider default
			Timeout:   10 * time.Second,
			RateBurst: 1,
			CacheSize: 256,
		},
		Queue: QueueConfig{
			Concurrency:       2,
			MaxRetries:        5,
			BackoffBase:       time.Second,
			BackoffMax:        60 * time.Second,
			FailureLedgerSize: 100,
		},
		Watch: WatchConfig{
			Debounce:     3 * time.Second,
			PollInterval: 5 * time.Second,
		},
		Index: IndexConfig{
			VectorBackend: "flat",
			PreviewLength: 1000,
		},
		Search: SearchConfig{
			// k=60 is the common RRF default
			RRFConstant:   60,
			KeywordWeight: 1.0,
			VectorWeight:  1.0,
			DefaultLimit:  10,
		},
		Persistence: PersistenceConfig{
			Backend:      "file",
			SaveInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/vaultindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/vaultindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vaultindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vaultindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "vaultindex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the vault at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/vaultindex/config.yaml)
//  3. Project config (.vaultindex.yaml in the vault root)
//  4. Environment variables (VAULTINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := LoadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .vaultindex.yaml or .vaultindex.yml.
func (c *Config) loadFromFile(dir string) error {
	// .yaml takes precedence
	for _, name := range []string{ProjectConfigName, ".vaultindex.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Vault
	if len(other.Vault.Extensions) > 0 {
		c.Vault.Extensions = other.Vault.Extensions
	}
	if len(other.Vault.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Vault.Exclude = append(c.Vault.Exclude, other.Vault.Exclude...)
	}
	if other.Vault.MaxFileSize != 0 {
		c.Vault.MaxFileSize = other.Vault.MaxFileSize
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.Host != "" {
		c.Embeddings.Host = other.Embeddings.Host
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.RateLimit != 0 {
		c.Embeddings.RateLimit = other.Embeddings.RateLimit
	}
	if other.Embeddings.RateBurst != 0 {
		c.Embeddings.RateBurst = other.Embeddings.RateBurst
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Queue
	if other.Queue.Concurrency != 0 {
		c.Queue.Concurrency = other.Queue.Concurrency
	}
	if other.Queue.MaxRetries != 0 {
		c.Queue.MaxRetries = other.Queue.MaxRetries
	}
	if other.Queue.BackoffBase != 0 {
		c.Queue.BackoffBase = other.Queue.BackoffBase
	}
	if other.Queue.BackoffMax != 0 {
		c.Queue.BackoffMax = other.Queue.BackoffMax
	}
	if other.Queue.FailureLedgerSize != 0 {
		c.Queue.FailureLedgerSize = other.Queue.FailureLedgerSize
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.PollInterval != 0 {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.ForcePolling {
		c.Watch.ForcePolling = true
	}

	// Index
	if other.Index.VectorBackend != "" {
		c.Index.VectorBackend = other.Index.VectorBackend
	}
	if other.Index.PreviewLength != 0 {
		c.Index.PreviewLength = other.Index.PreviewLength
	}

	// Search
	// Note: 0 is not a practical weight, so only non-zero values merge
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.VectorWeight != 0 {
		c.Search.VectorWeight = other.Search.VectorWeight
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}

	// Persistence
	if other.Persistence.Backend != "" {
		c.Persistence.Backend = other.Persistence.Backend
	}
	if other.Persistence.DataDir != "" {
		c.Persistence.DataDir = other.Persistence.DataDir
	}
	if other.Persistence.SaveInterval != 0 {
		c.Persistence.SaveInterval = other.Persistence.SaveInterval
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies VAULTINDEX_* environment variables. Empty
// values are ignored; malformed numbers and durations are errors.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("VAULTINDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("VAULTINDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("VAULTINDEX_EMBEDDINGS_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	// OLLAMA_HOST is honored for parity with the ollama CLI
	if v := os.Getenv("OLLAMA_HOST"); v != "" && c.Embeddings.Host == "" {
		c.Embeddings.Host = v
	}
	if err := envInt("VAULTINDEX_EMBEDDINGS_DIMENSIONS", &c.Embeddings.Dimensions); err != nil {
		return err
	}
	if err := envDuration("VAULTINDEX_EMBEDDINGS_TIMEOUT", &c.Embeddings.Timeout); err != nil {
		return err
	}
	if err := envFloat("VAULTINDEX_EMBEDDINGS_RATE_LIMIT", &c.Embeddings.RateLimit); err != nil {
		return err
	}

	if err := envInt("VAULTINDEX_QUEUE_CONCURRENCY", &c.Queue.Concurrency); err != nil {
		return err
	}
	if err := envInt("VAULTINDEX_QUEUE_MAX_RETRIES", &c.Queue.MaxRetries); err != nil {
		return err
	}
	if err := envDuration("VAULTINDEX_WATCH_DEBOUNCE", &c.Watch.Debounce); err != nil {
		return err
	}
	if v := os.Getenv("VAULTINDEX_WATCH_FORCE_POLLING"); v != "" {
		c.Watch.ForcePolling = strings.ToLower(v) == "true" || v == "1"
	}

	if v := os.Getenv("VAULTINDEX_VECTOR_BACKEND"); v != "" {
		c.Index.VectorBackend = v
	}

	if err := envInt("VAULTINDEX_RRF_CONSTANT", &c.Search.RRFConstant); err != nil {
		return err
	}
	if err := envFloat("VAULTINDEX_KEYWORD_WEIGHT", &c.Search.KeywordWeight); err != nil {
		return err
	}
	if err := envFloat("VAULTINDEX_VECTOR_WEIGHT", &c.Search.VectorWeight); err != nil {
		return err
	}

	if v := os.Getenv("VAULTINDEX_PERSISTENCE_BACKEND"); v != "" {
		c.Persistence.Backend = v
	}
	if v := os.Getenv("VAULTINDEX_DATA_DIR"); v != "" {
		c.Persistence.DataDir = v
	}
	if err := envDuration("VAULTINDEX_SAVE_INTERVAL", &c.Persistence.SaveInterval); err != nil {
		return err
	}

	if v := os.Getenv("VAULTINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VAULTINDEX_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", name, v)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", name, v)
	}
	*dst = f
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", name, v)
	}
	*dst = d
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "openai", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'ollama', 'openai' or 'static', got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.Timeout <= 0 {
		return fmt.Errorf("embeddings.timeout must be positive, got %s", c.Embeddings.Timeout)
	}
	if c.Embeddings.RateLimit < 0 {
		return fmt.Errorf("embeddings.rate_limit must be non-negative, got %f", c.Embeddings.RateLimit)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be non-negative, got %d", c.Queue.MaxRetries)
	}
	if c.Queue.BackoffBase <= 0 || c.Queue.BackoffMax < c.Queue.BackoffBase {
		return fmt.Errorf("queue backoff must satisfy 0 < backoff_base <= backoff_max, got %s and %s",
			c.Queue.BackoffBase, c.Queue.BackoffMax)
	}
	if c.Queue.FailureLedgerSize < 1 {
		return fmt.Errorf("queue.failure_ledger_size must be at least 1, got %d", c.Queue.FailureLedgerSize)
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be non-negative, got %s", c.Watch.Debounce)
	}

	switch strings.ToLower(c.Index.VectorBackend) {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("index.vector_backend must be 'flat' or 'hnsw', got %q", c.Index.VectorBackend)
	}
	if c.Index.PreviewLength < 0 {
		return fmt.Errorf("index.preview_length must be non-negative, got %d", c.Index.PreviewLength)
	}

	if c.Search.RRFConstant < 1 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	for name, w := range map[string]float64{
		"keyword_weight": c.Search.KeywordWeight,
		"vector_weight":  c.Search.VectorWeight,
	} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("search.%s must be a non-negative number, got %f", name, w)
		}
	}
	if c.Search.KeywordWeight+c.Search.VectorWeight == 0 {
		return fmt.Errorf("search.keyword_weight and search.vector_weight cannot both be zero")
	}
	if c.Search.DefaultLimit < 0 {
		return fmt.Errorf("search.default_limit must be non-negative, got %d", c.Search.DefaultLimit)
	}

	switch strings.ToLower(c.Persistence.Backend) {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("persistence.backend must be 'file', 'sqlite' or 'memory', got %q", c.Persistence.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// DataDir returns the absolute data directory for the vault at root.
func (c *Config) DataDir(root string) string {
	dir := c.Persistence.DataDir
	if dir == "" {
		return filepath.Join(root, DataDirName)
	}
	if !filepath.IsAbs(dir) {
		return filepath.Join(root, dir)
	}
	return dir
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindVaultRoot finds the vault root directory by walking up from startDir
// looking for a .vaultindex.yaml/.yml file. When none is found, startDir
// itself is the root.
func FindVaultRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absDir); err != nil {
		return "", fmt.Errorf("vault directory: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, ProjectConfigName)) ||
			fileExists(filepath.Join(currentDir, ".vaultindex.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
