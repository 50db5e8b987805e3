// Package config loads the cvsearch YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar selects the config file: config/{env}.yaml.
const EnvVar = "CVSEARCH_ENV"

// Supported drivers and providers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"

	ProviderOpenAI    = "openai"
	ProviderLangchain = "langchain"
)

// Config holds the cvsearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds record store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, sqlite (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	SQLitePath       string   `yaml:"sqlite_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// KeyPrefix namespaces the embedding cache and budget counters. It must
	// not fall under index.prefix.
	KeyPrefix string `yaml:"key_prefix"`
}

// IndexConfig describes the record index.
type IndexConfig struct {
	Name            string `yaml:"name"`
	Prefix          string `yaml:"prefix"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	// CustomTags are metadata keys indexed for equality filters.
	CustomTags []string `yaml:"custom_tags"`
}

// EmbeddingConfig holds embedding provider and decorator settings.
type EmbeddingConfig struct {
	Provider            string       `yaml:"provider"` // openai, langchain (default: openai)
	BaseURL             string       `yaml:"base_url"`
	APIKey              string       `yaml:"api_key"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"`
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	TimeoutSec          int          `yaml:"timeout_sec"`
	CacheTTLHours       int          `yaml:"cache_ttl_hours"` // 0 = keep forever
	RequestsPerSecond   float64      `yaml:"requests_per_second"`
	Burst               int          `yaml:"burst"`
	Budget              BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" (default) | "warn"
}

// SearchConfig holds pagination limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Workers      int `yaml:"workers"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes the YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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

// GetEnv returns the current environment from CVSEARCH_ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/cvsearch.db"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "cvsearch:kv:"
	}
	if c.Index.Name == "" {
		c.Index.Name = "cvsearch:records:idx"
	}
	if c.Index.Prefix == "" {
		c.Index.Prefix = "cvsearch:record:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Ingest.MaxBatchSize <= 0 {
		c.Ingest.MaxBatchSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverSQLite, c.Database.Driver)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderLangchain:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderLangchain, c.Embedding.Provider)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.requests_per_second must not be negative")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if strings.HasPrefix(c.Database.KeyPrefix, c.Index.Prefix) {
		return fmt.Errorf("database.key_prefix %q must not fall under index.prefix %q",
			c.Database.KeyPrefix, c.Index.Prefix)
	}
	if slices.Contains(c.Index.CustomTags, "") {
		return fmt.Errorf("index.custom_tags contains an empty key")
	}
	return nil
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
