/*
Package config handles loading and saving genloop configuration.

Configuration is stored in ~/.genloop/config.toml, or wherever GENLOOP_CONFIG
points. Files ending in .json are read and written as JSON instead.

Example:

	[storage]
	path = "~/.genloop/genloop.db"
	retention_days = 90

	[session]
	ttl_minutes = 30
	max_entries = 1024

	[promotion]
	interval_minutes = 15

	[inference]
	provider = "sidecar"
	command = "genloop-model"
	timeout_ms = 5000

	[embedding]
	provider = "fastembed"
	model = "BAAI/bge-small-en-v1.5"

	[catalog]
	index_path = "~/.genloop/catalog.bleve"
	seed_file = "~/.genloop/snippets.json"

	[training]
	output_dir = "~/.genloop/training"
	min_abs_score = 0.3
	compress = true

	[logging]
	level = "info"
	format = "console"
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/khanglvm/genloop/internal/embedder"
	"github.com/khanglvm/genloop/internal/inference"
	"github.com/khanglvm/genloop/internal/logging"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "GENLOOP_CONFIG"

// Config is the root configuration.
type Config struct {
	Storage   StorageConfig    `toml:"storage" json:"storage"`
	Session   SessionConfig    `toml:"session" json:"session"`
	Promotion PromotionConfig  `toml:"promotion" json:"promotion"`
	Inference inference.Config `toml:"inference" json:"inference"`
	Embedding embedder.Config  `toml:"embedding" json:"embedding"`
	Catalog   CatalogConfig    `toml:"catalog" json:"catalog"`
	Training  TrainingConfig   `toml:"training" json:"training"`
	Logging   LoggingConfig    `toml:"logging" json:"logging"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// Path is the database file. Empty disables persistence.
	Path string `toml:"path" json:"path"`

	// RetentionDays prunes generation events older than this. Zero keeps everything.
	RetentionDays int `toml:"retention_days" json:"retentionDays"`
}

// SessionConfig bounds the last-generation-per-session cache.
type SessionConfig struct {
	TTLMinutes int `toml:"ttl_minutes" json:"ttlMinutes"`
	MaxEntries int `toml:"max_entries" json:"maxEntries"`
}

// PromotionConfig schedules promotion cycles.
type PromotionConfig struct {
	IntervalMinutes int `toml:"interval_minutes" json:"intervalMinutes"`
}

// CatalogConfig locates the snippet catalog index.
type CatalogConfig struct {
	// IndexPath is the bleve index directory. Empty keeps the catalog in memory.
	IndexPath string `toml:"index_path" json:"indexPath"`

	// SeedFile is a JSON array of entries loaded into an empty catalog.
	SeedFile string `toml:"seed_file" json:"seedFile,omitempty"`
}

// TrainingConfig controls dataset export.
type TrainingConfig struct {
	OutputDir   string  `toml:"output_dir" json:"outputDir"`
	MinAbsScore float64 `toml:"min_abs_score" json:"minAbsScore"`
	Limit       int     `toml:"limit" json:"limit"`
	Compress    bool    `toml:"compress" json:"compress"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file,omitempty"`
}

// NewConfig returns a configuration with every default filled in.
func NewConfig() *Config {
	return &Config{
		Storage:   StorageConfig{Path: "~/.genloop/genloop.db", RetentionDays: 90},
		Session:   SessionConfig{TTLMinutes: 30, MaxEntries: 1024},
		Promotion: PromotionConfig{IntervalMinutes: 15},
		Inference: inference.Config{Provider: inference.ProviderHeuristic, TimeoutMS: 5000},
		Embedding: embedder.Config{Provider: embedder.ProviderFastEmbed, Model: embedder.DefaultModel},
		Catalog:   CatalogConfig{IndexPath: "~/.genloop/catalog.bleve"},
		Training:  TrainingConfig{OutputDir: "~/.genloop/training", MinAbsScore: 0.3, Limit: 10000},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
	}
}

// GetDefaultConfigPath returns $GENLOOP_CONFIG or ~/.genloop/config.toml.
func GetDefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return ExpandPath(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".genloop", "config.toml"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadOrCreate reads path, writing the defaults there first if it does
// not exist. An empty path means the default path.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	if err == nil {
		return cfg, nil
	}
	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	cfg = NewConfig()
	if err := Save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPath resolves a leading ~ to the home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// SessionTTL returns the session cache TTL.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// PromotionInterval returns the time between promotion cycles.
func (c *Config) PromotionInterval() time.Duration {
	return time.Duration(c.Promotion.IntervalMinutes) * time.Minute
}

// Retention returns how long generation events are kept, zero for forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// LoggingOptions converts the logging section for logging.New.
func (c *Config) LoggingOptions() logging.Options {
	file, _ := ExpandPath(c.Logging.File)
	return logging.Options{Level: c.Logging.Level, Format: c.Logging.Format, File: file}
}
