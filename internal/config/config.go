// Package config holds the persisted foldersync settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/openmined/foldersync/internal/handle/s3tree"
	"github.com/openmined/foldersync/internal/sync"
	"github.com/openmined/foldersync/internal/utils"
)

const (
	PairsFileName   = "pairs.json"
	JournalFileName = "journal.db"
	LogFileName     = "foldersync.log"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".foldersync")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "config.json")
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	DataDir     string        `json:"data_dir" mapstructure:"data_dir"`
	PairsFile   string        `json:"pairs_file,omitempty" mapstructure:"pairs_file"`
	JournalFile string        `json:"journal_file,omitempty" mapstructure:"journal_file"`
	LogFile     string        `json:"log_file,omitempty" mapstructure:"log_file"`
	Mode        string        `json:"mode,omitempty" mapstructure:"mode"`
	Ignore      []string      `json:"ignore,omitempty" mapstructure:"ignore"`
	MetricsFile string        `json:"metrics_file,omitempty" mapstructure:"metrics_file"`
	S3          s3tree.Config `json:"s3" mapstructure:"s3"`
	Path        string        `json:"-" mapstructure:"-"`

	// IgnoreDefaults adds the OS and editor scratch file rules in front of Ignore.
	IgnoreDefaults bool `json:"ignore_defaults,omitempty" mapstructure:"ignore_defaults"`
}

// Validate resolves every path to its absolute form, fills the files that default to the data
// dir and rejects unknown sync modes.
func (c *Config) Validate() error {
	var err error

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("%w: data dir: %w", ErrInvalidConfig, err)
	}

	if c.Path == "" {
		c.Path = DefaultConfigPath
	}
	if c.Path, err = utils.ResolvePath(c.Path); err != nil {
		return fmt.Errorf("%w: config path: %w", ErrInvalidConfig, err)
	}

	for _, f := range []struct {
		name  string
		value *string
		def   string
	}{
		{"pairs file", &c.PairsFile, PairsFileName},
		{"journal file", &c.JournalFile, JournalFileName},
		{"log file", &c.LogFile, filepath.Join("logs", LogFileName)},
	} {
		if *f.value == "" {
			*f.value = filepath.Join(c.DataDir, f.def)
		}
		if *f.value, err = utils.ResolvePath(*f.value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, f.name, err)
		}
	}

	if c.MetricsFile != "" {
		if c.MetricsFile, err = utils.ResolvePath(c.MetricsFile); err != nil {
			return fmt.Errorf("%w: metrics file: %w", ErrInvalidConfig, err)
		}
	}

	mode, err := sync.ParseSyncMode(c.Mode)
	if err != nil {
		return fmt.Errorf("%w: mode: %w", ErrInvalidConfig, err)
	}
	c.Mode = string(mode)

	if c.S3.Endpoint != "" && !strings.HasPrefix(c.S3.Endpoint, "http://") && !strings.HasPrefix(c.S3.Endpoint, "https://") {
		return fmt.Errorf("%w: s3 endpoint must be an http(s) url: %q", ErrInvalidConfig, c.S3.Endpoint)
	}
	return nil
}

// SyncMode returns the configured default mode. Call Validate first.
func (c *Config) SyncMode() sync.SyncMode {
	mode, err := sync.ParseSyncMode(c.Mode)
	if err != nil {
		return sync.TwoWay
	}
	return mode
}

// IgnorePatterns returns the rules the engine is built with, not counting the ignore file.
func (c *Config) IgnorePatterns() []string {
	if !c.IgnoreDefaults {
		return c.Ignore
	}
	return append(sync.DefaultIgnorePatterns(), c.Ignore...)
}

// IgnoreFilePath is the optional gitignore style file in the data dir.
func (c *Config) IgnoreFilePath() string {
	return filepath.Join(c.DataDir, sync.IgnoreFileName)
}

// Save writes the config to c.Path. The file may carry S3 keys and is only readable by the
// owner.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("%w: no config path", ErrInvalidConfig)
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.Path, data, 0o600)
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_dir", c.DataDir),
		slog.String("pairs_file", c.PairsFile),
		slog.String("journal_file", c.JournalFile),
		slog.String("mode", c.Mode),
		slog.Int("ignore", len(c.Ignore)),
		slog.Bool("ignore_defaults", c.IgnoreDefaults),
		slog.String("s3_region", c.S3.Region),
		slog.Bool("s3_static_keys", c.S3.AccessKey != ""),
	)
}

// LoadFromFile reads a config written by Save.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	cfg.Path = path
	return &cfg, nil
}
