// Package config handles configuration loading, validation, and management for keyintent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"keyintent/internal/logging"
	"keyintent/internal/pointer"
	"keyintent/internal/suggest"
)

// Version is the current configuration schema version.
const Version = 2

// Config holds the complete keyboard configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Keyboard holds touch resolution and timing parameters.
	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`

	// Suggest holds ranking parameters.
	Suggest SuggestConfig `toml:"suggest" json:"suggest" yaml:"suggest"`

	// Dictionary holds word sources and persistence.
	Dictionary DictionaryConfig `toml:"dictionary" json:"dictionary" yaml:"dictionary"`

	// AutoText maps lower-case words to replacements, e.g. "teh" = "the".
	AutoText map[string]string `toml:"autotext" json:"autotext" yaml:"autotext"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// KeyboardConfig holds layout and touch handling configuration.
type KeyboardConfig struct {
	// Layout is the built-in layout: "qwerty" or "phone".
	Layout string `toml:"layout" json:"layout" yaml:"layout"`

	// Width and Height are the keyboard size in pixels.
	Width  int `toml:"width" json:"width" yaml:"width"`
	Height int `toml:"height" json:"height" yaml:"height"`

	// HysteresisPx is the distance a finger may stray past a key edge
	// before the key changes.
	HysteresisPx int `toml:"hysteresis_px" json:"hysteresis_px" yaml:"hysteresis_px"`

	// ProximityCorrection reports neighbouring keys as alternates.
	ProximityCorrection bool `toml:"proximity_correction" json:"proximity_correction" yaml:"proximity_correction"`

	MultiTapIntervalMs int `toml:"multitap_interval_ms" json:"multitap_interval_ms" yaml:"multitap_interval_ms"`
	KeyDebounceMs      int `toml:"key_debounce_ms" json:"key_debounce_ms" yaml:"key_debounce_ms"`
	RepeatStartDelayMs int `toml:"repeat_start_delay_ms" json:"repeat_start_delay_ms" yaml:"repeat_start_delay_ms"`
	RepeatIntervalMs   int `toml:"repeat_interval_ms" json:"repeat_interval_ms" yaml:"repeat_interval_ms"`
	LongPressTimeoutMs int `toml:"long_press_timeout_ms" json:"long_press_timeout_ms" yaml:"long_press_timeout_ms"`
}

// SuggestConfig holds suggestion ranking configuration.
type SuggestConfig struct {
	// MaxSuggestions is the size of the suggestion strip (1..100).
	MaxSuggestions int `toml:"max_suggestions" json:"max_suggestions" yaml:"max_suggestions"`

	// CorrectionMode is "none", "basic" or "full".
	CorrectionMode string `toml:"correction_mode" json:"correction_mode" yaml:"correction_mode"`

	// AutoText enables the [autotext] replacement pass.
	AutoText bool `toml:"auto_text" json:"auto_text" yaml:"auto_text"`

	// AutoCorrect commits the best correction when a separator is typed.
	AutoCorrect bool `toml:"auto_correct" json:"auto_correct" yaml:"auto_correct"`

	// AutoCapitalize shifts the first letter of each sentence.
	AutoCapitalize bool `toml:"auto_capitalize" json:"auto_capitalize" yaml:"auto_capitalize"`

	// QuickFixes is the version 1 spelling of CorrectionMode. Migrated away on load.
	QuickFixes *bool `toml:"quick_fixes,omitempty" json:"quick_fixes,omitempty" yaml:"quick_fixes,omitempty"`
}

// DictionaryConfig holds word source configuration.
type DictionaryConfig struct {
	// WordList is the main dictionary word list (.txt, .yaml or .json).
	WordList string `toml:"word_list" json:"word_list" yaml:"word_list"`

	// StorePath is the SQLite database for learned and user words.
	// Empty keeps learned words in memory only.
	StorePath string `toml:"store_path" json:"store_path" yaml:"store_path"`

	// Locale selects the learned and user word sets.
	Locale string `toml:"locale" json:"locale" yaml:"locale"`

	// Learn enables the auto-learning dictionary.
	Learn bool `toml:"learn" json:"learn" yaml:"learn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: "stdout", "stderr", "file", "both" or "discard".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// LogTypedText keeps typed words in debug logs.
	LogTypedText bool `toml:"log_typed_text" json:"log_typed_text" yaml:"log_typed_text"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := KeyintentDir()

	return &Config{
		Version: Version,
		Keyboard: KeyboardConfig{
			Layout:              "qwerty",
			Width:               480,
			Height:              240,
			HysteresisPx:        8,
			ProximityCorrection: true,
			MultiTapIntervalMs:  800,
			KeyDebounceMs:       70,
			RepeatStartDelayMs:  400,
			RepeatIntervalMs:    50,
			LongPressTimeoutMs:  500,
		},
		Suggest: SuggestConfig{
			MaxSuggestions: suggest.DefaultMaxSuggestions,
			CorrectionMode: "full",
			AutoText:       true,
			AutoCorrect:    true,
			AutoCapitalize: true,
		},
		Dictionary: DictionaryConfig{
			WordList:  "",
			StorePath: filepath.Join(dir, "words.db"),
			Locale:    "en_US",
			Learn:     true,
		},
		AutoText: map[string]string{},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "keyintent.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := MigrateConfig(cfg, ""); err != nil {
		return nil, fmt.Errorf("migrate config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories of the store and log file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Logging.FilePath),
	}
	if c.Dictionary.StorePath != "" {
		dirs = append(dirs, filepath.Dir(c.Dictionary.StorePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// KeyintentDir returns the base data directory.
// KEYINTENT_DATA_DIR overrides the platform default.
func KeyintentDir() string {
	if envDir := os.Getenv("KEYINTENT_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with KEYINTENT_ and use underscores.
// Malformed numeric or boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Keyboard overrides
	if v := os.Getenv("KEYINTENT_LAYOUT"); v != "" {
		c.Keyboard.Layout = v
	}
	envInt("KEYINTENT_HYSTERESIS_PX", &c.Keyboard.HysteresisPx)
	envInt("KEYINTENT_MULTITAP_INTERVAL_MS", &c.Keyboard.MultiTapIntervalMs)
	envBool("KEYINTENT_PROXIMITY_CORRECTION", &c.Keyboard.ProximityCorrection)

	// Suggest overrides
	envInt("KEYINTENT_MAX_SUGGESTIONS", &c.Suggest.MaxSuggestions)
	if v := os.Getenv("KEYINTENT_CORRECTION_MODE"); v != "" {
		c.Suggest.CorrectionMode = v
	}
	envBool("KEYINTENT_AUTO_CORRECT", &c.Suggest.AutoCorrect)

	// Dictionary overrides
	if v := os.Getenv("KEYINTENT_WORD_LIST"); v != "" {
		c.Dictionary.WordList = v
	}
	if v := os.Getenv("KEYINTENT_STORE_PATH"); v != "" {
		c.Dictionary.StorePath = v
	}
	if v := os.Getenv("KEYINTENT_LOCALE"); v != "" {
		c.Dictionary.Locale = v
	}

	// Logging overrides
	if v := os.Getenv("KEYINTENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYINTENT_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Metrics overrides
	if v := os.Getenv("KEYINTENT_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
		c.Metrics.Enabled = true
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:    c.Version,
		Keyboard:   c.Keyboard,
		Suggest:    c.Suggest,
		Dictionary: c.Dictionary,
		Logging:    c.Logging,
		Metrics:    c.Metrics,
	}
	if c.Suggest.QuickFixes != nil {
		v := *c.Suggest.QuickFixes
		clone.Suggest.QuickFixes = &v
	}
	if c.AutoText != nil {
		clone.AutoText = make(map[string]string, len(c.AutoText))
		for k, v := range c.AutoText {
			clone.AutoText[k] = v
		}
	}
	return clone
}

// PointerOptions converts the keyboard section into tracker options.
func (c *Config) PointerOptions() pointer.Options {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return pointer.Options{
		Hysteresis:       c.Keyboard.HysteresisPx,
		DebounceTime:     ms(c.Keyboard.KeyDebounceMs),
		MultiTapInterval: ms(c.Keyboard.MultiTapIntervalMs),
		RepeatStartDelay: ms(c.Keyboard.RepeatStartDelayMs),
		RepeatInterval:   ms(c.Keyboard.RepeatIntervalMs),
		LongPressTimeout: ms(c.Keyboard.LongPressTimeoutMs),
	}
}

// RankerOptions converts the suggest and autotext sections into ranker
// options. The config must be valid.
func (c *Config) RankerOptions() []suggest.Option {
	mode, _ := suggest.ParseCorrectionMode(c.Suggest.CorrectionMode)
	opts := []suggest.Option{
		suggest.WithCorrectionMode(mode),
		suggest.WithMaxSuggestions(c.Suggest.MaxSuggestions),
	}
	if c.Suggest.AutoText && len(c.AutoText) > 0 {
		opts = append(opts, suggest.WithAutoText(suggest.AutoTextMap(c.AutoText)))
	}
	return opts
}

// LoggerConfig converts the logging section into a logger configuration.
func (c *Config) LoggerConfig() *logging.Config {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		format = logging.FormatText
	}
	return &logging.Config{
		Level:        level,
		Format:       format,
		Output:       c.Logging.Output,
		FilePath:     c.Logging.FilePath,
		MaxSize:      int64(c.Logging.MaxSizeMB),
		MaxBackups:   c.Logging.MaxBackups,
		Compress:     c.Logging.Compress,
		LogTypedText: c.Logging.LogTypedText,
		Component:    "keyintent",
	}
}

// decodeTOML is shared by the loader and tests.
func decodeTOML(data []byte, cfg *Config) error {
	_, err := toml.Decode(string(data), cfg)
	return err
}
