package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// reloadDebounce coalesces the bursts of events editors produce on save.
const reloadDebounce = 100 * time.Millisecond

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Load reads, migrates and validates the configuration file.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := l.read()
	if err != nil {
		return nil, err
	}
	l.config = cfg
	return cfg, nil
}

func (l *Loader) read() (*Config, error) {
	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}

	if cfg.Version < Version {
		if _, err := MigrateConfig(cfg, l.path); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch starts watching the configuration file for changes.
// When changes are detected, the configuration is reloaded and
// registered callbacks are invoked.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.watcher = watcher

	// Editors replace the file on save, so watch the directory.
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-l.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.sendErr(err)
		}
	}
}

func (l *Loader) sendErr(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// reload swaps in the new configuration only if it is valid; otherwise the
// previous configuration stays active and the error is reported on Errors.
func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}
	newCfg, err := l.read()
	if err != nil {
		l.sendErr(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	l.config = newCfg
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(newCfg)
	}
}

// OnChange registers a callback to be invoked when the configuration changes.
// Callbacks run on the watcher goroutine.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".toml":
		if err := decodeTOML(data, cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		detected, err := autoDetectAndParse(data)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		return detected, nil
	}

	return cfg, nil
}

// autoDetectAndParse attempts to parse the config in multiple formats.
// Each attempt decodes into a fresh default config so a failed attempt
// leaves no partial values behind.
func autoDetectAndParse(data []byte) (*Config, error) {
	attempts := []func([]byte, *Config) error{
		decodeTOML,
		func(b []byte, c *Config) error { return json.Unmarshal(b, c) },
		func(b []byte, c *Config) error { return yaml.Unmarshal(b, c) },
	}
	for _, decode := range attempts {
		candidate := DefaultConfig()
		if err := decode(data, candidate); err == nil {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// LoadFromEnv creates a configuration from defaults and environment variables.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	return cfg
}

// LoadOrCreate loads the configuration from the specified path,
// creating a default configuration file if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Merge merges two configurations, with src overriding dst for non-zero values.
// Booleans cannot be told apart from "not set" and are never merged.
func Merge(dst, src *Config) *Config {
	result := dst.Clone()

	if src.Version > 0 {
		result.Version = src.Version
	}

	// Keyboard
	if src.Keyboard.Layout != "" {
		result.Keyboard.Layout = src.Keyboard.Layout
	}
	mergeInt(&result.Keyboard.Width, src.Keyboard.Width)
	mergeInt(&result.Keyboard.Height, src.Keyboard.Height)
	mergeInt(&result.Keyboard.HysteresisPx, src.Keyboard.HysteresisPx)
	mergeInt(&result.Keyboard.MultiTapIntervalMs, src.Keyboard.MultiTapIntervalMs)
	mergeInt(&result.Keyboard.KeyDebounceMs, src.Keyboard.KeyDebounceMs)
	mergeInt(&result.Keyboard.RepeatStartDelayMs, src.Keyboard.RepeatStartDelayMs)
	mergeInt(&result.Keyboard.RepeatIntervalMs, src.Keyboard.RepeatIntervalMs)
	mergeInt(&result.Keyboard.LongPressTimeoutMs, src.Keyboard.LongPressTimeoutMs)

	// Suggest
	mergeInt(&result.Suggest.MaxSuggestions, src.Suggest.MaxSuggestions)
	if src.Suggest.CorrectionMode != "" {
		result.Suggest.CorrectionMode = src.Suggest.CorrectionMode
	}

	// Dictionary
	if src.Dictionary.WordList != "" {
		result.Dictionary.WordList = src.Dictionary.WordList
	}
	if src.Dictionary.StorePath != "" {
		result.Dictionary.StorePath = src.Dictionary.StorePath
	}
	if src.Dictionary.Locale != "" {
		result.Dictionary.Locale = src.Dictionary.Locale
	}

	// AutoText entries are added, never removed.
	for k, v := range src.AutoText {
		if result.AutoText == nil {
			result.AutoText = make(map[string]string)
		}
		result.AutoText[k] = v
	}

	// Logging
	if src.Logging.Level != "" {
		result.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		result.Logging.Format = src.Logging.Format
	}
	if src.Logging.Output != "" {
		result.Logging.Output = src.Logging.Output
	}
	if src.Logging.FilePath != "" {
		result.Logging.FilePath = src.Logging.FilePath
	}
	mergeInt(&result.Logging.MaxSizeMB, src.Logging.MaxSizeMB)
	mergeInt(&result.Logging.MaxBackups, src.Logging.MaxBackups)

	// Metrics
	if src.Metrics.ListenAddr != "" {
		result.Metrics.ListenAddr = src.Metrics.ListenAddr
	}

	return result
}

func mergeInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
