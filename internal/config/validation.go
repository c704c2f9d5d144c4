package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"keyintent/internal/suggest"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	if e.HasErrors() {
		return ErrInvalidConfig
	}
	return nil
}

// ValidateConfig validates the configuration and returns a ValidationErrors
// when any issue other than a warning is found.
func ValidateConfig(c *Config) error {
	errs := CheckConfig(c)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// CheckConfig returns every validation issue, warnings included.
func CheckConfig(c *Config) ValidationErrors {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateKeyboard(&c.Keyboard)...)
	errs = append(errs, validateSuggest(&c.Suggest)...)
	errs = append(errs, validateDictionary(&c.Dictionary)...)
	errs = append(errs, validateAutoText(c.AutoText)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	return errs
}

func validateKeyboard(k *KeyboardConfig) ValidationErrors {
	var errs ValidationErrors

	switch k.Layout {
	case "qwerty", "phone":
	default:
		errs = append(errs, ValidationError{
			Field:   "keyboard.layout",
			Message: fmt.Sprintf("unknown layout: %s (valid: qwerty, phone)", k.Layout),
		})
	}

	if k.Width < 100 || k.Height < 50 {
		errs = append(errs, ValidationError{
			Field:   "keyboard.width",
			Message: fmt.Sprintf("keyboard too small: %dx%d (minimum 100x50)", k.Width, k.Height),
		})
	}

	if k.HysteresisPx < 1 {
		errs = append(errs, *RangeError("keyboard.hysteresis_px", 1, "key size"))
	}

	durations := []struct {
		field    string
		value    int
		min, max int
	}{
		{"keyboard.multitap_interval_ms", k.MultiTapIntervalMs, 100, 5000},
		{"keyboard.key_debounce_ms", k.KeyDebounceMs, 0, 1000},
		{"keyboard.repeat_start_delay_ms", k.RepeatStartDelayMs, 50, 5000},
		{"keyboard.repeat_interval_ms", k.RepeatIntervalMs, 10, 1000},
		{"keyboard.long_press_timeout_ms", k.LongPressTimeoutMs, 100, 5000},
	}
	for _, d := range durations {
		if d.value < d.min || d.value > d.max {
			errs = append(errs, *RangeError(d.field, d.min, d.max))
		}
	}

	return errs
}

func validateSuggest(s *SuggestConfig) ValidationErrors {
	var errs ValidationErrors

	if s.MaxSuggestions < 1 || s.MaxSuggestions > suggest.MaxSuggestionsLimit {
		errs = append(errs, *RangeError("suggest.max_suggestions", 1, suggest.MaxSuggestionsLimit))
	}

	if _, err := suggest.ParseCorrectionMode(s.CorrectionMode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "suggest.correction_mode",
			Message: fmt.Sprintf("invalid correction mode: %s (valid: none, basic, full)", s.CorrectionMode),
		})
	}

	if s.QuickFixes != nil {
		errs = append(errs, ValidationError{
			Field:   "suggest.quick_fixes",
			Message: "deprecated, use correction_mode",
		})
	}

	return errs
}

func validateDictionary(d *DictionaryConfig) ValidationErrors {
	var errs ValidationErrors

	if d.WordList != "" {
		if _, err := os.Stat(expandPath(d.WordList)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "dictionary.word_list",
				Message: fmt.Sprintf("word list not readable: %v", err),
			})
		}
	}

	if d.Learn && d.Locale == "" {
		errs = append(errs, *RequiredFieldError("dictionary.locale"))
	}

	return errs
}

func validateAutoText(m map[string]string) ValidationErrors {
	var errs ValidationErrors

	for word, replacement := range m {
		if word == "" || replacement == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("autotext.%s", word),
				Message: "word and replacement must be non-empty",
			})
			continue
		}
		if word != strings.ToLower(word) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("autotext.%s", word),
				Message: "auto-text keys are matched against the lower-case word",
			})
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file' or 'both'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if !m.Enabled {
		return errs
	}

	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.ListenAddr, err),
		})
	}

	return errs
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	warningFields := []string{
		"dictionary.word_list", // may be installed later
		"suggest.quick_fixes",
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// ErrInvalidConfig is matched by every ValidationErrors with errors.
var ErrInvalidConfig = errors.New("invalid configuration")
