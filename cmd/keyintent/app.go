package main

import (
	"context"
	"fmt"
	"os"

	"keyintent/internal/config"
	"keyintent/internal/dictionary"
	"keyintent/internal/ime"
	"keyintent/internal/keyboard"
	"keyintent/internal/logging"
	"keyintent/internal/metrics"
	"keyintent/internal/store"
	"keyintent/internal/suggest"
	"keyintent/internal/timer"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *metrics.Metrics

	store  *store.Store
	main   *dictionary.Trie
	user   *dictionary.UserDictionary
	auto   *dictionary.AutoDictionary
	ranker *suggest.Ranker
}

// loadConfig reads the file named by -config, or the first config file
// found in the standard locations, or the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		cfg := config.LoadFromEnv()
		return cfg, cfg.Validate()
	}
	return config.NewLoader(path).Load()
}

// newApp opens the store and dictionaries described by cfg. persist
// selects whether learned words and sessions are stored.
func newApp(ctx context.Context, cfg *config.Config, persist bool) (*app, error) {
	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	logging.SetDefault(logger)

	a := &app{cfg: cfg, log: logger}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(nil)
	}

	if cfg.Dictionary.WordList != "" {
		a.main, err = dictionary.LoadWordList(cfg.Dictionary.WordList)
		if err != nil {
			return nil, err
		}
		logger.Info("word list loaded", "path", cfg.Dictionary.WordList, "words", a.main.Size())
	}

	var ws dictionary.WordStore
	if persist && cfg.Dictionary.StorePath != "" {
		a.store, err = store.Open(cfg.Dictionary.StorePath)
		if err != nil {
			return nil, err
		}
		ws = a.store
	}

	locale := cfg.Dictionary.Locale
	if a.user, err = dictionary.NewUserDictionary(ctx, ws, locale); err != nil {
		a.Close()
		return nil, err
	}
	if a.auto, err = dictionary.NewAutoDictionary(ctx, ws, locale, a.user); err != nil {
		a.Close()
		return nil, err
	}

	opts := append(cfg.RankerOptions(),
		suggest.WithExtraProviders(a.user),
		suggest.WithValidators(a.auto),
	)
	var mainProvider suggest.Provider
	if a.main != nil {
		mainProvider = a.main
	}
	a.ranker = suggest.NewRanker(mainProvider, opts...)
	return a, nil
}

// engine builds an engine over layout scheduling on sched.
func (a *app) engine(layout *keyboard.Layout, sched timer.Scheduler, display ime.Display) (*ime.Engine, error) {
	var auto *dictionary.AutoDictionary
	if a.cfg.Dictionary.Learn {
		auto = a.auto
	}
	var sessions ime.SessionStore
	if a.store != nil {
		sessions = a.store
	}
	return ime.NewEngine(ime.Options{
		Layout:              layout,
		Pointer:             a.cfg.PointerOptions(),
		ProximityCorrection: a.cfg.Keyboard.ProximityCorrection,
		Ranker:              a.ranker,
		Auto:                auto,
		Scheduler:           sched,
		Display:             display,
		Sessions:            sessions,
		Logger:              a.log,
		Metrics:             a.metrics,
		AutoCorrect:         a.cfg.Suggest.AutoCorrect,
		AutoCapitalize:      a.cfg.Suggest.AutoCapitalize,
		Locale:              a.cfg.Dictionary.Locale,
	})
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close store", "error", err)
		}
	}
	a.log.Close()
}

// buildLayout returns the named built-in layout.
func buildLayout(name string, width, height int) (*keyboard.Layout, error) {
	switch name {
	case "", "qwerty":
		return keyboard.QWERTY(width, height)
	case "phone":
		return keyboard.Phone(width, height)
	default:
		return nil, fmt.Errorf("unknown layout %q", name)
	}
}

func configLayout(cfg *config.Config) (*keyboard.Layout, error) {
	return buildLayout(cfg.Keyboard.Layout, cfg.Keyboard.Width, cfg.Keyboard.Height)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
