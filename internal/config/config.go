// Package config loads and validates the critpath TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/export"
	"github.com/dhenderson/criticalpy/internal/graph"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Schedule Schedule `toml:"schedule"`
	Diagram  Diagram  `toml:"diagram"`
	Store    Store    `toml:"store"`
	Infer    Infer    `toml:"infer"`
	Log      Log      `toml:"log"`
}

type Schedule struct {
	SinkPolicy   string `toml:"sink_policy"`   // "all-sinks" or "single-sink"
	DuplicateIDs string `toml:"duplicate_ids"` // "last-wins" or "reject"
}

type Diagram struct {
	HighlightColor  string `toml:"highlight_color"`
	BackgroundColor string `toml:"background_color"`
}

type Store struct {
	Path string `toml:"path"`
}

type Infer struct {
	Model      string   `toml:"model"`
	MaxTokens  int      `toml:"max_tokens"`
	MaxRetries int      `toml:"max_retries"`
	Timeout    Duration `toml:"timeout"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads path, applies defaults and validates. A missing file is not an
// error when allowMissing is set; defaults are returned instead.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Schedule.SinkPolicy == "" {
		cfg.Schedule.SinkPolicy = cpm.AllSinks.String()
	}
	if cfg.Schedule.DuplicateIDs == "" {
		cfg.Schedule.DuplicateIDs = graph.LastWriteWins.String()
	}
	if cfg.Diagram.HighlightColor == "" {
		cfg.Diagram.HighlightColor = export.DefaultHighlightColor
	}
	if cfg.Diagram.BackgroundColor == "" {
		cfg.Diagram.BackgroundColor = export.DefaultBackgroundColor
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = ".critpath/history.db"
	}
	if cfg.Infer.MaxTokens == 0 {
		cfg.Infer.MaxTokens = 4096
	}
	if cfg.Infer.MaxRetries == 0 {
		cfg.Infer.MaxRetries = 3
	}
	if cfg.Infer.Timeout.Duration == 0 {
		cfg.Infer.Timeout.Duration = 2 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$|^[a-z]+$`)

func validate(cfg *Config) error {
	if _, ok := cpm.ParseSinkPolicy(cfg.Schedule.SinkPolicy); !ok {
		return fmt.Errorf("schedule.sink_policy: unknown policy %q (use all-sinks or single-sink)", cfg.Schedule.SinkPolicy)
	}
	if _, ok := graph.ParseDuplicatePolicy(cfg.Schedule.DuplicateIDs); !ok {
		return fmt.Errorf("schedule.duplicate_ids: unknown policy %q (use last-wins or reject)", cfg.Schedule.DuplicateIDs)
	}
	for name, c := range map[string]string{
		"diagram.highlight_color":  cfg.Diagram.HighlightColor,
		"diagram.background_color": cfg.Diagram.BackgroundColor,
	} {
		if !colorRe.MatchString(c) {
			return fmt.Errorf("%s: %q is not a #RRGGBB or named colour", name, c)
		}
	}
	if cfg.Infer.MaxTokens < 0 || cfg.Infer.MaxRetries < 0 {
		return fmt.Errorf("infer: max_tokens and max_retries must not be negative")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	return nil
}

// ProjectConfig translates the schedule section into cpm settings.
func (c *Config) ProjectConfig() cpm.Config {
	sinks, _ := cpm.ParseSinkPolicy(c.Schedule.SinkPolicy)
	dups, _ := graph.ParseDuplicatePolicy(c.Schedule.DuplicateIDs)
	return cpm.Config{
		Graph: graph.Config{Duplicates: dups},
		Sinks: sinks,
	}
}

// DOTOptions translates the diagram section into export settings.
func (c *Config) DOTOptions() export.DOTOptions {
	return export.DOTOptions{
		HighlightColor:  c.Diagram.HighlightColor,
		BackgroundColor: c.Diagram.BackgroundColor,
	}
}
