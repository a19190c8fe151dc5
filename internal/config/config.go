// Package config loads fusor.toml, the settings shared by the command line
// tools and the language server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"fusor/internal/engine"
	"fusor/internal/table"
)

// FileName is the configuration file looked up by Find.
const FileName = "fusor.toml"

type Config struct {
	Compile Compile `toml:"compile"`
	Parse   Parse   `toml:"parse"`
	Cache   Cache   `toml:"cache"`
	Log     Log     `toml:"log"`
	Metrics Metrics `toml:"metrics"`
}

type Compile struct {
	Automaton string `toml:"automaton" validate:"oneof=pager lalr canonical lr1"`
	MaxFanout int    `toml:"max_fanout" validate:"gte=1,lte=64"`
	Strict    bool   `toml:"strict"`
}

type Parse struct {
	MaxStacks int  `toml:"max_stacks" validate:"gte=1,lte=1024"`
	Reuse     bool `toml:"reuse"`
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir" validate:"required_if=Enabled true"`
}

type Log struct {
	Verbosity int    `toml:"verbosity" validate:"gte=-4,lte=5"`
	File      string `toml:"file"`
}

type Metrics struct {
	Addr string `toml:"addr" validate:"omitempty,hostname_port"`
}

var validate = validator.New()

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Compile: Compile{Automaton: "pager", MaxFanout: table.DefaultMaxFanout},
		Parse:   Parse{MaxStacks: engine.DefaultMaxStacks, Reuse: true},
		Cache:   Cache{Dir: defaultCacheDir()},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".fusor", "cache")
	}
	return filepath.Join(dir, "fusor")
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(string(data))
}

// Decode reads TOML text on top of the defaults and validates the result.
func Decode(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.Compile.Automaton = strings.ToLower(strings.TrimSpace(cfg.Compile.Automaton))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Find walks up from dir looking for fusor.toml and returns its path, or an
// empty string when there is none.
func Find(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadOrDefault loads the nearest fusor.toml above dir, falling back to the
// defaults when none exists.
func LoadOrDefault(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// TableOptions converts the compile section.
func (c *Config) TableOptions() (table.Options, error) {
	mode, err := table.ParseMode(c.Compile.Automaton)
	if err != nil {
		return table.Options{}, err
	}
	return table.Options{Mode: mode, MaxFanout: c.Compile.MaxFanout, Strict: c.Compile.Strict}, nil
}

// ParserOptions converts the parse section.
func (c *Config) ParserOptions() []engine.Option {
	return []engine.Option{
		engine.WithMaxStacks(c.Parse.MaxStacks),
		engine.WithReuse(c.Parse.Reuse),
	}
}
