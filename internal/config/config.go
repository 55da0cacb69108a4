// Package config loads the shellgame HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/scorestore"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "shellgame.hcl"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// fileConfig mirrors the HCL document. All blocks are optional.
type fileConfig struct {
	Game   *GameSettings   `hcl:"game,block"`
	Store  *StoreSettings  `hcl:"store,block"`
	Server *ServerSettings `hcl:"server,block"`
}

// GameSettings configures the engine.
type GameSettings struct {
	Variant       string   `hcl:"variant,optional"`
	PlacingDelay  string   `hcl:"placing_delay,optional"`
	TimeScale     *float64 `hcl:"time_scale,optional"`
	DistinctSwaps bool     `hcl:"distinct_swaps,optional"`
	Seed          int64    `hcl:"seed,optional"`
}

// StoreSettings selects the score store backend.
type StoreSettings struct {
	Backend string `hcl:"backend,optional"`
	Path    string `hcl:"path,optional"`
}

// ServerSettings configures the websocket server and logging.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// Config is the resolved configuration with defaults applied.
type Config struct {
	Variant       game.Variant
	PlacingDelay  time.Duration
	TimeScale     float64
	DistinctSwaps bool
	Seed          int64

	StoreBackend string
	StorePath    string

	Address  string
	Port     int
	LogLevel string
	LogFile  string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Variant:      game.Progressive,
		PlacingDelay: game.DefaultPlacingDelay,
		TimeScale:    1,
		StoreBackend: "file",
		StorePath:    "shellgame-scores.json",
		Address:      "localhost",
		Port:         8080,
		LogLevel:     "info",
		LogFile:      "shellgame.log",
	}
}

// Load reads filename. A missing file yields Default().
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	return fc.resolve()
}

func (fc fileConfig) resolve() (*Config, error) {
	cfg := Default()

	if g := fc.Game; g != nil {
		if g.Variant != "" {
			v, err := game.ParseVariant(g.Variant)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			cfg.Variant = v
		}
		if g.PlacingDelay != "" {
			d, err := time.ParseDuration(g.PlacingDelay)
			if err != nil {
				return nil, fmt.Errorf("%w: placing_delay: %v", ErrInvalid, err)
			}
			cfg.PlacingDelay = d
		}
		if g.TimeScale != nil {
			cfg.TimeScale = *g.TimeScale
		}
		cfg.DistinctSwaps = g.DistinctSwaps
		cfg.Seed = g.Seed
	}

	if s := fc.Store; s != nil {
		if s.Backend != "" {
			cfg.StoreBackend = s.Backend
		}
		if s.Path != "" {
			cfg.StorePath = s.Path
		}
	}

	if s := fc.Server; s != nil {
		if s.Address != "" {
			cfg.Address = s.Address
		}
		if s.Port != 0 {
			cfg.Port = s.Port
		}
		if s.LogLevel != "" {
			cfg.LogLevel = s.LogLevel
		}
		if s.LogFile != "" {
			cfg.LogFile = s.LogFile
		}
	}

	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.PlacingDelay < 0 {
		return fmt.Errorf("%w: placing_delay must not be negative", ErrInvalid)
	}
	if c.TimeScale < 0 {
		return fmt.Errorf("%w: time_scale must not be negative", ErrInvalid)
	}
	if !slices.Contains(scorestore.Backends, c.StoreBackend) {
		return fmt.Errorf("%w: store backend %q (want one of %v)", ErrInvalid, c.StoreBackend, scorestore.Backends)
	}
	if c.StoreBackend != "memory" && c.StorePath == "" {
		return fmt.Errorf("%w: store path is required for backend %q", ErrInvalid, c.StoreBackend)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalid, c.Port)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	return nil
}

// Addr is the host:port the server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// EngineOptions translates the game settings into engine options.
func (c *Config) EngineOptions() []game.Option {
	opts := []game.Option{
		game.WithVariant(c.Variant),
		game.WithPlacingDelay(c.PlacingDelay),
		game.WithTimeScale(c.TimeScale),
	}
	if c.DistinctSwaps {
		opts = append(opts, game.WithDistinctSwaps())
	}
	return opts
}

// OpenStore opens the configured score store.
func (c *Config) OpenStore(logger *log.Logger) (scorestore.Store, error) {
	return scorestore.Open(c.StoreBackend, c.StorePath, logger)
}
