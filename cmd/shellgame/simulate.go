package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/scorestore"
	"github.com/lox/shellgame/internal/simulator"
)

// SimulateCmd plays headless games and prints win rates.
type SimulateCmd struct {
	Games     int           `short:"n" default:"100" help:"Number of games to play"`
	Rounds    int           `short:"r" default:"10" help:"Rounds per game"`
	Workers   int           `short:"w" default:"8" help:"Concurrent games"`
	Strategy  string        `short:"s" enum:"tracker,random,first" default:"random" help:"Guessing strategy"`
	Variant   string        `short:"V" enum:",progressive,classic" default:"" help:"Game variant (overrides config)"`
	Seed      *int64        `help:"Base seed; game i uses seed+i (optional)"`
	TimeScale float64       `default:"0.001" help:"Multiplier applied to every delay"`
	Timeout   time.Duration `default:"1m" help:"Per-game timeout"`
	Persist   bool          `help:"Record best scores in the configured store"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := applyVariant(cfg, c.Variant); err != nil {
		return err
	}
	cfg.TimeScale = c.TimeScale
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Level())

	strategy, err := simulator.ParseStrategy(c.Strategy)
	if err != nil {
		return err
	}

	var store scorestore.Store = scorestore.NewMemory()
	if c.Persist {
		if store, err = cfg.OpenStore(logger); err != nil {
			return err
		}
	}
	defer func() { _ = store.Close() }()

	seed := randutil.Seed(cfg.Seed)
	if c.Seed != nil {
		seed = *c.Seed
	}

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	// Engines log every round; keep them quiet unless asked.
	engineLogger := logger.WithPrefix("sim")
	if g.LogLevel == "" {
		engineLogger.SetLevel(max(cfg.Level(), log.WarnLevel))
	}

	sim := simulator.New(simulator.Config{
		Games:         c.Games,
		Rounds:        c.Rounds,
		Workers:       c.Workers,
		Variant:       cfg.Variant,
		Strategy:      strategy,
		Seed:          seed,
		TimeScale:     cfg.TimeScale,
		DistinctSwaps: cfg.DistinctSwaps,
		Timeout:       c.Timeout,
		Store:         store,
		Logger:        engineLogger,
	})

	logger.Info("Running simulation",
		"games", c.Games,
		"rounds", c.Rounds,
		"strategy", strategy.Name(),
		"variant", cfg.Variant,
		"seed", seed)

	result, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(result.Summary())
	return nil
}
