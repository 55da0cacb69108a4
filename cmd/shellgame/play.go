package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/tui"
)

// PlayCmd runs the game in the terminal.
type PlayCmd struct {
	Variant string `short:"V" enum:",progressive,classic" default:"" help:"Game variant (overrides config)"`
	Seed    *int64 `help:"Deterministic RNG seed (optional)"`
	LogFile string `help:"Debug log file (overrides config)"`
	NoColor bool   `help:"Disable colours"`
}

func (c *PlayCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := applyVariant(cfg, c.Variant); err != nil {
		return err
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}
	if c.LogFile != "" {
		cfg.LogFile = c.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the TUI, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := newLogger(logFile, cfg.Level())

	if c.NoColor {
		tui.DisableColor()
	}

	store, err := cfg.OpenStore(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close score store", "error", err)
		}
	}()

	seed := randutil.Seed(cfg.Seed)
	logger.Info("Starting game", "variant", cfg.Variant, "seed", seed, "store", cfg.StoreBackend)

	engine := game.NewEngine(append(cfg.EngineOptions(),
		game.WithStore(store),
		game.WithLogger(logger),
		game.WithRand(randutil.New(seed)),
	)...)
	defer engine.Close()

	model := tui.New(engine, logger)
	defer model.Close()

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}

	final := engine.Snapshot()
	logger.Info("Game over", "level", final.Level, "best", final.BestLevel, "wins", final.Score)
	return nil
}
