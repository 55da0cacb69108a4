package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/server"
)

// ServeCmd serves one game per WebSocket connection.
type ServeCmd struct {
	Addr    string `short:"a" help:"Server address to bind to, host:port (overrides config)"`
	Variant string `short:"V" enum:",progressive,classic" default:"" help:"Game variant (overrides config)"`
	Seed    *int64 `help:"Deterministic RNG seed; connection n plays seed+n (optional)"`
}

func (c *ServeCmd) Run(g *Globals) error {
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
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Level())

	store, err := cfg.OpenStore(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close score store", "error", err)
		}
	}()

	addr := cfg.Addr()
	if c.Addr != "" {
		addr = c.Addr
	}

	var sessions atomic.Int64
	newEngine := func(opts ...game.Option) *game.Engine {
		n := sessions.Add(1)
		seed := randutil.Seed(0)
		if cfg.Seed != 0 {
			seed = cfg.Seed + n
		}
		base := append(cfg.EngineOptions(),
			game.WithStore(store),
			game.WithLogger(logger),
			game.WithRand(randutil.New(seed)),
		)
		return game.NewEngine(append(base, opts...)...)
	}

	logger.Info("Starting shellgame server",
		"address", addr,
		"variant", cfg.Variant,
		"store", cfg.StoreBackend,
		"timeScale", cfg.TimeScale)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	s := server.NewServer(addr, logger, newEngine)
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
