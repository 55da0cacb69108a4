package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/lox/shellgame/internal/config"
	"github.com/lox/shellgame/internal/game"
)

// loadConfig reads the configuration file and applies global overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", g.Config, err)
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	return cfg, nil
}

// applyVariant overrides the configured variant when name is set.
func applyVariant(cfg *config.Config, name string) error {
	if name == "" {
		return nil
	}
	v, err := game.ParseVariant(name)
	if err != nil {
		return err
	}
	cfg.Variant = v
	return nil
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
}

// setupSignalHandler creates a context that is cancelled on interrupt signals
func setupSignalHandler(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
