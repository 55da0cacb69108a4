package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/lox/shellgame/internal/game"
)

// BestCmd prints or clears the persisted record for a variant.
type BestCmd struct {
	Variant string `short:"V" enum:"progressive,classic" default:"progressive" help:"Game variant"`
	Reset   bool   `help:"Reset the record to zero"`
}

func (c *BestCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	variant, err := game.ParseVariant(c.Variant)
	if err != nil {
		return err
	}

	store, err := cfg.OpenStore(log.New(io.Discard))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	key := variant.Key()
	if c.Reset {
		if err := store.Save(key, 0); err != nil {
			return fmt.Errorf("resetting %s: %w", key, err)
		}
		fmt.Printf("%s best reset\n", variant)
		return nil
	}

	fmt.Printf("%s best: %d\n", variant, store.Load(key))
	return nil
}
