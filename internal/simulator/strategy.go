package simulator

import (
	"fmt"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/randutil"
)

// Strategy picks a position once the engine is selecting.
type Strategy interface {
	Name() string
	Guess(s game.Snapshot, rng randutil.Source) int
}

// Tracker follows the token through every swap and always finds it.
type Tracker struct{}

func (Tracker) Name() string { return "tracker" }

func (Tracker) Guess(s game.Snapshot, _ randutil.Source) int { return s.TokenPosition() }

// Random guesses uniformly.
type Random struct{}

func (Random) Name() string { return "random" }

func (Random) Guess(s game.Snapshot, rng randutil.Source) int {
	return randutil.Pick(rng, s.ContainerCount)
}

// First always picks the leftmost container. Against a fair shuffle it
// should win as often as Random.
type First struct{}

func (First) Name() string { return "first" }

func (First) Guess(game.Snapshot, randutil.Source) int { return 0 }

// Strategies lists the names accepted by ParseStrategy.
var Strategies = []string{"tracker", "random", "first"}

// ParseStrategy returns the strategy registered under name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "tracker":
		return Tracker{}, nil
	case "random", "":
		return Random{}, nil
	case "first":
		return First{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want one of %v)", name, Strategies)
	}
}
