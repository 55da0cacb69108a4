package simulator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/scorestore"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.WarnLevel})
}

func TestNewAppliesDefaults(t *testing.T) {
	sim := New(Config{})
	assert.Equal(t, 1, sim.config.Games)
	assert.Equal(t, 1, sim.config.Rounds)
	assert.Equal(t, 4, sim.config.Workers)
	assert.Equal(t, "random", sim.config.Strategy.Name())
	assert.NotNil(t, sim.config.Clock)
	assert.NotNil(t, sim.config.Store)
}

func TestTrackerAlwaysWins(t *testing.T) {
	store := scorestore.NewMemory()
	sim := New(Config{
		Games:    3,
		Rounds:   6,
		Strategy: Tracker{},
		Seed:     7,
		Store:    store,
		Logger:   quietLogger(),
	})
	result, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 18, result.Total.Rounds)
	assert.Equal(t, 18, result.Total.Wins)
	assert.Equal(t, 6, result.MaxLevel)
	assert.Equal(t, 7, result.BestLevel, "six wins reach level seven")
	assert.Equal(t, 7, store.Load(scorestore.ProgressiveBestLevel))
	for n := 3; n <= 6; n++ {
		assert.Equal(t, 1.0, result.ByContainers[n].WinRate(), "containers=%d", n)
	}
}

func TestGuessingIsFair(t *testing.T) {
	for _, strategy := range []Strategy{Random{}, First{}} {
		t.Run(strategy.Name(), func(t *testing.T) {
			sim := New(Config{
				Games:     8,
				Rounds:    300,
				Variant:   game.Classic,
				Strategy:  strategy,
				Seed:      2024,
				TimeScale: 0,
				Logger:    quietLogger(),
			})
			result, err := sim.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 2400, result.Total.Rounds)
			assert.InDelta(t, 1.0/3, result.ByContainers[3].WinRate(), 0.04)
			assert.Len(t, result.ByContainers, 1, "classic only ever uses three containers")
		})
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := New(Config{
		Games:     2,
		Rounds:    5,
		TimeScale: 1,
		Timeout:   time.Second,
		Logger:    quietLogger(),
	})
	_, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummary(t *testing.T) {
	r := &Result{
		Strategy:     "random",
		Games:        1,
		Total:        Tally{Rounds: 4, Wins: 1},
		ByContainers: map[int]Tally{3: {Rounds: 3, Wins: 1}, 4: {Rounds: 1}},
	}
	out := r.Summary()
	assert.Contains(t, out, "strategy=random")
	assert.Contains(t, out, "containers=3 rounds=3 wins=1")
	assert.Contains(t, out, "containers=4 rounds=1 wins=0")
	assert.Zero(t, Tally{}.WinRate())
}

func TestParseStrategy(t *testing.T) {
	for _, name := range Strategies {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := ParseStrategy("psychic")
	assert.Error(t, err)
}
