package game

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/scorestore"
	"github.com/lox/shellgame/internal/shuffle"
)

// DefaultPlacingDelay is how long the token stays visible before shuffling.
const DefaultPlacingDelay = 1500 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to schedule timed transitions.
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRand sets the randomness source for token placement and swaps.
func WithRand(src randutil.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.rng = src
		}
	}
}

// WithStore sets where the best score is persisted.
func WithStore(store scorestore.Store) Option {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithVariant selects the game variant.
func WithVariant(v Variant) Option {
	return func(e *Engine) { e.variant = v }
}

// WithPlacingDelay sets how long Placing lasts before shuffling starts.
func WithPlacingDelay(d time.Duration) Option {
	return func(e *Engine) { e.placingDelay = max(0, d) }
}

// WithTimeScale multiplies every delay. Zero runs the choreography as fast
// as the clock allows; negative values are ignored.
func WithTimeScale(f float64) Option {
	return func(e *Engine) {
		if f >= 0 {
			e.timeScale = f
		}
	}
}

// WithDistinctSwaps makes every shuffle step swap two different positions.
func WithDistinctSwaps() Option {
	return func(e *Engine) {
		e.shuffleOpts = append(e.shuffleOpts, shuffle.RequireDistinct())
	}
}

// WithGameID overrides the generated session ID.
func WithGameID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}
