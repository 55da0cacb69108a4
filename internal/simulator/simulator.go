// Package simulator plays many headless games with a guessing strategy and
// tallies win rates per container count.
package simulator

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/scorestore"
)

// Config holds configuration for running simulations
type Config struct {
	Games         int
	Rounds        int // rounds per game
	Workers       int
	Variant       game.Variant
	Strategy      Strategy
	Seed          int64
	TimeScale     float64
	DistinctSwaps bool
	Timeout       time.Duration // per game
	Clock         quartz.Clock
	Store         scorestore.Store
	Logger        *log.Logger
}

// Tally counts rounds and wins for one container count.
type Tally struct {
	Rounds int
	Wins   int
}

// WinRate is Wins/Rounds, or 0 with no rounds.
func (t Tally) WinRate() float64 {
	if t.Rounds == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.Rounds)
}

// Result aggregates every simulated game.
type Result struct {
	Strategy     string
	Games        int
	Total        Tally
	ByContainers map[int]Tally
	MaxLevel     int
	BestLevel    int
	Elapsed      time.Duration
}

// Summary renders the result as a small table.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "strategy=%s games=%d rounds=%d wins=%d rate=%.3f max_level=%d best=%d elapsed=%s\n",
		r.Strategy, r.Games, r.Total.Rounds, r.Total.Wins, r.Total.WinRate(), r.MaxLevel, r.BestLevel, r.Elapsed.Round(time.Millisecond))

	counts := make([]int, 0, len(r.ByContainers))
	for n := range r.ByContainers {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	for _, n := range counts {
		t := r.ByContainers[n]
		fmt.Fprintf(&b, "  containers=%d rounds=%d wins=%d rate=%.3f expected=%.3f\n",
			n, t.Rounds, t.Wins, t.WinRate(), 1/float64(n))
	}
	return b.String()
}

// Simulator runs shell game simulations
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Games <= 0 {
		config.Games = 1
	}
	if config.Rounds <= 0 {
		config.Rounds = 1
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Strategy == nil {
		config.Strategy = Random{}
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if config.Clock == nil {
		config.Clock = quartz.NewReal()
	}
	if config.Store == nil {
		config.Store = scorestore.NewMemory()
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}
	return &Simulator{config: config}
}

// Run plays every game and returns the aggregate.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{
		Strategy:     s.config.Strategy.Name(),
		Games:        s.config.Games,
		ByContainers: make(map[int]Tally),
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i := range s.config.Games {
		seed := s.config.Seed + int64(i)
		g.Go(func() error {
			r, err := s.playGame(ctx, seed)
			if err != nil {
				return fmt.Errorf("game %d (seed %d): %w", i, seed, err)
			}
			mu.Lock()
			defer mu.Unlock()
			result.merge(r)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	s.config.Logger.Info("Simulation complete",
		"strategy", result.Strategy,
		"games", result.Games,
		"rounds", result.Total.Rounds,
		"winRate", fmt.Sprintf("%.3f", result.Total.WinRate()))
	return result, nil
}

func (r *Result) merge(other *Result) {
	r.Total.Rounds += other.Total.Rounds
	r.Total.Wins += other.Total.Wins
	for n, t := range other.ByContainers {
		agg := r.ByContainers[n]
		agg.Rounds += t.Rounds
		agg.Wins += t.Wins
		r.ByContainers[n] = agg
	}
	r.MaxLevel = max(r.MaxLevel, other.MaxLevel)
	r.BestLevel = max(r.BestLevel, other.BestLevel)
}

// playGame drives one engine through the configured number of rounds.
func (s *Simulator) playGame(ctx context.Context, seed int64) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	opts := []game.Option{
		game.WithClock(s.config.Clock),
		game.WithRand(randutil.New(seed)),
		game.WithStore(s.config.Store),
		game.WithVariant(s.config.Variant),
		game.WithTimeScale(s.config.TimeScale),
		game.WithLogger(s.config.Logger),
	}
	if s.config.DistinctSwaps {
		opts = append(opts, game.WithDistinctSwaps())
	}
	engine := game.NewEngine(opts...)
	defer engine.Close()

	// Exactly one Selecting snapshot is published per round.
	ready := make(chan game.Snapshot, 1)
	unsubscribe := engine.Subscribe(func(snap game.Snapshot) {
		if snap.Phase != game.Selecting {
			return
		}
		select {
		case ready <- snap:
		default:
		}
	})
	defer unsubscribe()

	guessRng := randutil.New(seed ^ 0x5f5f)
	r := &Result{ByContainers: make(map[int]Tally)}

	engine.Start()
	for round := range s.config.Rounds {
		var snap game.Snapshot
		select {
		case snap = <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("round %d: %w", round, ctx.Err())
		}

		r.MaxLevel = max(r.MaxLevel, snap.Level)
		engine.Select(s.config.Strategy.Guess(snap, guessRng))
		revealed := engine.Snapshot()

		t := r.ByContainers[snap.ContainerCount]
		t.Rounds++
		r.Total.Rounds++
		if revealed.Won() {
			t.Wins++
			r.Total.Wins++
		}
		r.ByContainers[snap.ContainerCount] = t
		r.BestLevel = revealed.BestLevel

		if round == s.config.Rounds-1 {
			break
		}
		if revealed.Won() {
			engine.Advance()
		} else {
			engine.Restart()
		}
	}
	return r, nil
}
