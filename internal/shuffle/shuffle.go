// Package shuffle generates the timed sequence of pairwise swaps that moves
// containers around during the shuffling phase.
//
// Swap positions are drawn without looking at which container holds the
// token, so every container is equally likely to move on any step.
package shuffle

import (
	"slices"
	"time"

	"github.com/lox/shellgame/internal/difficulty"
	"github.com/lox/shellgame/internal/randutil"
)

// Step is one applied swap.
type Step struct {
	// Index is 1-based; the last step has Index == Total.
	Index int
	Total int
	// I and J are the swapped positions. They are equal for a no-op swap.
	I, J  int
	Order []int
}

// NoOp reports whether the step left the order unchanged.
func (s Step) NoOp() bool { return s.I == s.J }

// Option configures a Sequencer.
type Option func(*Sequencer)

// RequireDistinct makes every step swap two different positions by
// redrawing the second position until it differs from the first.
func RequireDistinct() Option {
	return func(s *Sequencer) { s.distinct = true }
}

// Sequencer yields a finite number of swaps over its own copy of an order.
// It is single-use: once Done, build a new one for the next shuffle.
type Sequencer struct {
	order    []int
	total    int
	applied  int
	interval time.Duration
	src      randutil.Source
	distinct bool
}

// New creates a sequencer over a copy of order using the step count and
// pacing of params.
func New(order []int, params difficulty.Params, src randutil.Source, opts ...Option) *Sequencer {
	s := &Sequencer{
		order:    slices.Clone(order),
		total:    max(0, params.ShuffleSteps),
		interval: max(0, params.StepDuration),
		src:      src,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next applies the next swap and returns it. It returns false once all
// steps have been produced.
func (s *Sequencer) Next() (Step, bool) {
	if s.Done() {
		return Step{}, false
	}
	n := len(s.order)
	i := randutil.Pick(s.src, n)
	j := randutil.Pick(s.src, n)
	if s.distinct && n > 1 {
		for j == i {
			j = randutil.Pick(s.src, n)
		}
	}
	s.order[i], s.order[j] = s.order[j], s.order[i]
	s.applied++
	return Step{
		Index: s.applied,
		Total: s.total,
		I:     i,
		J:     j,
		Order: slices.Clone(s.order),
	}, true
}

// Interval is the pause between consecutive steps.
func (s *Sequencer) Interval() time.Duration { return s.interval }

// Done reports whether every step has been produced.
func (s *Sequencer) Done() bool { return s.applied >= s.total }

// Remaining is the number of steps not yet produced.
func (s *Sequencer) Remaining() int { return s.total - s.applied }

// IsPermutation reports whether order holds each of 0..len(order)-1 exactly
// once.
func IsPermutation(order []int) bool {
	seen := make([]bool, len(order))
	for _, id := range order {
		if id < 0 || id >= len(order) || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// Identity returns the order 0..n-1.
func Identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
