package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/scorestore"
)

// scriptedRand replays fixed picks and then defers to a seeded source.
type scriptedRand struct {
	mu       sync.Mutex
	picks    []int
	fallback randutil.Source
}

func script(picks ...int) *scriptedRand {
	return &scriptedRand{picks: picks, fallback: randutil.New(1)}
}

func (s *scriptedRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.picks) == 0 {
		return s.fallback.IntN(n)
	}
	v := s.picks[0]
	s.picks = s.picks[1:]
	return v % n
}

// recorder collects published snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) phases() []Phase {
	var out []Phase
	for _, s := range r.all() {
		out = append(out, s.Phase)
	}
	return out
}

type harness struct {
	t      *testing.T
	engine *Engine
	clock  *quartz.Mock
	rec    *recorder
	store  *scorestore.Memory
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: quartz.NewMock(t),
		rec:   &recorder{},
		store: scorestore.NewMemory(),
	}
	base := []Option{
		WithClock(h.clock),
		WithStore(h.store),
		WithRand(randutil.New(42)),
	}
	h.engine = NewEngine(append(base, opts...)...)
	h.engine.Subscribe(h.rec.record)
	t.Cleanup(h.engine.Close)
	return h
}

// advance moves the mock clock by exactly d and waits for fired callbacks.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.clock.Advance(d).MustWait(ctx)
}

// next fires the next pending timer and returns how far the clock moved.
func (h *harness) next() time.Duration {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
	return d
}

// untilSelecting fires timers until the engine accepts a selection.
func (h *harness) untilSelecting() Snapshot {
	h.t.Helper()
	for range 1000 {
		s := h.engine.Snapshot()
		if s.Phase == Selecting {
			return s
		}
		h.next()
	}
	h.t.Fatal("engine never reached selecting")
	return Snapshot{}
}

// win plays the current round to a correct guess.
func (h *harness) win() Snapshot {
	h.t.Helper()
	s := h.untilSelecting()
	require.True(h.t, h.engine.Select(s.TokenPosition()))
	return h.engine.Snapshot()
}

// lose plays the current round to a wrong guess.
func (h *harness) lose() Snapshot {
	h.t.Helper()
	s := h.untilSelecting()
	wrong := (s.TokenPosition() + 1) % s.ContainerCount
	require.True(h.t, h.engine.Select(wrong))
	return h.engine.Snapshot()
}

// reachLevel starts a run and wins until the engine is placing level.
func (h *harness) reachLevel(level int) {
	h.t.Helper()
	require.True(h.t, h.engine.Start())
	for h.engine.Snapshot().Level < level {
		h.win()
		require.True(h.t, h.engine.Advance())
	}
}

// failingStore loads from memory but refuses every save.
type failingStore struct {
	*scorestore.Memory
	attempts int
}

func (f *failingStore) Save(scorestore.Key, int) error {
	f.attempts++
	return errors.New("disk full")
}
