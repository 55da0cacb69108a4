package game

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/shellgame/internal/difficulty"
	"github.com/lox/shellgame/internal/gameid"
	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/scorestore"
	"github.com/lox/shellgame/internal/shuffle"
)

// Subscriber receives every snapshot in mutation order. It is called with
// the engine lock held, so it must return quickly and must not call back
// into the engine.
type Subscriber func(Snapshot)

type subscription struct {
	id int
	fn Subscriber
}

// Engine runs one player's shell game. All methods are safe for concurrent
// use; mutations are serialised by a single lock, including the ones made
// by timer callbacks.
type Engine struct {
	mu sync.Mutex

	id           string
	clock        quartz.Clock
	rng          randutil.Source
	store        scorestore.Store
	logger       *log.Logger
	variant      Variant
	placingDelay time.Duration
	timeScale    float64
	shuffleOpts  []shuffle.Option

	phase    Phase
	level    int
	params   difficulty.Params
	order    []int
	token    int
	selected int
	outcome  *Outcome
	score    int
	best     int
	step     int
	seq      uint64
	shuffler *shuffle.Sequencer

	// gen identifies the live timer chain; callbacks from older chains are
	// discarded when they fire.
	gen    uint64
	timer  *quartz.Timer
	closed bool

	subs   []subscription
	nextID int
}

// NewEngine creates an idle engine and loads the persisted best score.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:        quartz.NewReal(),
		store:        scorestore.NewMemory(),
		logger:       log.New(io.Discard),
		placingDelay: DefaultPlacingDelay,
		timeScale:    1,
		selected:     -1,
		level:        1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = randutil.New(randutil.Seed(0))
	}
	if e.id == "" {
		e.id = gameid.Generate()
	}
	e.logger = e.logger.WithPrefix("engine").With("game", e.id)

	e.params = e.paramsFor(e.level)
	e.order = shuffle.Identity(e.params.Containers)
	e.best = e.store.Load(e.variant.Key())

	e.logger.Debug("Engine created", "variant", e.variant, "best", e.best)
	return e
}

// ID returns the session ID.
func (e *Engine) ID() string { return e.id }

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn for every future snapshot and returns a function
// that removes it.
func (e *Engine) Subscribe(fn Subscriber) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subs = slices.DeleteFunc(e.subs, func(s subscription) bool { return s.id == id })
	}
}

// Start begins a new run at level 1. Valid in Idle and Revealed.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || (e.phase != Idle && e.phase != Revealed) {
		e.ignoredLocked("start")
		return false
	}
	e.beginLevelLocked(1)
	return true
}

// Select picks a position in the current container order. Valid only in
// Selecting with 0 <= position < container count.
func (e *Engine) Select(position int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.phase != Selecting || position < 0 || position >= len(e.order) {
		e.ignoredLocked("select", "position", position)
		return false
	}

	outcome := Evaluate(e.order, e.token, position)
	outcome.Level = e.level
	e.selected = position
	e.outcome = &outcome
	e.phase = Revealed

	if outcome.Correct {
		e.score++
		e.recordBestLocked()
	} else if e.variant.Leveling() {
		e.level = 1
	}

	e.logger.Info("Round revealed",
		"correct", outcome.Correct,
		"position", position,
		"token", e.token,
		"level", e.level,
		"best", e.best,
		"score", e.score)
	e.publishLocked()
	return true
}

// Advance moves to the next level after a win. For Classic it plays another
// round at the same level.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.phase != Revealed || e.outcome == nil || !e.outcome.Correct {
		e.ignoredLocked("advance")
		return false
	}
	next := e.level
	if e.variant.Leveling() {
		next++
	}
	e.beginLevelLocked(next)
	return true
}

// Restart returns to level 1. Valid in Revealed after a win or a loss.
func (e *Engine) Restart() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.phase != Revealed {
		e.ignoredLocked("restart")
		return false
	}
	e.beginLevelLocked(1)
	return true
}

// Close cancels any pending timed step. No state is mutated, published or
// persisted afterwards. Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.cancelLocked()
	e.subs = nil
	e.logger.Debug("Engine closed", "phase", e.phase, "step", e.step)
}

func (e *Engine) beginLevelLocked(level int) {
	e.cancelLocked()

	e.level = level
	e.params = e.paramsFor(level)
	e.order = shuffle.Identity(e.params.Containers)
	e.token = randutil.Pick(e.rng, e.params.Containers)
	e.selected = -1
	e.outcome = nil
	e.step = 0
	e.shuffler = nil
	e.phase = Placing

	e.logger.Info("Level started",
		"level", level,
		"containers", e.params.Containers,
		"steps", e.params.ShuffleSteps,
		"stepDuration", e.params.StepDuration)
	e.publishLocked()

	e.scheduleLocked(e.scaled(e.placingDelay), e.beginShuffleLocked)
}

func (e *Engine) beginShuffleLocked() {
	e.shuffler = shuffle.New(e.order, e.params, e.rng, e.shuffleOpts...)
	e.phase = Shuffling
	e.publishLocked()
	e.scheduleLocked(e.shuffler.Interval(), e.shuffleStepLocked)
}

// shuffleStepLocked applies one swap, or, once the sequence is exhausted,
// opens the selection.
func (e *Engine) shuffleStepLocked() {
	step, ok := e.shuffler.Next()
	if !ok {
		e.shuffler = nil
		e.phase = Selecting
		e.publishLocked()
		return
	}
	e.order = step.Order
	e.step = step.Index
	e.logger.Debug("Shuffle step", "step", step.Index, "of", step.Total, "remaining", e.shuffler.Remaining(), "swap", []int{step.I, step.J})
	e.publishLocked()
	e.scheduleLocked(e.shuffler.Interval(), e.shuffleStepLocked)
}

// recordBestLocked raises and persists the best score after a win. A win
// at level L means level L+1 has been reached.
func (e *Engine) recordBestLocked() {
	candidate := e.score
	if e.variant.Leveling() {
		candidate = e.level + 1
	}
	if candidate <= e.best {
		return
	}
	e.best = candidate
	if err := e.store.Save(e.variant.Key(), e.best); err != nil {
		e.logger.Warn("Failed to persist best score", "best", e.best, "error", err)
	}
}

// scheduleLocked arms the single pending timer for fn.
func (e *Engine) scheduleLocked(d time.Duration, fn func()) {
	gen := e.gen
	e.timer = e.clock.AfterFunc(d, func() { e.fire(gen, fn) }, "engine", e.phase.String())
}

func (e *Engine) fire(gen uint64, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.gen {
		return
	}
	e.timer = nil
	fn()
}

// cancelLocked invalidates the current timer chain.
func (e *Engine) cancelLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) paramsFor(level int) difficulty.Params {
	p := difficulty.Scale(level)
	if !e.variant.Leveling() {
		p = difficulty.Classic()
	}
	return p.Scaled(e.timeScale)
}

func (e *Engine) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * e.timeScale)
}

func (e *Engine) ignoredLocked(command string, keyvals ...any) {
	e.logger.Debug("Ignoring command", append([]any{"command", command, "phase", e.phase}, keyvals...)...)
}

func (e *Engine) publishLocked() {
	e.seq++
	if len(e.subs) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, s := range e.subs {
		s.fn(snap)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		GameID:           e.id,
		Seq:              e.seq,
		Variant:          e.variant,
		Phase:            e.phase,
		Level:            e.level,
		BestLevel:        e.best,
		Score:            e.score,
		ContainerCount:   len(e.order),
		ContainerOrder:   slices.Clone(e.order),
		TokenContainerID: e.token,
		ShuffleStep:      e.step,
		ShuffleSteps:     e.params.ShuffleSteps,
		StepDurationMs:   e.params.StepDuration.Milliseconds(),
	}
	if e.selected >= 0 {
		pos := e.selected
		s.SelectedPosition = &pos
	}
	if e.outcome != nil {
		o := *e.outcome
		s.Outcome = &o
	}
	return s
}
