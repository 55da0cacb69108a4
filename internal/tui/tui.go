package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/shellgame/internal/game"
)

// snapshotBuffer bounds how far the renderer may lag behind the engine.
// When it is full the oldest snapshot is dropped; each snapshot carries the
// full state so nothing is lost but intermediate frames.
const snapshotBuffer = 32

// Engine is the part of game.Engine the TUI drives.
type Engine interface {
	Snapshot() game.Snapshot
	Subscribe(fn game.Subscriber) (unsubscribe func())
	Start() bool
	Select(position int) bool
	Advance() bool
	Restart() bool
}

type snapshotMsg game.Snapshot

// Model is the Bubble Tea model for the shell game.
type Model struct {
	engine      Engine
	logger      *log.Logger
	snapshots   chan game.Snapshot
	unsubscribe func()

	snap  game.Snapshot
	prev  []int
	moved [2]int

	keys       keyMap
	help       help.Model
	historyLog viewport.Model
	history    []string

	width    int
	height   int
	quitting bool
}

// New creates a model bound to engine. The model subscribes immediately;
// call Close when the program exits.
func New(engine Engine, logger *log.Logger) *Model {
	vp := viewport.New(30, 8)
	vp.SetContent("")

	m := &Model{
		engine:     engine,
		logger:     logger.WithPrefix("tui"),
		snapshots:  make(chan game.Snapshot, snapshotBuffer),
		keys:       defaultKeyMap(),
		help:       help.New(),
		historyLog: vp,
		moved:      [2]int{-1, -1},
	}
	m.unsubscribe = engine.Subscribe(m.forward)
	m.apply(engine.Snapshot())
	return m
}

// forward runs inside the engine's publish and must not block.
func (m *Model) forward(s game.Snapshot) {
	select {
	case m.snapshots <- s:
		return
	default:
	}
	select {
	case <-m.snapshots:
	default:
	}
	select {
	case m.snapshots <- s:
	default:
		m.logger.Debug("Dropped snapshot", "seq", s.Seq)
	}
}

// Close detaches the model from the engine.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Snapshot returns the state currently rendered.
func (m *Model) Snapshot() game.Snapshot { return m.snap }

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m *Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.snapshots)
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.apply(game.Snapshot(msg))
		return m, m.waitForSnapshot()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			m.command("start", m.engine.Start())
		case key.Matches(msg, m.keys.Select):
			pos, _ := strconv.Atoi(msg.String())
			m.command("select", m.engine.Select(pos-1), "position", pos-1)
		case key.Matches(msg, m.keys.Advance):
			m.command("advance", m.engine.Advance())
		case key.Matches(msg, m.keys.Restart):
			m.command("restart", m.engine.Restart())
		}
	}

	var cmd tea.Cmd
	m.historyLog, cmd = m.historyLog.Update(msg)
	return m, cmd
}

func (m *Model) command(name string, applied bool, keyvals ...any) {
	m.logger.Debug("Command", append([]any{"command", name, "applied", applied}, keyvals...)...)
}

// apply records a new snapshot. Snapshots older than the one shown are
// ignored.
func (m *Model) apply(s game.Snapshot) {
	if s.Seq != 0 && s.Seq <= m.snap.Seq {
		return
	}
	prevPhase := m.snap.Phase

	m.moved = [2]int{-1, -1}
	if s.Phase == game.Shuffling && len(m.prev) == len(s.ContainerOrder) {
		n := 0
		for i := range s.ContainerOrder {
			if s.ContainerOrder[i] != m.prev[i] && n < 2 {
				m.moved[n] = i
				n++
			}
		}
	}
	m.prev = append(m.prev[:0], s.ContainerOrder...)
	m.snap = s

	if s.Phase == game.Revealed && prevPhase != game.Revealed && s.Outcome != nil {
		m.addHistory(s)
	}
	m.keys.enable(s.CanStart(), s.CanSelect(), s.CanAdvance(), s.CanRestart())
}

func (m *Model) addHistory(s game.Snapshot) {
	var entry string
	if s.Outcome.Correct {
		entry = SuccessStyle.Render(fmt.Sprintf("Level %d: found it in box %d", s.Outcome.Level, s.Outcome.Position+1))
	} else {
		entry = ErrorStyle.Render(fmt.Sprintf("Level %d: missed (box %d)", s.Outcome.Level, s.Outcome.Position+1))
	}
	m.history = append(m.history, entry)
	m.historyLog.SetContent(strings.Join(m.history, "\n"))
	m.historyLog.GotoBottom()
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(StatusStyle.Render(Status(m.snap)))
	b.WriteString("\n\n")
	b.WriteString(m.renderBoxes())
	b.WriteString("\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n")

	body := b.String()
	if len(m.history) > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", paneStyle.Render(m.historyLog.View()))
	}
	return body + "\n" + m.help.View(m.keys) + "\n"
}

func (m *Model) renderHeader() string {
	s := m.snap
	title := HeaderStyle.Render("Shell Game")
	var stats string
	if s.Variant.Leveling() {
		stats = fmt.Sprintf("Level %d  Best %d  Wins %d", s.Level, s.BestLevel, s.Score)
	} else {
		stats = fmt.Sprintf("Wins %d  Best %d", s.Score, s.BestLevel)
	}
	return title + "  " + WarningStyle.Render(stats)
}

func (m *Model) renderBoxes() string {
	s := m.snap
	boxes := make([]string, 0, len(s.ContainerOrder))
	for pos, id := range s.ContainerOrder {
		content := " "
		if s.TokenVisible() && id == s.TokenContainerID {
			content = TokenStyle.Render("●")
		}

		style := boxStyle
		switch {
		case s.Phase == game.Shuffling && (pos == m.moved[0] || pos == m.moved[1]):
			style = movingBoxStyle
		case s.Outcome != nil && pos == s.Outcome.Position && s.Outcome.Correct:
			style = winBoxStyle
		case s.Outcome != nil && pos == s.Outcome.Position:
			style = loseBoxStyle
		case s.Phase == game.Selecting:
			style = pickableBoxStyle
		}

		label := InfoStyle.Render(strconv.Itoa(pos + 1))
		boxes = append(boxes, lipgloss.JoinVertical(lipgloss.Center, style.Render(content), label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m *Model) renderProgress() string {
	s := m.snap
	if s.Phase != game.Shuffling {
		return ""
	}
	const width = 20
	filled := width * s.ShuffleStep / max(s.ShuffleSteps, 1)
	return InfoStyle.Render(fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("=", filled), strings.Repeat(" ", width-filled), s.ShuffleStep, s.ShuffleSteps))
}

// Status is the line shown above the boxes for a snapshot.
func Status(s game.Snapshot) string {
	switch s.Phase {
	case game.Placing:
		return "Watch the ball!"
	case game.Shuffling:
		return "Shuffling..."
	case game.Selecting:
		return "Where is the ball? Select a box!"
	case game.Revealed:
		if s.Won() {
			return "You found it! 🎉"
		}
		return "Better luck next time!"
	default:
		return "Press Enter to play!"
	}
}
