package game

import "slices"

// Snapshot is an immutable copy of the engine state handed to renderers.
//
// TokenContainerID is always populated. Renderers are expected to hide it
// until the token is meant to be visible; see TokenVisible.
type Snapshot struct {
	GameID  string  `json:"gameId"`
	Seq     uint64  `json:"seq"`
	Variant Variant `json:"variant"`
	Phase   Phase   `json:"phase"`

	Level int `json:"level"`
	// BestLevel is the persisted best: the highest level reached for
	// Progressive, the best win count for Classic.
	BestLevel int `json:"bestLevel"`
	// Score counts wins since the engine was created.
	Score int `json:"score"`

	ContainerCount   int   `json:"containerCount"`
	ContainerOrder   []int `json:"containerOrder"`
	TokenContainerID int   `json:"tokenContainerId"`
	SelectedPosition *int  `json:"selectedPosition,omitempty"`

	Outcome *Outcome `json:"outcome,omitempty"`

	ShuffleStep    int   `json:"shuffleStep"`
	ShuffleSteps   int   `json:"shuffleSteps"`
	StepDurationMs int64 `json:"stepDurationMs"`
}

// TokenVisible reports whether the renderer may show the token: while it is
// being placed and once the round is revealed.
func (s Snapshot) TokenVisible() bool {
	return s.Phase == Placing || s.Phase == Revealed
}

// TokenPosition is the index in ContainerOrder that holds the token.
func (s Snapshot) TokenPosition() int {
	return slices.Index(s.ContainerOrder, s.TokenContainerID)
}

func (s Snapshot) CanStart() bool   { return s.Phase == Idle || s.Phase == Revealed }
func (s Snapshot) CanSelect() bool  { return s.Phase == Selecting }
func (s Snapshot) CanRestart() bool { return s.Phase == Revealed }

// CanAdvance is true only after a winning selection.
func (s Snapshot) CanAdvance() bool {
	return s.Phase == Revealed && s.Outcome != nil && s.Outcome.Correct
}

// Won reports whether the revealed round was a win.
func (s Snapshot) Won() bool { return s.CanAdvance() }

// Lost reports whether the revealed round was a loss.
func (s Snapshot) Lost() bool {
	return s.Phase == Revealed && s.Outcome != nil && !s.Outcome.Correct
}

// Redacted returns a copy with the token hidden unless it is visible.
// Hidden tokens are reported as -1.
func (s Snapshot) Redacted() Snapshot {
	if !s.TokenVisible() {
		s.TokenContainerID = -1
	}
	return s
}
