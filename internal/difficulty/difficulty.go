// Package difficulty maps a level to the container count and shuffle pacing
// used for that level.
package difficulty

import "time"

const (
	BaseContainers = 3
	MaxContainers  = 6

	// BaseShuffleSteps is added to the level, so level 1 shuffles five times.
	BaseShuffleSteps = 4

	BaseStepDuration = 400 * time.Millisecond
	DecayPerLevel    = 20 * time.Millisecond
	MinStepDuration  = 200 * time.Millisecond
)

// Params describes one level.
type Params struct {
	Containers   int
	ShuffleSteps int
	StepDuration time.Duration
}

// Scale returns the parameters for level. Levels below 1 are treated as 1.
func Scale(level int) Params {
	if level < 1 {
		level = 1
	}
	return Params{
		Containers:   min(MaxContainers, BaseContainers+level-1),
		ShuffleSteps: BaseShuffleSteps + level,
		StepDuration: max(MinStepDuration, BaseStepDuration-time.Duration(level)*DecayPerLevel),
	}
}

// Classic returns the fixed parameters of the non-leveling game: three
// boxes, five shuffles, 400ms per shuffle.
func Classic() Params {
	return Params{
		Containers:   BaseContainers,
		ShuffleSteps: 5,
		StepDuration: BaseStepDuration,
	}
}

// Scaled returns p with StepDuration multiplied by factor. A factor of zero
// removes all pacing; negative factors are treated as 1.
func (p Params) Scaled(factor float64) Params {
	if factor < 0 {
		factor = 1
	}
	p.StepDuration = time.Duration(float64(p.StepDuration) * factor)
	return p
}
