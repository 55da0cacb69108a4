package game

import (
	"fmt"
	"strings"

	"github.com/lox/shellgame/internal/scorestore"
)

// Phase is the engine's position in the round state machine.
type Phase uint8

const (
	Idle Phase = iota
	Placing
	Shuffling
	Selecting
	Revealed
)

var phaseNames = [...]string{"idle", "placing", "shuffling", "selecting", "revealed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if string(text) == name {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Variant selects between the leveling game and the fixed three-box game.
type Variant uint8

const (
	Progressive Variant = iota
	Classic
)

func (v Variant) String() string {
	switch v {
	case Progressive:
		return "progressive"
	case Classic:
		return "classic"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// Leveling reports whether wins advance the level.
func (v Variant) Leveling() bool { return v == Progressive }

// Key is the persisted record for the variant. The two variants score
// differently, so they never share a record.
func (v Variant) Key() scorestore.Key {
	if v == Classic {
		return scorestore.ClassicWins
	}
	return scorestore.ProgressiveBestLevel
}

func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVariant accepts "progressive" or "classic", case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "progressive", "":
		return Progressive, nil
	case "classic":
		return Classic, nil
	default:
		return Progressive, fmt.Errorf("unknown variant %q", s)
	}
}
