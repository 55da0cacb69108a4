// Package scorestore persists the best score of each game variant.
//
// Reads never fail from the caller's point of view: a missing or unreadable
// record loads as 0. Writes are best-effort, last-writer-wins overwrites.
package scorestore

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// Key names one persisted record.
type Key string

const (
	// ClassicWins holds the best win count of the fixed three-box game.
	ClassicWins Key = "classic.wins"
	// ProgressiveBestLevel holds the highest level reached in the leveling game.
	ProgressiveBestLevel Key = "progressive.best_level"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("scorestore: unknown backend")

// ErrNegative is returned when saving a negative value.
var ErrNegative = errors.New("scorestore: value must be non-negative")

// Store loads and saves integer records.
type Store interface {
	// Load returns the stored value for key, or 0 when there is none or it
	// cannot be read.
	Load(key Key) int
	// Save overwrites the value for key.
	Save(key Key, value int) error
	io.Closer
}

// Backends lists the names accepted by Open.
var Backends = []string{"file", "sqlite", "memory"}

// Open builds the store for backend. path is ignored by the memory backend.
func Open(backend, path string, logger *log.Logger) (Store, error) {
	switch backend {
	case "file", "":
		return NewFile(path, logger), nil
	case "sqlite":
		return NewSQLite(path, logger)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func discardLogger(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	return log.New(io.Discard)
}
