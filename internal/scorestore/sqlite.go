package scorestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// SQLite stores one row per key.
type SQLite struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLite opens (creating if needed) the database at path and migrates
// the scores table.
func NewSQLite(path string, logger *log.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scorestore: open db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writes.
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:     db,
		logger: discardLogger(logger).WithPrefix("scorestore").With("path", path),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS scores (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("scorestore: migrate: %w", err)
	}
	return nil
}

func (s *SQLite) Load(key Key) int {
	var v int
	err := s.db.QueryRow(`SELECT value FROM scores WHERE key = ?`, string(key)).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0
	case err != nil:
		s.logger.Warn("Ignoring unreadable score record", "key", key, "error", err)
		return 0
	case v < 0:
		s.logger.Warn("Ignoring negative score record", "key", key, "value", v)
		return 0
	}
	return v
}

func (s *SQLite) Save(key Key, value int) error {
	if value < 0 {
		return ErrNegative
	}
	_, err := s.db.Exec(`INSERT INTO scores (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		string(key), value)
	if err != nil {
		return fmt.Errorf("scorestore: save %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
