package scorestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// File stores all records in one JSON document:
//
//	{"records": {"progressive.best_level": 4}}
type File struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

type fileDocument struct {
	Records map[Key]int `json:"records"`
}

// NewFile returns a store backed by the JSON document at path. The file is
// created on the first Save.
func NewFile(path string, logger *log.Logger) *File {
	return &File{
		path:   path,
		logger: discardLogger(logger).WithPrefix("scorestore").With("path", path),
	}
}

func (f *File) Load(key Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		f.logger.Warn("Ignoring unreadable score file", "error", err)
		return 0
	}
	v := doc.Records[key]
	if v < 0 {
		f.logger.Warn("Ignoring negative score record", "key", key, "value", v)
		return 0
	}
	return v
}

func (f *File) Save(key Key, value int) error {
	if value < 0 {
		return ErrNegative
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		// A corrupt document is replaced rather than blocking new records.
		f.logger.Warn("Overwriting unreadable score file", "error", err)
		doc = fileDocument{}
	}
	if doc.Records == nil {
		doc.Records = make(map[Key]int)
	}
	doc.Records[key] = value

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("scorestore: create dir: %w", err)
	}
	return f.commit(doc)
}

func (f *File) Close() error { return nil }

// read returns an empty document when the file does not exist.
func (f *File) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileDocument{}, err
	}
	return doc, nil
}

// commit encodes doc into a sibling temp file and renames it over the
// store, so a concurrent Load sees the previous document or the new one.
func (f *File) commit(doc fileDocument) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("scorestore: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err = enc.Encode(doc); err != nil {
		return fmt.Errorf("scorestore: encode: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("scorestore: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("scorestore: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("scorestore: %w", err)
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("scorestore: %w", err)
	}
	f.logger.Debug("Saved scores", "records", len(doc.Records))
	return nil
}
