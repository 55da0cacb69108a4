package scorestore

import "sync"

// Memory keeps records for the lifetime of the process.
type Memory struct {
	mu      sync.Mutex
	records map[Key]int
	saves   int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Key]int)}
}

func (m *Memory) Load(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key]
}

func (m *Memory) Save(key Key, value int) error {
	if value < 0 {
		return ErrNegative
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = value
	m.saves++
	return nil
}

// Saves counts successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
