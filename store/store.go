// Package store persists account state. Every backend applies a commit
// atomically: either all puts and deletes land or none do.
package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store is closed")

// Store is a flat key-value store with atomic multi-key commits
type Store interface {
	// Get returns the value of key, or nil when it is absent
	Get(key []byte) ([]byte, error)
	// Commit applies puts and deletes atomically
	Commit(puts map[string][]byte, deletes []string) error
	// Keys returns every key in ascending order
	Keys() ([][]byte, error)
	Close() error
}

// sortedPuts returns the keys of puts in ascending order, so that backends
// write in a deterministic sequence.
func sortedPuts(puts map[string][]byte) []string {
	keys := make([]string, 0, len(puts))
	for k := range puts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Memory is an in-process Store
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Commit(puts map[string][]byte, deletes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, k := range deletes {
		delete(m.data, k)
	}
	for k, v := range puts {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *Memory) Keys() ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Open returns the backend named by kind rooted at path
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "leveldb":
		return OpenLevelDB(path)
	case "bolt":
		return OpenBolt(path)
	case "pebble":
		return OpenPebble(path)
	}
	return nil, errors.Errorf("unknown store backend %q", kind)
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*LevelDB)(nil)
	_ Store = (*Bolt)(nil)
	_ Store = (*Pebble)(nil)
)
