// Package store persists per-symbol price series and the derived
// allocation settings. Persistence is last-write-wins at the file
// boundary; the engine serializes merge-then-read per symbol above it.
package store

import (
	"sync"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// SeriesStore reads and writes a symbol's canonical series. Load on an
// unknown symbol returns an empty series, not an error: a series comes
// into existence on its first successful merge.
type SeriesStore interface {
	Load(symbol string) (series.Series, error)
	Save(symbol string, s series.Series) error
	Symbols() ([]string, error)
}

// MemoryStore is an in-process SeriesStore for tests.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]series.Series
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]series.Series{}}
}

func (ms *MemoryStore) Load(symbol string) (series.Series, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s := ms.m[symbol]
	out := make(series.Series, len(s))
	copy(out, s)
	return out, nil
}

func (ms *MemoryStore) Save(symbol string, s series.Series) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cp := make(series.Series, len(s))
	copy(cp, s)
	ms.m[symbol] = cp
	return nil
}

func (ms *MemoryStore) Symbols() ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make([]string, 0, len(ms.m))
	for sym := range ms.m {
		out = append(out, sym)
	}
	return out, nil
}
