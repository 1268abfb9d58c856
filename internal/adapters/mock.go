package adapters

import (
	"context"
	"sync"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// MockHistoryProvider serves canned records for tests. Safe for concurrent
// use.
type MockHistoryProvider struct {
	mu      sync.Mutex
	records map[string][]series.Record
	fail    map[string]error
	calls   []FetchCall
}

// FetchCall records one FetchRange invocation.
type FetchCall struct {
	Symbol string
	Start  series.Date
	End    series.Date
}

func NewMockHistoryProvider() *MockHistoryProvider {
	return &MockHistoryProvider{
		records: map[string][]series.Record{},
		fail:    map[string]error{},
	}
}

// SetRecords sets the full universe of records for a symbol. FetchRange
// returns the subset inside the requested range.
func (m *MockHistoryProvider) SetRecords(symbol string, recs []series.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[symbol] = recs
}

// FailWith makes every fetch for the symbol return err. nil clears it.
func (m *MockHistoryProvider) FailWith(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, symbol)
		return
	}
	m.fail[symbol] = err
}

// Calls returns a copy of the recorded fetch calls.
func (m *MockHistoryProvider) Calls() []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FetchCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockHistoryProvider) FetchRange(ctx context.Context, symbol string, start, end series.Date) ([]series.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, FetchCall{Symbol: symbol, Start: start, End: end})
	if err := m.fail[symbol]; err != nil {
		return nil, err
	}
	recs, ok := m.records[symbol]
	if !ok {
		return nil, NewBadSymbolError(symbol, "no history for symbol")
	}
	var out []series.Record
	for _, r := range recs {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
