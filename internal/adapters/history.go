// Package adapters normalizes external price-history sources into the
// in-memory series model. Providers apply their own rate limiting, retry
// and budget policy; the engine above them only sees records or a typed
// FetchError.
package adapters

import (
	"context"
	"fmt"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// HistoryProvider fetches daily OHLCV records for a symbol over an
// inclusive date range. Returned records are sorted ascending by date and
// restricted to the requested range; rows the provider cannot parse are
// skipped, not fatal.
type HistoryProvider interface {
	FetchRange(ctx context.Context, symbol string, start, end series.Date) ([]series.Record, error)
}

// FetchError classifies provider failures so the engine can report per-gap
// outcomes without inspecting provider internals.
type FetchError struct {
	Type    string // "network", "rate_limit", "provider_error", "bad_symbol"
	Symbol  string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error for %s: %s (%v)", e.Type, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Type, e.Symbol, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

func NewNetworkError(symbol, message string, cause error) *FetchError {
	return &FetchError{Type: "network", Symbol: symbol, Message: message, Cause: cause}
}

func NewRateLimitError(symbol, message string) *FetchError {
	return &FetchError{Type: "rate_limit", Symbol: symbol, Message: message}
}

func NewProviderError(symbol, message string, cause error) *FetchError {
	return &FetchError{Type: "provider_error", Symbol: symbol, Message: message, Cause: cause}
}

func NewBadSymbolError(symbol, message string) *FetchError {
	return &FetchError{Type: "bad_symbol", Symbol: symbol, Message: message}
}
