// Package engine orchestrates the data-consistency and statistics
// pipeline: gap detection, gap fill via an external provider, merge into
// the canonical series, and per-symbol metric, correlation and Kelly
// computation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kellyfolio/portfolio-engine/internal/adapters"
	"github.com/kellyfolio/portfolio-engine/internal/kelly"
	"github.com/kellyfolio/portfolio-engine/internal/observ"
	"github.com/kellyfolio/portfolio-engine/internal/returns"
	"github.com/kellyfolio/portfolio-engine/internal/series"
	"github.com/kellyfolio/portfolio-engine/internal/stats"
	"github.com/kellyfolio/portfolio-engine/internal/store"
)

// Config tunes the engine. Zero values get sensible defaults in New.
type Config struct {
	Years               int     // history window for coverage
	RiskFreeRate        float64 // annual, decimal
	KellyMultiplier     float64 // fractional Kelly, (0, 1]
	MinOverlap          int     // correlation alignment minimum
	SyntheticVolatility float64 // fallback when a symbol has no usable data
	SyntheticReturn     float64
}

// Engine owns the per-symbol series through its store; all mutation goes
// through merge, and reads happen after pending merges for that symbol.
type Engine struct {
	store     store.SeriesStore
	provider  adapters.HistoryProvider
	estimator *stats.Estimator
	settings  *store.SettingsFile // optional
	cfg       Config
}

func New(st store.SeriesStore, provider adapters.HistoryProvider, estimator *stats.Estimator, settings *store.SettingsFile, cfg Config) *Engine {
	if cfg.Years <= 0 {
		cfg.Years = 5
	}
	if cfg.KellyMultiplier <= 0 || cfg.KellyMultiplier > 1 {
		cfg.KellyMultiplier = 0.5
	}
	if cfg.MinOverlap <= 0 {
		cfg.MinOverlap = stats.DefaultMinOverlap
	}
	if cfg.SyntheticVolatility <= 0 {
		cfg.SyntheticVolatility = 0.30
	}
	if cfg.SyntheticReturn == 0 {
		cfg.SyntheticReturn = 0.08
	}
	if estimator == nil {
		estimator = stats.NewEstimator(stats.EstimatorConfig{})
	}
	return &Engine{store: st, provider: provider, estimator: estimator, settings: settings, cfg: cfg}
}

// GapFailure reports one gap whose fetch failed. Other gaps proceed.
type GapFailure struct {
	Gap   series.Gap `json:"gap"`
	Error string     `json:"error"`
}

// CoverageReport is the outcome of one EnsureCoverage call. Partial
// success is a valid end state: failed gaps are listed for retry.
type CoverageReport struct {
	Symbol       string               `json:"symbol"`
	Start        series.Date          `json:"start"`
	End          series.Date          `json:"end"`
	GapsFound    []series.Gap         `json:"gaps_found"`
	GapsFilled   int                  `json:"gaps_filled"`
	Failed       []GapFailure         `json:"failed,omitempty"`
	RecordsAdded int                  `json:"records_added"`
	Dropped      []series.RecordError `json:"dropped,omitempty"`
	Complete     bool                 `json:"complete"`
}

// EnsureCoverage makes the stored series cover [start, end]: it detects
// gaps, fetches each gap from the provider, merges the results and
// persists once. A fetch failure for one gap never aborts the others.
// Gaps the provider returns no records for (holidays, delistings) stay
// open and simply remain in the next detection pass.
func (e *Engine) EnsureCoverage(ctx context.Context, symbol string, start, end series.Date) (CoverageReport, error) {
	report := CoverageReport{Symbol: symbol, Start: start, End: end}

	current, err := e.store.Load(symbol)
	if err != nil {
		return report, fmt.Errorf("load %s: %w", symbol, err)
	}
	gaps, err := series.FindGaps(current, start, end)
	if err != nil {
		return report, err
	}
	report.GapsFound = gaps
	if len(gaps) == 0 {
		report.Complete = true
		return report, nil
	}

	merged := current
	changed := false
	for _, gap := range gaps {
		recs, err := e.provider.FetchRange(ctx, symbol, gap.Start, gap.End)
		if err != nil {
			report.Failed = append(report.Failed, GapFailure{Gap: gap, Error: err.Error()})
			observ.IncCounter("gap_fill_failures_total", map[string]string{"symbol": symbol})
			observ.Error("gap_fill_failed", err, map[string]any{"symbol": symbol, "gap": gap.String()})
			continue
		}
		before := len(merged)
		var dropped []series.RecordError
		merged, dropped = series.Merge(merged, recs)
		report.Dropped = append(report.Dropped, dropped...)
		report.RecordsAdded += len(merged) - before
		report.GapsFilled++
		// Overwrites of existing dates also count as changes: fetched
		// data is authoritative over what is on disk.
		changed = changed || len(recs) > 0
		observ.IncCounter("gap_fills_total", map[string]string{"symbol": symbol})
	}
	if len(report.Dropped) > 0 {
		observ.IncCounterBy("merge_dropped_records_total",
			map[string]string{"symbol": symbol}, int64(len(report.Dropped)))
	}

	if changed {
		if err := e.store.Save(symbol, merged); err != nil {
			return report, fmt.Errorf("save %s: %w", symbol, err)
		}
	}
	report.Complete, err = series.DataComplete(merged, start, end)
	if err != nil {
		return report, err
	}
	observ.Log("coverage_ensured", map[string]any{
		"symbol": symbol, "gaps": len(gaps), "filled": report.GapsFilled,
		"failed": len(report.Failed), "added": report.RecordsAdded,
		"complete": report.Complete,
	})
	return report, nil
}

// ComputeMetrics derives annualized metrics from the stored series.
// Fails with stats.InsufficientDataError below the minimum sample; the
// synthetic fallback lives in MetricsOrSynthetic.
func (e *Engine) ComputeMetrics(symbol string) (stats.Metrics, error) {
	s, err := e.store.Load(symbol)
	if err != nil {
		return stats.Metrics{}, fmt.Errorf("load %s: %w", symbol, err)
	}
	rs := returns.Compute(s)
	m, err := e.estimator.Estimate(rs)
	if err != nil {
		return stats.Metrics{}, err
	}
	observ.IncCounter("metrics_computed_total", map[string]string{"symbol": symbol})
	return m, nil
}

// MetricsOrSynthetic computes metrics and substitutes the configured
// default estimate when the symbol has too little usable data. The
// synthetic flag marks the substitution; it is never an error.
func (e *Engine) MetricsOrSynthetic(symbol string) stats.Metrics {
	m, err := e.ComputeMetrics(symbol)
	if err == nil {
		return m
	}
	var insufficient *stats.InsufficientDataError
	if !errors.As(err, &insufficient) {
		observ.Error("metrics_failed", err, map[string]any{"symbol": symbol})
	}
	observ.IncCounter("metrics_synthetic_total", map[string]string{"symbol": symbol})
	return stats.Metrics{
		Volatility:     e.cfg.SyntheticVolatility,
		ExpectedReturn: e.cfg.SyntheticReturn,
		LastCalculated: series.Today(),
		Synthetic:      true,
	}
}

// ComputeAllMetrics computes metrics for every symbol concurrently.
// Symbols are independent; each symbol's series is read only here, after
// its merges completed.
func (e *Engine) ComputeAllMetrics(ctx context.Context, symbols []string) map[string]stats.Metrics {
	out := make(map[string]stats.Metrics, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			m := e.MetricsOrSynthetic(sym)
			mu.Lock()
			out[sym] = m
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return out
}

// ComputeCorrelation builds the pairwise correlation matrix over the
// stored series of the given symbols.
func (e *Engine) ComputeCorrelation(symbols []string) (stats.CorrelationResult, error) {
	bySymbol := make(map[string]series.Series, len(symbols))
	for _, sym := range symbols {
		s, err := e.store.Load(sym)
		if err != nil {
			return stats.CorrelationResult{}, fmt.Errorf("load %s: %w", sym, err)
		}
		bySymbol[sym] = s
	}
	result := stats.ComputeCorrelation(bySymbol, e.cfg.MinOverlap)
	observ.IncCounter("correlation_computed_total", nil)
	return result, nil
}

// Allocation is one symbol's Kelly sizing.
type Allocation struct {
	Symbol     string        `json:"symbol"`
	Metrics    stats.Metrics `json:"metrics"`
	Kelly      float64       `json:"kelly"`
	Fractional float64       `json:"fractional"`
}

// Allocations computes per-symbol Kelly fractions from current metrics,
// applying the configured fractional multiplier. Symbols fall back to
// synthetic metrics rather than dropping out of the result.
func (e *Engine) Allocations(ctx context.Context, symbols []string) ([]Allocation, error) {
	metrics := e.ComputeAllMetrics(ctx, symbols)
	out := make([]Allocation, 0, len(symbols))
	for _, sym := range symbols {
		m := metrics[sym]
		full, err := kelly.Fraction(m.ExpectedReturn, m.Volatility, e.cfg.RiskFreeRate)
		if err != nil {
			return nil, fmt.Errorf("kelly for %s: %w", sym, err)
		}
		frac, err := kelly.Fractional(m.ExpectedReturn, m.Volatility, e.cfg.RiskFreeRate, e.cfg.KellyMultiplier)
		if err != nil {
			return nil, fmt.Errorf("kelly for %s: %w", sym, err)
		}
		out = append(out, Allocation{Symbol: sym, Metrics: m, Kelly: full, Fractional: frac})
	}
	return out, nil
}

// RefreshSymbol is the daily update path: ensure coverage over the
// configured history window, recompute metrics (synthetic fallback), and
// write the allocation snapshot to the settings file when one is wired.
func (e *Engine) RefreshSymbol(ctx context.Context, symbol string) (CoverageReport, stats.Metrics, error) {
	end := series.Today()
	start := end.AddYears(-e.cfg.Years)
	report, err := e.EnsureCoverage(ctx, symbol, start, end)
	if err != nil {
		return report, stats.Metrics{}, err
	}
	m := e.MetricsOrSynthetic(symbol)
	if e.settings != nil {
		frac, err := kelly.Fractional(m.ExpectedReturn, m.Volatility, e.cfg.RiskFreeRate, e.cfg.KellyMultiplier)
		if err != nil {
			return report, m, fmt.Errorf("kelly for %s: %w", symbol, err)
		}
		if err := e.settings.Update(symbol, m, frac); err != nil {
			return report, m, fmt.Errorf("update settings for %s: %w", symbol, err)
		}
	}
	return report, m, nil
}
