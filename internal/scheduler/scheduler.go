// Package scheduler runs the periodic refresh jobs: daily coverage and
// metrics per symbol, weekly correlation recompute.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/kellyfolio/portfolio-engine/internal/engine"
	"github.com/kellyfolio/portfolio-engine/internal/observ"
)

type Scheduler struct {
	cron    *cron.Cron
	engine  *engine.Engine
	symbols []string
	ctx     context.Context
}

func New(ctx context.Context, eng *engine.Engine, symbols []string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		engine:  eng,
		symbols: symbols,
		ctx:     ctx,
	}
}

// RegisterAll wires the daily refresh and weekly correlation tasks.
func (s *Scheduler) RegisterAll(dailySpec, weeklySpec string) error {
	if _, err := s.cron.AddFunc(dailySpec, s.dailyRefresh); err != nil {
		return fmt.Errorf("register daily refresh: %w", err)
	}
	if _, err := s.cron.AddFunc(weeklySpec, s.weeklyCorrelation); err != nil {
		return fmt.Errorf("register weekly correlation: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	observ.Log("scheduler_started", map[string]any{"symbols": len(s.symbols)})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	observ.Log("scheduler_stopped", nil)
}

// RunRefreshNow executes the daily refresh immediately (manual trigger).
func (s *Scheduler) RunRefreshNow() { s.dailyRefresh() }

// dailyRefresh updates every configured symbol independently: one
// symbol's failure never blocks the rest.
func (s *Scheduler) dailyRefresh() {
	observ.Log("daily_refresh_started", map[string]any{"symbols": len(s.symbols)})
	for _, symbol := range s.symbols {
		if s.ctx.Err() != nil {
			return
		}
		report, metrics, err := s.engine.RefreshSymbol(s.ctx, symbol)
		if err != nil {
			observ.Error("symbol_refresh_failed", err, map[string]any{"symbol": symbol})
			continue
		}
		observ.Log("symbol_refreshed", map[string]any{
			"symbol":     symbol,
			"complete":   report.Complete,
			"added":      report.RecordsAdded,
			"failed":     len(report.Failed),
			"volatility": metrics.Volatility,
			"synthetic":  metrics.Synthetic,
		})
	}
}

func (s *Scheduler) weeklyCorrelation() {
	result, err := s.engine.ComputeCorrelation(s.symbols)
	if err != nil {
		observ.Error("correlation_refresh_failed", err, nil)
		return
	}
	known := 0
	for i := range result.Matrix {
		for j := range result.Matrix[i] {
			if i != j && result.Matrix[i][j] != nil {
				known++
			}
		}
	}
	observ.SetGauge("correlation_pairs_known", float64(known/2), nil)
	observ.Log("correlation_refreshed", map[string]any{
		"symbols": len(result.Symbols), "pairs_known": known / 2,
	})
}
