// Package stats turns daily return sequences into annualized risk and
// return estimates and cross-symbol correlation matrices.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kellyfolio/portfolio-engine/internal/returns"
	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// Metrics is the full per-symbol estimate. A calculation always replaces
// the whole record; it is never partially updated.
type Metrics struct {
	Volatility             float64     `json:"volatility"`               // annualized, decimal
	ExpectedReturn         float64     `json:"expected_return"`          // annualized, decimal, clamped
	OriginalExpectedReturn float64     `json:"original_expected_return"` // unclamped, for diagnostics
	DataPoints             int         `json:"data_points"`
	RecentDataPoints       int         `json:"recent_data_points"`
	LastCalculated         series.Date `json:"last_calculated"`
	Synthetic              bool        `json:"synthetic"`
}

// InsufficientDataError reports a sample too small for a reliable
// annualized estimate. Recoverable: callers may substitute a synthetic
// default instead of failing.
type InsufficientDataError struct {
	Required int
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d return points, have %d", e.Required, e.Actual)
}

// EstimatorConfig bounds the volatility estimate.
type EstimatorConfig struct {
	MinPoints      int     `yaml:"min_points"`       // hard minimum sample size (30)
	LookbackPoints int     `yaml:"lookback_points"`  // most recent points used (252)
	TradingDays    int     `yaml:"trading_days"`     // annualization base (252)
	ClampMinReturn float64 `yaml:"clamp_min_return"` // reported expected-return floor
	ClampMaxReturn float64 `yaml:"clamp_max_return"` // reported expected-return cap
}

// Estimator computes annualized volatility and expected return from a
// daily return series.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator applies defaults for zero-valued config fields.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	if cfg.MinPoints == 0 {
		cfg.MinPoints = 30
	}
	if cfg.LookbackPoints == 0 {
		cfg.LookbackPoints = 252
	}
	if cfg.TradingDays == 0 {
		cfg.TradingDays = 252
	}
	if cfg.ClampMinReturn == 0 {
		cfg.ClampMinReturn = -0.20
	}
	if cfg.ClampMaxReturn == 0 {
		cfg.ClampMaxReturn = 0.60
	}
	return &Estimator{cfg: cfg}
}

// Estimate computes annualized metrics from a return series. Only the most
// recent LookbackPoints observations are used, which bounds staleness:
// older regime data does not dilute the estimate. Expected return is the
// annualized geometric mean; the arithmetic mean overstates growth under
// volatility (variance drag). The reported expected return is clamped to
// [ClampMinReturn, ClampMaxReturn] while the unclamped value is retained
// in OriginalExpectedReturn.
func (e *Estimator) Estimate(rs returns.Series) (Metrics, error) {
	if len(rs) < e.cfg.MinPoints {
		return Metrics{}, &InsufficientDataError{Required: e.cfg.MinPoints, Actual: len(rs)}
	}

	recent := rs
	if len(recent) > e.cfg.LookbackPoints {
		recent = recent[len(recent)-e.cfg.LookbackPoints:]
	}
	values := recent.Values()

	variance := stat.Variance(values, nil) // unbiased, divides by n-1
	dailyVol := math.Sqrt(variance)
	annualVol := dailyVol * math.Sqrt(float64(e.cfg.TradingDays))

	compound := 1.0
	for _, r := range values {
		compound *= 1 + r
	}
	avgDaily := math.Pow(compound, 1/float64(len(values))) - 1
	annualReturn := math.Pow(1+avgDaily, float64(e.cfg.TradingDays)) - 1

	clamped := math.Max(e.cfg.ClampMinReturn, math.Min(e.cfg.ClampMaxReturn, annualReturn))

	return Metrics{
		Volatility:             annualVol,
		ExpectedReturn:         clamped,
		OriginalExpectedReturn: annualReturn,
		DataPoints:             len(rs),
		RecentDataPoints:       len(values),
		LastCalculated:         recent[len(recent)-1].Date,
		Synthetic:              false,
	}, nil
}
