package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellyfolio/portfolio-engine/internal/returns"
	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// flatReturns builds n return points of the same value on consecutive
// weekdays starting 2020-01-06 (a Monday).
func flatReturns(n int, value float64) returns.Series {
	return rampReturns(n, func(int) float64 { return value })
}

func rampReturns(n int, value func(i int) float64) returns.Series {
	out := make(returns.Series, 0, n)
	d := series.MustDate("2020-01-06")
	for i := 0; i < n; i++ {
		for d.IsWeekend() {
			d = d.Add(1)
		}
		out = append(out, returns.Point{Date: d, Value: value(i)})
		d = d.Add(1)
	}
	return out
}

func TestEstimateInsufficientData(t *testing.T) {
	e := NewEstimator(EstimatorConfig{})
	_, err := e.Estimate(flatReturns(29, 0.001))
	require.Error(t, err)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30, insufficient.Required)
	assert.Equal(t, 29, insufficient.Actual)
}

func TestEstimateConstantReturnScenario(t *testing.T) {
	// 252 identical daily returns of 0.1%: zero volatility, expected
	// return equal to the compounded year, unclamped (below the cap).
	e := NewEstimator(EstimatorConfig{})
	m, err := e.Estimate(flatReturns(252, 0.001))
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.Volatility)
	want := math.Pow(1.001, 252) - 1 // ≈ 0.2867
	assert.InDelta(t, want, m.ExpectedReturn, 1e-9)
	assert.InDelta(t, want, m.OriginalExpectedReturn, 1e-9)
	assert.Equal(t, 252, m.DataPoints)
	assert.Equal(t, 252, m.RecentDataPoints)
	assert.False(t, m.Synthetic)
}

func TestEstimateClampBoundaries(t *testing.T) {
	e := NewEstimator(EstimatorConfig{})

	hot, err := e.Estimate(flatReturns(100, 0.02))
	require.NoError(t, err)
	assert.Equal(t, 0.60, hot.ExpectedReturn)
	assert.Greater(t, hot.OriginalExpectedReturn, 0.60)

	cold, err := e.Estimate(flatReturns(100, -0.01))
	require.NoError(t, err)
	assert.Equal(t, -0.20, cold.ExpectedReturn)
	assert.Less(t, cold.OriginalExpectedReturn, -0.20)
}

func TestEstimateLookbackBoundsStaleness(t *testing.T) {
	// 300 points: a noisy old regime followed by 252 identical recent
	// points. Only the recent window may drive the estimate.
	rs := rampReturns(300, func(i int) float64 {
		if i < 48 {
			return 0.05
		}
		return 0.001
	})
	e := NewEstimator(EstimatorConfig{})
	m, err := e.Estimate(rs)
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.Volatility, "old regime must not leak into the window")
	assert.Equal(t, 300, m.DataPoints)
	assert.Equal(t, 252, m.RecentDataPoints)
	assert.Equal(t, rs[len(rs)-1].Date, m.LastCalculated)
}

func TestEstimateScaleInvariance(t *testing.T) {
	// Returns are ratios: scaling every price by a positive constant
	// leaves volatility and the unclamped expected return unchanged.
	prices := []float64{100, 101, 99.5, 102, 103.1, 101.8, 104, 102.2}
	build := func(scale float64) series.Series {
		s := make(series.Series, 0, 64)
		d := series.MustDate("2022-03-01")
		for i := 0; i < 8; i++ { // repeat the pattern to pass the minimum
			for _, p := range prices {
				for d.IsWeekend() {
					d = d.Add(1)
				}
				v := p * scale * (1 + 0.001*float64(i)) // drift so variance is nonzero
				s = append(s, series.Record{Date: d, Close: series.Num(v)})
				d = d.Add(1)
			}
		}
		return s
	}

	e := NewEstimator(EstimatorConfig{})
	m1, err := e.Estimate(returns.Compute(build(1)))
	require.NoError(t, err)
	m2, err := e.Estimate(returns.Compute(build(7.5)))
	require.NoError(t, err)

	assert.InDelta(t, m1.Volatility, m2.Volatility, 1e-9)
	assert.InDelta(t, m1.OriginalExpectedReturn, m2.OriginalExpectedReturn, 1e-9)
}

func TestEstimateSampleVariance(t *testing.T) {
	// Two alternating values: mean 0, sample variance n/(n-1)·0.01².
	rs := rampReturns(30, func(i int) float64 {
		if i%2 == 0 {
			return 0.01
		}
		return -0.01
	})
	e := NewEstimator(EstimatorConfig{})
	m, err := e.Estimate(rs)
	require.NoError(t, err)

	wantDaily := math.Sqrt(30.0 / 29.0 * 0.0001)
	assert.InDelta(t, wantDaily*math.Sqrt(252), m.Volatility, 1e-9)
}
