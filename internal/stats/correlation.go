package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kellyfolio/portfolio-engine/internal/returns"
	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// DefaultMinOverlap is the smallest aligned sample a pair may have before
// its correlation is reported as unknown.
const DefaultMinOverlap = 30

// CorrelationResult is a symmetric Pearson correlation matrix indexed by
// Symbols. A nil entry means insufficient overlapping data or zero
// variance; it marshals to JSON null. The diagonal is always 1.
type CorrelationResult struct {
	Symbols []string     `json:"symbols"`
	Matrix  [][]*float64 `json:"matrix"`
}

// ComputeCorrelation builds the pairwise correlation matrix across the
// given symbols' series. Each pair is aligned on the intersection of its
// return dates; dates present in only one series are excluded for that
// pair. minOverlap <= 0 means DefaultMinOverlap. Symbols are ordered
// lexically so the output is deterministic.
func ComputeCorrelation(bySymbol map[string]series.Series, minOverlap int) CorrelationResult {
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	returnsBySymbol := make(map[string]map[series.Date]float64, len(symbols))
	datesBySymbol := make(map[string][]series.Date, len(symbols))
	for _, sym := range symbols {
		rs := returns.Compute(bySymbol[sym])
		m := make(map[series.Date]float64, len(rs))
		dates := make([]series.Date, 0, len(rs))
		for _, p := range rs {
			m[p.Date] = p.Value
			dates = append(dates, p.Date)
		}
		returnsBySymbol[sym] = m
		datesBySymbol[sym] = dates
	}

	n := len(symbols)
	matrix := make([][]*float64, n)
	for i := range matrix {
		matrix[i] = make([]*float64, n)
	}
	one := 1.0
	for i := 0; i < n; i++ {
		matrix[i][i] = &one
		for j := i + 1; j < n; j++ {
			// Computed once per unordered pair, mirrored.
			r := pairCorrelation(
				returnsBySymbol[symbols[i]], datesBySymbol[symbols[i]],
				returnsBySymbol[symbols[j]], minOverlap,
			)
			matrix[i][j] = r
			matrix[j][i] = r
		}
	}
	return CorrelationResult{Symbols: symbols, Matrix: matrix}
}

// pairCorrelation aligns two return maps on shared dates and returns the
// Pearson coefficient, or nil when the aligned sample is too small or
// either vector has zero variance.
func pairCorrelation(a map[series.Date]float64, aDates []series.Date, b map[series.Date]float64, minOverlap int) *float64 {
	xs := make([]float64, 0, len(aDates))
	ys := make([]float64, 0, len(aDates))
	for _, d := range aDates {
		if y, ok := b[d]; ok {
			xs = append(xs, a[d])
			ys = append(ys, y)
		}
	}
	if len(xs) < minOverlap {
		return nil
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return nil
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}
