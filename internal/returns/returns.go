// Package returns derives daily return sequences from price series.
package returns

import (
	"math"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// Point is one daily return observation, dated by the later day of the
// price pair that produced it.
type Point struct {
	Date  series.Date `json:"date"`
	Value float64     `json:"value"`
}

// Series is an ordered daily return sequence.
type Series []Point

// Compute derives simple daily returns p1/p0 - 1 from consecutive record
// pairs, preferring the adjusted close. Pairs with a missing, non-positive
// or non-finite price contribute no point, so no NaN or Inf ever leaves
// this package. A price series shorter than 2 yields an empty result;
// callers must check length before relying on statistics.
func Compute(s series.Series) Series {
	if len(s) < 2 {
		return nil
	}
	out := make(Series, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		prev, okPrev := s[i-1].Price()
		cur, okCur := s[i].Price()
		if !okPrev || !okCur || prev <= 0 || cur <= 0 {
			continue
		}
		r := cur/prev - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, Point{Date: s[i].Date, Value: r})
	}
	return out
}

// Values returns the bare return values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
