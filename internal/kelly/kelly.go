// Package kelly computes the capital fraction maximizing long-run
// geometric growth for a given expected-return/volatility/risk-free triple.
package kelly

import (
	"fmt"
	"math"
)

// InvalidParameterError marks a precondition violation, e.g. non-positive
// volatility. Programmer error with validated inputs.
type InvalidParameterError struct {
	Param string
	Value float64
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g", e.Param, e.Value)
}

// Fraction returns f* = (expectedReturn - riskFree) / volatility², clamped
// to [0, 1]: a negative edge floors at 0 (never short), and anything above
// full allocation caps at 1 (no leverage). Volatility must be positive.
func Fraction(expectedReturn, volatility, riskFree float64) (float64, error) {
	if volatility <= 0 || math.IsNaN(volatility) || math.IsInf(volatility, 0) {
		return 0, &InvalidParameterError{Param: "volatility", Value: volatility}
	}
	f := (expectedReturn - riskFree) / (volatility * volatility)
	return math.Max(0, math.Min(1, f)), nil
}

// Fractional returns f* scaled by a multiplier in (0, 1], e.g. 0.5 for
// half-Kelly. The result stays within [0, f*].
func Fractional(expectedReturn, volatility, riskFree, multiplier float64) (float64, error) {
	if multiplier <= 0 || multiplier > 1 {
		return 0, &InvalidParameterError{Param: "multiplier", Value: multiplier}
	}
	f, err := Fraction(expectedReturn, volatility, riskFree)
	if err != nil {
		return 0, err
	}
	return f * multiplier, nil
}
