// Package series holds the canonical per-symbol price history model:
// daily price records ordered by date, gap detection against a requested
// range, and merge of freshly fetched records into an existing series.
package series

import (
	"fmt"
	"math"
	"sort"
)

// Record is a single daily price observation. Every numeric field is
// optional except that at least one of Close and AdjClose must be present.
type Record struct {
	Date     Date     `json:"date"`
	Open     *float64 `json:"open,omitempty"`
	High     *float64 `json:"high,omitempty"`
	Low      *float64 `json:"low,omitempty"`
	Close    *float64 `json:"close,omitempty"`
	AdjClose *float64 `json:"adj_close,omitempty"`
	Volume   *int64   `json:"volume,omitempty"`
}

// Num returns a pointer to v. Convenience for building optional fields.
func Num(v float64) *float64 { return &v }

// Vol returns a pointer to v for the volume field.
func Vol(v int64) *int64 { return &v }

// Price returns the price used for return calculations: the adjusted close
// when present and finite, otherwise the close. ok is false when neither
// yields a usable value.
func (r Record) Price() (price float64, ok bool) {
	if r.AdjClose != nil && isFinite(*r.AdjClose) {
		return *r.AdjClose, true
	}
	if r.Close != nil && isFinite(*r.Close) {
		return *r.Close, true
	}
	return 0, false
}

// Validate reports why a record is malformed, or nil.
func (r Record) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("record has no date")
	}
	if _, ok := r.Price(); !ok {
		return fmt.Errorf("record %s has neither close nor adjusted close", r.Date)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Series is an ordered sequence of daily records for one symbol, strictly
// increasing by date with no duplicates. Mutate only through Merge.
type Series []Record

// First returns the earliest record. ok is false on an empty series.
func (s Series) First() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[0], true
}

// Last returns the most recent record. ok is false on an empty series.
func (s Series) Last() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[len(s)-1], true
}

// Dates returns the ordered dates of the series.
func (s Series) Dates() []Date {
	out := make([]Date, len(s))
	for i, r := range s {
		out[i] = r.Date
	}
	return out
}

// CheckOrdered verifies the strictly-increasing-date invariant.
func (s Series) CheckOrdered() error {
	for i := 1; i < len(s); i++ {
		if !s[i-1].Date.Before(s[i].Date) {
			return fmt.Errorf("series not strictly increasing at index %d: %s then %s",
				i, s[i-1].Date, s[i].Date)
		}
	}
	return nil
}

func sortByDate(s Series) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}
