package series

import (
	"testing"
)

// recordsOn builds a series with a usable close price on each given date.
func recordsOn(dates ...string) Series {
	s := make(Series, 0, len(dates))
	for _, d := range dates {
		s = append(s, Record{Date: MustDate(d), Close: Num(100)})
	}
	return s
}

func TestFindGapsEmptySeries(t *testing.T) {
	start := MustDate("2019-01-01")
	end := MustDate("2023-12-31")
	gaps, err := FindGaps(nil, start, end)
	if err != nil {
		t.Fatalf("FindGaps() error = %v", err)
	}
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want exactly 1", len(gaps))
	}
	if gaps[0].Start != start || gaps[0].End != end {
		t.Errorf("gap = %v, want %s..%s", gaps[0], start, end)
	}
}

func TestFindGapsWeekendBridgesRun(t *testing.T) {
	// 2024-01-01 is a Monday. Present: Mon 01 .. Wed 03 and Tue 09 .. Fri 12.
	// Missing weekdays: Thu 04, Fri 05, Mon 08 — one run across the weekend.
	s := recordsOn("2024-01-01", "2024-01-02", "2024-01-03",
		"2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12")

	gaps, err := FindGaps(s, MustDate("2024-01-01"), MustDate("2024-01-12"))
	if err != nil {
		t.Fatalf("FindGaps() error = %v", err)
	}
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps %v, want 1", len(gaps), gaps)
	}
	if gaps[0].Start != MustDate("2024-01-04") || gaps[0].End != MustDate("2024-01-08") {
		t.Errorf("gap = %v, want 2024-01-04..2024-01-08", gaps[0])
	}
}

func TestFindGapsWeekendOnlyRange(t *testing.T) {
	s := recordsOn("2024-01-05")
	gaps, err := FindGaps(s, MustDate("2024-01-06"), MustDate("2024-01-07"))
	if err != nil {
		t.Fatalf("FindGaps() error = %v", err)
	}
	if len(gaps) != 0 {
		t.Errorf("weekend-only range produced gaps: %v", gaps)
	}
}

func TestFindGapsInvertedRange(t *testing.T) {
	if _, err := FindGaps(nil, MustDate("2024-01-10"), MustDate("2024-01-01")); err == nil {
		t.Error("expected error for inverted range")
	}
}

// Gap completeness: the union of gap weekdays and covered dates is exactly
// the weekdays of the requested range, with no overlap between gaps.
func TestFindGapsCompleteness(t *testing.T) {
	s := recordsOn("2024-01-02", "2024-01-05", "2024-01-08", "2024-01-16", "2024-01-17")
	start, end := MustDate("2024-01-01"), MustDate("2024-01-19")

	gaps, err := FindGaps(s, start, end)
	if err != nil {
		t.Fatalf("FindGaps() error = %v", err)
	}

	inGap := map[Date]bool{}
	for _, g := range gaps {
		if g.Start.After(g.End) {
			t.Fatalf("inverted gap %v", g)
		}
		for d := g.Start; !d.After(g.End); d = d.Add(1) {
			if d.IsWeekend() {
				continue
			}
			if inGap[d] {
				t.Fatalf("date %s appears in two gaps", d)
			}
			inGap[d] = true
		}
	}
	for i := 1; i < len(gaps); i++ {
		if !gaps[i-1].End.Before(gaps[i].Start) {
			t.Fatalf("gaps not sorted/disjoint: %v then %v", gaps[i-1], gaps[i])
		}
	}

	covered := map[Date]bool{}
	for _, r := range s {
		covered[r.Date] = true
	}
	for d := start; !d.After(end); d = d.Add(1) {
		if d.IsWeekend() {
			continue
		}
		if covered[d] == inGap[d] {
			t.Errorf("date %s: covered=%v inGap=%v, want exactly one", d, covered[d], inGap[d])
		}
	}
}

func TestDataComplete(t *testing.T) {
	// Full week Mon 01 .. Fri 05.
	s := recordsOn("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")
	complete, err := DataComplete(s, MustDate("2024-01-01"), MustDate("2024-01-07"))
	if err != nil {
		t.Fatalf("DataComplete() error = %v", err)
	}
	if !complete {
		t.Error("series covering all weekdays should be complete")
	}

	complete, err = DataComplete(s, MustDate("2024-01-01"), MustDate("2024-01-08"))
	if err != nil {
		t.Fatalf("DataComplete() error = %v", err)
	}
	if complete {
		t.Error("missing Monday 08 should make coverage incomplete")
	}
}
