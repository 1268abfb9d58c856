package series

import "fmt"

// Gap is a contiguous sub-range of a requested range with no covering
// record. Start and End are inclusive and Start <= End.
type Gap struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func (g Gap) String() string { return fmt.Sprintf("%s..%s", g.Start, g.End) }

// FindGaps walks the requested range against the series' dates and returns
// the maximal, non-overlapping, sorted list of uncovered sub-ranges.
//
// Coverage is measured in weekdays: Saturdays and Sundays are never gap
// days, and a weekend between two missing weekdays does not split a run.
// Market holidays are indistinguishable from missing data here; callers
// that fetch a gap and receive nothing for it treat it as unfillable
// rather than an error. Pure function, no side effects.
func FindGaps(s Series, start, end Date) ([]Gap, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("requested range has a zero date")
	}
	if start.After(end) {
		return nil, fmt.Errorf("requested range inverted: %s after %s", start, end)
	}

	// An empty series is one gap over the whole requested range.
	if len(s) == 0 {
		return []Gap{{Start: start, End: end}}, nil
	}

	covered := make(map[Date]struct{}, len(s))
	for _, r := range s {
		covered[r.Date] = struct{}{}
	}

	var gaps []Gap
	var run *Gap
	for d := start; !d.After(end); d = d.Add(1) {
		if d.IsWeekend() {
			continue
		}
		if _, ok := covered[d]; ok {
			if run != nil {
				gaps = append(gaps, *run)
				run = nil
			}
			continue
		}
		if run == nil {
			run = &Gap{Start: d, End: d}
		} else {
			run.End = d
		}
	}
	if run != nil {
		gaps = append(gaps, *run)
	}
	return gaps, nil
}

// DataComplete reports whether the series fully covers the requested range,
// i.e. FindGaps returns nothing.
func DataComplete(s Series, start, end Date) (bool, error) {
	gaps, err := FindGaps(s, start, end)
	if err != nil {
		return false, err
	}
	return len(gaps) == 0, nil
}
