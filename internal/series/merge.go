package series

import "fmt"

// RecordError describes a single malformed record dropped during a merge.
// Per-record failures never abort the merge itself.
type RecordError struct {
	Index  int    // position within the incoming batch
	Date   string // string form of the record date, may be empty
	Reason string
}

func (e *RecordError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("malformed record [%d] %s: %s", e.Index, e.Date, e.Reason)
	}
	return fmt.Sprintf("malformed record [%d]: %s", e.Index, e.Reason)
}

// Merge folds incoming records into an existing series. Incoming records
// overwrite existing records on the same date (fetched data is
// authoritative); duplicate dates within the batch resolve to the
// last-occurring record. Malformed records are dropped and reported.
// The result is sorted ascending with unique dates, and the operation is
// idempotent: Merge(Merge(s, r), r) == Merge(s, r).
func Merge(existing Series, incoming []Record) (Series, []RecordError) {
	byDate := make(map[Date]Record, len(existing)+len(incoming))
	for _, r := range existing {
		byDate[r.Date] = r
	}

	var dropped []RecordError
	for i, r := range incoming {
		if err := r.Validate(); err != nil {
			re := RecordError{Index: i, Reason: err.Error()}
			if !r.Date.IsZero() {
				re.Date = r.Date.String()
			}
			dropped = append(dropped, re)
			continue
		}
		byDate[r.Date] = r
	}

	merged := make(Series, 0, len(byDate))
	for _, r := range byDate {
		merged = append(merged, r)
	}
	sortByDate(merged)
	return merged, dropped
}
