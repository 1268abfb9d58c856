package store

import (
	"path/filepath"
	"testing"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

func sampleSeries() series.Series {
	return series.Series{
		{
			Date:     series.MustDate("2024-01-02"),
			Open:     series.Num(99.5),
			Close:    series.Num(100),
			AdjClose: series.Num(100),
			Volume:   series.Vol(1_200_000),
		},
		{
			// Sparse record: only a close. Optional fields stay null.
			Date:  series.MustDate("2024-01-03"),
			Close: series.Num(101.25),
		},
	}
}

func TestJSONStoreRoundtrip(t *testing.T) {
	js, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}

	want := sampleSeries()
	if err := js.Save("aapl", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := js.Load("AAPL")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	if got[0].Date != want[0].Date || *got[0].Close != *want[0].Close || *got[0].Volume != *want[0].Volume {
		t.Errorf("record 0 roundtrip mismatch: %+v", got[0])
	}
	if got[1].Open != nil || got[1].Volume != nil {
		t.Errorf("absent fields must stay nil after roundtrip: %+v", got[1])
	}
}

func TestJSONStoreUnknownSymbol(t *testing.T) {
	js, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	s, err := js.Load("NOPE")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s) != 0 {
		t.Errorf("unknown symbol should load as empty, got %d records", len(s))
	}
}

func TestJSONStoreSymbols(t *testing.T) {
	dir := t.TempDir()
	js, err := NewJSONStore(dir)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	for _, sym := range []string{"msft", "AAPL"} {
		if err := js.Save(sym, sampleSeries()); err != nil {
			t.Fatalf("Save(%s) error = %v", sym, err)
		}
	}
	syms, err := js.Symbols()
	if err != nil {
		t.Fatalf("Symbols() error = %v", err)
	}
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "MSFT" {
		t.Errorf("Symbols() = %v, want [AAPL MSFT]", syms)
	}
	// Save leaves no temp files behind.
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left after save: %v", leftovers)
	}
}

func TestJSONStoreOverwrite(t *testing.T) {
	js, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	if err := js.Save("AAPL", sampleSeries()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	short := sampleSeries()[:1]
	if err := js.Save("AAPL", short); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := js.Load("AAPL")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("save replaces the whole file, got %d records", len(got))
	}
}
