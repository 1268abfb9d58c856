package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// nasdaqCSV mimics the real download format: newest-first rows, dollar
// signs on prices, thousands separators on volume.
const nasdaqCSV = `Date,Close/Last,Volume,Open,High,Low
01/05/2024,$181.18,"62,303,300",$181.99,$182.76,$180.17
01/04/2024,$181.91,"71,983,600",$182.15,$183.09,$180.88
01/03/2024,$184.25,"58,414,500",$184.22,$185.88,$183.43
01/02/2024,$185.64,"82,488,700",$187.15,$188.44,$183.89
`

func newTestClient(url string) *NasdaqClient {
	return NewNasdaqClient(NasdaqConfig{
		BaseURL:            url,
		RateLimitPerMinute: 6000,
		BackoffBaseMs:      1,
	})
}

func TestFetchRangeParsesCSV(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(nasdaqCSV))
	}))
	defer srv.Close()

	nc := newTestClient(srv.URL)
	recs, err := nc.FetchRange(context.Background(), "aapl",
		series.MustDate("2024-01-02"), series.MustDate("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.True(t, strings.HasPrefix(gotPath, "/api/v1/historical/aapl/stocks/"), "path = %s", gotPath)

	// Newest-first input comes back oldest-first.
	assert.Equal(t, series.MustDate("2024-01-02"), recs[0].Date)
	assert.Equal(t, series.MustDate("2024-01-05"), recs[3].Date)

	assert.Equal(t, 185.64, *recs[0].Close, "dollar sign must be stripped")
	assert.Equal(t, *recs[0].Close, *recs[0].AdjClose, "no adjusted close in the feed, mirrors close")
	assert.Equal(t, int64(82_488_700), *recs[0].Volume, "thousands separators must be stripped")
	assert.Equal(t, 187.15, *recs[0].Open)
}

func TestFetchRangeFiltersToRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nasdaqCSV))
	}))
	defer srv.Close()

	nc := newTestClient(srv.URL)
	recs, err := nc.FetchRange(context.Background(), "AAPL",
		series.MustDate("2024-01-03"), series.MustDate("2024-01-04"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, series.MustDate("2024-01-03"), recs[0].Date)
	assert.Equal(t, series.MustDate("2024-01-04"), recs[1].Date)
}

func TestFetchRangeSkipsMalformedRows(t *testing.T) {
	csv := `Date,Close/Last,Volume,Open,High,Low
01/04/2024,$181.91,100,$182.15,$183.09,$180.88
not-a-date,$1.00,100,$1.00,$1.00,$1.00
01/03/2024,N/A,100,$184.22,$185.88,$183.43
01/02/2024,$185.64,garbage,$187.15,$188.44,$183.89
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	nc := newTestClient(srv.URL)
	recs, err := nc.FetchRange(context.Background(), "AAPL",
		series.MustDate("2024-01-01"), series.MustDate("2024-01-31"))
	require.NoError(t, err, "bad rows are skipped, never fatal")
	require.Len(t, recs, 2)
	assert.Equal(t, series.MustDate("2024-01-02"), recs[0].Date)
	assert.Nil(t, recs[0].Volume, "unparseable volume stays nil")
	assert.Equal(t, series.MustDate("2024-01-04"), recs[1].Date)
}

func TestFetchRangeBadSymbol(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	nc := newTestClient(srv.URL)
	_, err := nc.FetchRange(context.Background(), "NOSUCH",
		series.MustDate("2024-01-01"), series.MustDate("2024-01-31"))
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "bad_symbol", fe.Type)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "404 must not be retried")
}

func TestFetchRangeRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			http.Error(w, "upstream sad", http.StatusBadGateway)
			return
		}
		w.Write([]byte(nasdaqCSV))
	}))
	defer srv.Close()

	nc := newTestClient(srv.URL)
	recs, err := nc.FetchRange(context.Background(), "AAPL",
		series.MustDate("2024-01-02"), series.MustDate("2024-01-05"))
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchRangeDailyBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nasdaqCSV))
	}))
	defer srv.Close()

	nc := NewNasdaqClient(NasdaqConfig{BaseURL: srv.URL, RateLimitPerMinute: 6000, DailyCap: 1})
	start, end := series.MustDate("2024-01-02"), series.MustDate("2024-01-05")

	_, err := nc.FetchRange(context.Background(), "AAPL", start, end)
	require.NoError(t, err)

	_, err = nc.FetchRange(context.Background(), "AAPL", start, end)
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "rate_limit", fe.Type)

	used, total, _ := nc.BudgetStatus()
	assert.Equal(t, 1, used)
	assert.Equal(t, 1, total)
}

func TestFetchRangeInputValidation(t *testing.T) {
	nc := newTestClient("http://127.0.0.1:0")

	_, err := nc.FetchRange(context.Background(), "  ",
		series.MustDate("2024-01-01"), series.MustDate("2024-01-02"))
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "bad_symbol", fe.Type)

	_, err = nc.FetchRange(context.Background(), "AAPL",
		series.MustDate("2024-02-01"), series.MustDate("2024-01-01"))
	require.Error(t, err)
}

func TestPeriodFor(t *testing.T) {
	today := series.Today()
	assert.Equal(t, "y1", periodFor(today.AddYears(-1).Add(30), today))
	assert.Equal(t, "y5", periodFor(today.AddYears(-3), today))
	assert.Equal(t, "y10", periodFor(today.AddYears(-8), today))
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$123.45", 123.45, true},
		{" $1,234.50 ", 1234.50, true},
		{"99", 99, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"$abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseMoney(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseMoney(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
