package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kellyfolio/portfolio-engine/internal/observ"
	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// NasdaqConfig holds configuration for the NASDAQ historical-data client.
type NasdaqConfig struct {
	BaseURL            string
	RateLimitPerMinute int
	DailyCap           int
	TimeoutSeconds     int
	MaxRetries         int
	BackoffBaseMs      int
	UserAgent          string
}

// NasdaqClient downloads daily price history CSVs from nasdaq.com.
// NASDAQ serves fixed lookback windows (1, 5 or 10 years); the client
// requests the smallest window covering the range and filters client-side.
type NasdaqClient struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	config      NasdaqConfig

	// Budget tracking
	mu              sync.Mutex
	requestsToday   int
	budgetResetTime time.Time
}

// NewNasdaqClient applies defaults for zero-valued config fields.
func NewNasdaqClient(config NasdaqConfig) *NasdaqClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.nasdaq.com"
	}
	if config.RateLimitPerMinute <= 0 {
		config.RateLimitPerMinute = 30
	}
	if config.DailyCap <= 0 {
		config.DailyCap = 500
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 15
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBaseMs <= 0 {
		config.BackoffBaseMs = 500
	}
	if config.UserAgent == "" {
		// NASDAQ rejects requests without a browser user agent.
		config.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	return &NasdaqClient{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		rateLimiter:     rate.NewLimiter(rate.Limit(float64(config.RateLimitPerMinute)/60), 1),
		config:          config,
		budgetResetTime: time.Now().Add(24 * time.Hour),
	}
}

// FetchRange downloads and parses history for the inclusive date range.
func (nc *NasdaqClient) FetchRange(ctx context.Context, symbol string, start, end series.Date) ([]series.Record, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, NewBadSymbolError(symbol, "empty symbol")
	}
	if start.After(end) {
		return nil, NewProviderError(symbol, fmt.Sprintf("inverted range %s..%s", start, end), nil)
	}

	if !nc.underBudget() {
		return nil, NewRateLimitError(symbol, "daily request budget exceeded")
	}
	if err := nc.rateLimiter.Wait(ctx); err != nil {
		return nil, NewNetworkError(symbol, "rate limit wait cancelled", err)
	}
	nc.countRequest()
	observ.IncCounter("fetch_requests_total", map[string]string{"provider": "nasdaq"})

	url := fmt.Sprintf("%s/api/v1/historical/%s/stocks/%s",
		nc.baseURL, strings.ToLower(symbol), periodFor(start, end))

	var lastErr error
	for attempt := 0; attempt < nc.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(nc.config.BackoffBaseMs*(1<<attempt)) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, NewNetworkError(symbol, "fetch cancelled", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, NewNetworkError(symbol, "failed to create request", err)
		}
		req.Header.Set("User-Agent", nc.userAgent)

		resp, err := nc.httpClient.Do(req)
		if err != nil {
			lastErr = NewNetworkError(symbol, "request failed", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = NewRateLimitError(symbol, "provider rate limit exceeded")
			continue
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, NewBadSymbolError(symbol, "no history for symbol")
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = NewProviderError(symbol, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)), nil)
			continue
		}

		records, err := parseHistoryCSV(resp.Body, symbol, start, end)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return records, nil
	}

	observ.IncCounter("fetch_errors_total", map[string]string{"provider": "nasdaq"})
	return nil, lastErr
}

// periodFor picks the smallest NASDAQ lookback window covering the range.
func periodFor(start, end series.Date) string {
	today := series.Today()
	switch {
	case !start.Before(today.AddYears(-1)):
		return "y1"
	case !start.Before(today.AddYears(-5)):
		return "y5"
	default:
		return "y10"
	}
}

// parseHistoryCSV reads the NASDAQ download format: a header of
// Date, Close/Last, Volume, Open, High, Low with prices like "$123.45".
// Unparseable rows are skipped; the result is ascending and clipped to
// [start, end]. NASDAQ does not publish adjusted closes, so AdjClose
// mirrors Close.
func parseHistoryCSV(body io.Reader, symbol string, start, end series.Date) ([]series.Record, error) {
	reader := csv.NewReader(body)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, NewProviderError(symbol, "empty or unreadable CSV", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateIdx, ok := col["date"]
	if !ok {
		return nil, NewProviderError(symbol, "CSV missing Date column", nil)
	}
	closeIdx, ok := col["close/last"]
	if !ok {
		closeIdx, ok = col["close"]
	}
	if !ok {
		return nil, NewProviderError(symbol, "CSV missing Close column", nil)
	}

	var records []series.Record
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		rec, ok := parseHistoryRow(row, col, dateIdx, closeIdx)
		if !ok {
			skipped++
			continue
		}
		if rec.Date.Before(start) || rec.Date.After(end) {
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		observ.IncCounterBy("fetch_rows_skipped_total", map[string]string{"provider": "nasdaq"}, int64(skipped))
		observ.Log("fetch_rows_skipped", map[string]any{"symbol": symbol, "skipped": skipped})
	}

	// NASDAQ serves newest-first; callers expect oldest-first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func parseHistoryRow(row []string, col map[string]int, dateIdx, closeIdx int) (series.Record, bool) {
	date, ok := parseHistoryDate(field(row, dateIdx))
	if !ok {
		return series.Record{}, false
	}
	closePrice, ok := parseMoney(field(row, closeIdx))
	if !ok {
		return series.Record{}, false
	}
	rec := series.Record{Date: date, Close: &closePrice}
	adj := closePrice
	rec.AdjClose = &adj

	if i, ok := col["open"]; ok {
		if v, ok := parseMoney(field(row, i)); ok {
			rec.Open = &v
		}
	}
	if i, ok := col["high"]; ok {
		if v, ok := parseMoney(field(row, i)); ok {
			rec.High = &v
		}
	}
	if i, ok := col["low"]; ok {
		if v, ok := parseMoney(field(row, i)); ok {
			rec.Low = &v
		}
	}
	if i, ok := col["volume"]; ok {
		raw := strings.ReplaceAll(field(row, i), ",", "")
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			rec.Volume = &v
		}
	}
	return rec, true
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseHistoryDate(s string) (series.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"01/02/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return series.NewDate(t.Date()), true
		}
	}
	return series.Date{}, false
}

func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (nc *NasdaqClient) underBudget() bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if time.Now().After(nc.budgetResetTime) {
		nc.requestsToday = 0
		nc.budgetResetTime = time.Now().Add(24 * time.Hour)
	}
	return nc.requestsToday < nc.config.DailyCap
}

func (nc *NasdaqClient) countRequest() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.requestsToday++
	observ.SetGauge("provider_budget_used", float64(nc.requestsToday), map[string]string{"provider": "nasdaq"})
	observ.SetGauge("provider_budget_total", float64(nc.config.DailyCap), map[string]string{"provider": "nasdaq"})
}

// BudgetStatus returns current daily budget usage.
func (nc *NasdaqClient) BudgetStatus() (used, total int, resetTime time.Time) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.requestsToday, nc.config.DailyCap, nc.budgetResetTime
}
