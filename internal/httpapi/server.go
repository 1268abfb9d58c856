// Package httpapi is the thin JSON boundary over the engine. Handlers
// only decode parameters, call the engine and encode results; everything
// with invariants lives below.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kellyfolio/portfolio-engine/internal/engine"
	"github.com/kellyfolio/portfolio-engine/internal/observ"
	"github.com/kellyfolio/portfolio-engine/internal/series"
	"github.com/kellyfolio/portfolio-engine/internal/stats"
)

type Server struct {
	engine  *engine.Engine
	symbols []string
}

func NewServer(eng *engine.Engine, symbols []string) *Server {
	return &Server{engine: eng, symbols: symbols}
}

// Handler returns the full route table, observability endpoints included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/correlation", s.handleCorrelation)
	mux.HandleFunc("GET /api/allocations", s.handleAllocations)
	mux.HandleFunc("POST /api/coverage", s.handleCoverage)
	mux.Handle("GET /metrics", observ.Handler())
	mux.Handle("GET /healthz", observ.Health())
	return mux
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeJSON(w, http.StatusOK, s.engine.ComputeAllMetrics(r.Context(), s.symbols))
		return
	}
	m, err := s.engine.ComputeMetrics(symbol)
	if err != nil {
		var insufficient *stats.InsufficientDataError
		if errors.As(err, &insufficient) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	symbols := s.symbols
	if q := r.URL.Query().Get("symbols"); q != "" {
		symbols = splitSymbols(q)
	}
	result, err := s.engine.ComputeCorrelation(symbols)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	symbols := s.symbols
	if q := r.URL.Query().Get("symbols"); q != "" {
		symbols = splitSymbols(q)
	}
	allocations, err := s.engine.Allocations(r.Context(), symbols)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, allocations)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Years  int    `json:"years"`
		Start  string `json:"start"`
		End    string `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	var start, end series.Date
	var err error
	switch {
	case req.Start != "" && req.End != "":
		if start, err = series.ParseDate(req.Start); err == nil {
			end, err = series.ParseDate(req.End)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	default:
		years := req.Years
		if years <= 0 {
			years = 5
		}
		end = series.Today()
		start = end.AddYears(-years)
	}

	report, err := s.engine.EnsureCoverage(r.Context(), req.Symbol, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// Per-gap failures are part of the report, not an HTTP error.
	writeJSON(w, http.StatusOK, report)
}

func splitSymbols(q string) []string {
	parts := strings.Split(q, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error(), "code": strconv.Itoa(code)})
}
