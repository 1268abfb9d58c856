package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kellyfolio/portfolio-engine/internal/stats"
)

// StockSettings is the per-symbol allocation snapshot the UI consumes.
type StockSettings struct {
	Volatility     float64 `json:"volatility"`
	ExpectedReturn float64 `json:"expectedReturn"`
	Kelly          float64 `json:"kelly"`
	Synthetic      bool    `json:"synthetic"`
	Updated        string  `json:"updated"`
}

// Settings is the on-disk shape of stock_settings.json.
type Settings struct {
	Stocks map[string]StockSettings `json:"stocks"`
}

// SettingsFile owns the settings JSON file. Updates are read-modify-write
// under a lock with an atomic rename, last write wins.
type SettingsFile struct {
	mu   sync.Mutex
	path string
}

func NewSettingsFile(path string) *SettingsFile {
	return &SettingsFile{path: path}
}

// Load reads the settings file; a missing file yields empty settings.
func (sf *SettingsFile) Load() (Settings, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.load()
}

func (sf *SettingsFile) load() (Settings, error) {
	s := Settings{Stocks: map[string]StockSettings{}}
	data, err := os.ReadFile(sf.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if s.Stocks == nil {
		s.Stocks = map[string]StockSettings{}
	}
	return s, nil
}

// Update writes one symbol's metrics and Kelly fraction into the file.
func (sf *SettingsFile) Update(symbol string, m stats.Metrics, kellyFraction float64) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	s, err := sf.load()
	if err != nil {
		return err
	}
	s.Stocks[strings.ToUpper(symbol)] = StockSettings{
		Volatility:     m.Volatility,
		ExpectedReturn: m.ExpectedReturn,
		Kelly:          kellyFraction,
		Synthetic:      m.Synthetic,
		Updated:        time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmp := sf.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, sf.path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
