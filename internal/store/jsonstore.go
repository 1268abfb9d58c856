package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// JSONStore keeps one <SYMBOL>.json file per symbol under a data
// directory. Writes go through a temp file and an atomic rename.
type JSONStore struct {
	dir string
}

func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (js *JSONStore) path(symbol string) string {
	return filepath.Join(js.dir, strings.ToUpper(symbol)+".json")
}

func (js *JSONStore) Load(symbol string) (series.Series, error) {
	data, err := os.ReadFile(js.path(symbol))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read series %s: %w", symbol, err)
	}
	var s series.Series
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse series %s: %w", symbol, err)
	}
	return s, nil
}

func (js *JSONStore) Save(symbol string, s series.Series) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal series %s: %w", symbol, err)
	}
	tmp := js.path(symbol) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write series %s: %w", symbol, err)
	}
	if err := os.Rename(tmp, js.path(symbol)); err != nil {
		return fmt.Errorf("rename series %s: %w", symbol, err)
	}
	return nil
}

func (js *JSONStore) Symbols() ([]string, error) {
	entries, err := os.ReadDir(js.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(out)
	return out, nil
}
