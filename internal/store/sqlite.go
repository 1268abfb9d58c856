package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kellyfolio/portfolio-engine/internal/series"
)

// SQLiteStore persists price records in a single SQLite database, one row
// per (symbol, date). Saves upsert so a merge result simply overwrites.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent readers while the refresh job writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_records (
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL,
			adj_close REAL,
			volume    INTEGER,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_symbol ON price_records(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(symbol string) (series.Series, error) {
	rows, err := s.db.Query(`SELECT date, open, high, low, close, adj_close, volume
		FROM price_records WHERE symbol = ? ORDER BY date ASC`, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("query series %s: %w", symbol, err)
	}
	defer rows.Close()

	var out series.Series
	for rows.Next() {
		var (
			dateStr                  string
			open, high, low, cl, adj sql.NullFloat64
			volume                   sql.NullInt64
		)
		if err := rows.Scan(&dateStr, &open, &high, &low, &cl, &adj, &volume); err != nil {
			return nil, fmt.Errorf("scan series %s: %w", symbol, err)
		}
		date, err := series.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("stored date for %s: %w", symbol, err)
		}
		rec := series.Record{Date: date}
		if open.Valid {
			rec.Open = &open.Float64
		}
		if high.Valid {
			rec.High = &high.Float64
		}
		if low.Valid {
			rec.Low = &low.Float64
		}
		if cl.Valid {
			rec.Close = &cl.Float64
		}
		if adj.Valid {
			rec.AdjClose = &adj.Float64
		}
		if volume.Valid {
			rec.Volume = &volume.Int64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(symbol string, ser series.Series) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save %s: %w", symbol, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO price_records
		(symbol, date, open, high, low, close, adj_close, volume)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, adj_close=excluded.adj_close, volume=excluded.volume`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare save %s: %w", symbol, err)
	}
	defer stmt.Close()

	sym := strings.ToUpper(symbol)
	for _, r := range ser {
		if _, err := stmt.Exec(sym, r.Date.String(),
			nullFloat(r.Open), nullFloat(r.High), nullFloat(r.Low),
			nullFloat(r.Close), nullFloat(r.AdjClose), nullInt(r.Volume)); err != nil {
			tx.Rollback()
			return fmt.Errorf("save record %s %s: %w", symbol, r.Date, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM price_records ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
