// Package history persists ThinkingRecords in sqlite so aggregate stats
// survive restarts. The store implements thought.RecordSink and mirrors
// the orchestra's in-memory history one row per Think call.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// ErrNoHistory is returned when a read finds no recorded calls.
var ErrNoHistory = errors.New("no thinking history recorded")

// Store is a sqlite-backed archive of thinking records. Safe for
// concurrent use; sqlite serializes writers internally.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the archive at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS thinking_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	mode             TEXT    NOT NULL,
	strategy         TEXT    NOT NULL,
	models_queried   INTEGER NOT NULL,
	models_succeeded INTEGER NOT NULL,
	total_latency_ms REAL    NOT NULL,
	confidence       REAL    NOT NULL,
	agreement        REAL    NOT NULL,
	winner           TEXT,
	timestamp        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_timestamp ON thinking_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_records_mode ON thinking_records(mode);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// Append stores one record. Implements thought.RecordSink.
func (s *Store) Append(rec thought.ThinkingRecord) error {
	_, err := s.db.Exec(`
INSERT INTO thinking_records
	(mode, strategy, models_queried, models_succeeded, total_latency_ms, confidence, agreement, winner, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Mode, rec.Strategy, rec.ModelsQueried, rec.ModelsSucceeded,
		rec.TotalLatencyMs, rec.Confidence, rec.Agreement, rec.Winner,
		rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Recent returns the latest n records, oldest first. n <= 0 returns all.
func (s *Store) Recent(n int) ([]thought.ThinkingRecord, error) {
	query := `
SELECT mode, strategy, models_queried, models_succeeded, total_latency_ms, confidence, agreement, winner, timestamp
FROM thinking_records ORDER BY id DESC`
	args := []any{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var recs []thought.ThinkingRecord
	for rows.Next() {
		var rec thought.ThinkingRecord
		var winner sql.NullString
		var ts string
		if err := rows.Scan(&rec.Mode, &rec.Strategy, &rec.ModelsQueried, &rec.ModelsSucceeded,
			&rec.TotalLatencyMs, &rec.Confidence, &rec.Agreement, &winner, &ts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if winner.Valid {
			w := winner.String
			rec.Winner = &w
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	// Reverse to oldest-first for display.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// Stats aggregates every archived record. Returns ErrNoHistory when the
// archive is empty.
func (s *Store) Stats() (thought.Stats, error) {
	stats := thought.Stats{
		ByMode:     make(map[string]int),
		ByStrategy: make(map[string]int),
	}

	var queried, succeeded sql.NullInt64
	var avgConf, avgAgr, avgLat sql.NullFloat64
	err := s.db.QueryRow(`
SELECT COUNT(*), AVG(confidence), AVG(agreement), AVG(total_latency_ms),
	SUM(models_queried), SUM(models_succeeded)
FROM thinking_records`).
		Scan(&stats.TotalCalls, &avgConf, &avgAgr, &avgLat, &queried, &succeeded)
	if err != nil {
		return stats, fmt.Errorf("aggregate stats: %w", err)
	}
	if stats.TotalCalls == 0 {
		return stats, ErrNoHistory
	}
	stats.AvgConfidence = avgConf.Float64
	stats.AvgAgreement = avgAgr.Float64
	stats.AvgLatencyMs = avgLat.Float64
	if queried.Int64 > 0 {
		stats.SuccessRate = float64(succeeded.Int64) / float64(queried.Int64)
	}

	for col, target := range map[string]map[string]int{
		"mode":     stats.ByMode,
		"strategy": stats.ByStrategy,
	} {
		rows, err := s.db.Query("SELECT " + col + ", COUNT(*) FROM thinking_records GROUP BY " + col)
		if err != nil {
			return stats, fmt.Errorf("group by %s: %w", col, err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return stats, fmt.Errorf("scan %s group: %w", col, err)
			}
			target[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return stats, fmt.Errorf("iterate %s groups: %w", col, err)
		}
		rows.Close()
	}
	return stats, nil
}

// Count returns the number of archived records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM thinking_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Clear deletes every archived record and returns how many were removed.
func (s *Store) Clear() (int, error) {
	res, err := s.db.Exec("DELETE FROM thinking_records")
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Path returns the archive file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
