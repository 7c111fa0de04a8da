package sessionlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRecord is one row in the session index.
type SessionRecord struct {
	ID           string
	Dir          string
	StartedAt    time.Time
	CopedantName string
	Frames       uint64
	AudioSamples uint64
}

// Index is the sqlite database listing every recorded session.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the session index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open index: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			copedant TEXT,
			frames INTEGER NOT NULL DEFAULT 0,
			audio_samples INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionlog: init index: %w", err)
	}
	return &Index{db: db}, nil
}

// Add inserts or replaces a session record.
func (ix *Index) Add(rec SessionRecord) error {
	_, err := ix.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, dir, started_at, copedant, frames, audio_samples)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Dir, rec.StartedAt.UTC(), rec.CopedantName, rec.Frames, rec.AudioSamples,
	)
	if err != nil {
		return fmt.Errorf("sessionlog: index add: %w", err)
	}
	return nil
}

// Sessions lists recorded sessions, most recent first.
func (ix *Index) Sessions() ([]SessionRecord, error) {
	rows, err := ix.db.Query(
		`SELECT id, dir, started_at, copedant, frames, audio_samples
		 FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: index query: %w", err)
	}
	defer rows.Close()

	var recs []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Dir, &rec.StartedAt, &rec.CopedantName, &rec.Frames, &rec.AudioSamples); err != nil {
			return nil, fmt.Errorf("sessionlog: index scan: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database.
func (ix *Index) Close() error { return ix.db.Close() }
