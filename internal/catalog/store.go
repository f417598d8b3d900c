package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists the most recently fetched catalog document per catalog id,
// so a session can come up (and keep spawning already-cached structures)
// without reaching the remote service.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	schema := `CREATE TABLE IF NOT EXISTS catalog_snapshot (
		catalog_id TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		raw_json TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored snapshot for the catalog's id.
func (s *Store) Save(c *Catalog, raw []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO catalog_snapshot(catalog_id,digest,raw_json,fetched_at) VALUES(?,?,?,?)`,
		c.ID, c.Digest, string(raw), now,
	)
	if err != nil {
		return fmt.Errorf("save catalog snapshot: %w", err)
	}
	return nil
}

// Load returns the stored raw document for the catalog id, or ok=false if
// none has been saved.
func (s *Store) Load(catalogID string) (raw []byte, ok bool, err error) {
	var doc string
	err = s.db.QueryRow(
		`SELECT raw_json FROM catalog_snapshot WHERE catalog_id = ?`, catalogID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load catalog snapshot: %w", err)
	}
	return []byte(doc), true, nil
}
