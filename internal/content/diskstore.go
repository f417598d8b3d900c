package content

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"spawnforge.ai/internal/catalog"
)

// DiskStore persists cache payloads across restarts: one zstd blob per
// entry keyed by content hash, plus an identifier→hash index in sqlite.
// Reload is hash-gated against the catalog's current expectations, which is
// the whole cache-invalidation mechanism: an upstream edit changes the
// hash, the stale blob is skipped, and the payload is re-fetched on demand.
type DiskStore struct {
	dir string
	db  *sql.DB
	log *zap.Logger
}

func OpenDiskStore(dir string, log *zap.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty cache dir")
	}
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "cache_index.db"))
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
	schema := `CREATE TABLE IF NOT EXISTS cache_index (
		id TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DiskStore{dir: dir, db: db, log: log}, nil
}

func (s *DiskStore) Close() error { return s.db.Close() }

func (s *DiskStore) blobPath(hash string) string {
	return filepath.Join(s.dir, "blobs", hash+".json.zst")
}

// Save serializes every cache entry: the index is replaced wholesale and a
// compressed blob is written per entry (skipped if the hash's blob already
// exists). Called on shutdown.
func (s *DiskStore) Save(c *Cache) error {
	entries := c.Snapshot()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM cache_index`); err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		if err := s.writeBlob(e); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO cache_index(id,hash,size,updated_at) VALUES(?,?,?,?)`,
			e.ID, e.Hash, len(e.Raw), now,
		); err != nil {
			return fmt.Errorf("cache index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	return nil
}

func (s *DiskStore) writeBlob(e Entry) error {
	path := s.blobPath(e.Hash)
	if _, err := os.Stat(path); err == nil {
		// Blobs are content-addressed; an existing one is already correct.
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := enc.Write(e.Raw); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *DiskStore) readBlob(hash string) ([]byte, error) {
	f, err := os.Open(s.blobPath(hash))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// Load restores entries whose persisted hash matches the catalog's current
// expectation. Mismatched or corrupt entries are dropped silently (they
// become cache misses); blobs no longer referenced by the catalog are
// pruned. Returns the number of entries restored.
func (s *DiskStore) Load(c *Cache, expected map[string]string) (int, error) {
	rows, err := s.db.Query(`SELECT id, hash FROM cache_index`)
	if err != nil {
		return 0, fmt.Errorf("cache index: %w", err)
	}
	type indexRow struct{ id, hash string }
	var index []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.id, &r.hash); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("cache index: %w", err)
		}
		index = append(index, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("cache index: %w", err)
	}

	loaded := 0
	keep := map[string]bool{}
	for _, r := range index {
		want, ok := expected[r.id]
		if !ok || want != r.hash {
			s.dropRow(r.id)
			continue
		}
		raw, err := s.readBlob(r.hash)
		if err != nil {
			s.log.Warn("cache blob unreadable", zap.String("id", r.id), zap.Error(err))
			s.dropRow(r.id)
			continue
		}
		if catalog.HashBytes(raw) != r.hash {
			s.log.Warn("cache blob corrupt", zap.String("id", r.id))
			s.dropRow(r.id)
			continue
		}
		p, err := catalog.DecodePayload(raw)
		if err != nil {
			s.log.Warn("cache blob undecodable", zap.String("id", r.id), zap.Error(err))
			s.dropRow(r.id)
			continue
		}
		c.Put(r.id, raw, p, r.hash)
		keep[r.hash] = true
		loaded++
	}

	s.pruneBlobs(keep)
	return loaded, nil
}

func (s *DiskStore) dropRow(id string) {
	if _, err := s.db.Exec(`DELETE FROM cache_index WHERE id = ?`, id); err != nil {
		s.log.Warn("cache index delete failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *DiskStore) pruneBlobs(keep map[string]bool) {
	dir := filepath.Join(s.dir, "blobs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json.zst") {
			continue
		}
		hash := strings.TrimSuffix(name, ".json.zst")
		if keep[hash] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			s.log.Warn("blob prune failed", zap.String("blob", name), zap.Error(err))
		}
	}
}
