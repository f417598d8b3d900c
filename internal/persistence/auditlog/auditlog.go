// Package auditlog persists the placement pipeline's decision trail as
// daily-rotated, zstd-compressed JSONL files. One line per evaluated tile
// keeps the files greppable after decompression.
package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"spawnforge.ai/internal/world"
)

type jsonlWriter struct {
	dir    string
	prefix string

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func (w *jsonlWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlWriter) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDay = day
	return nil
}

func (w *jsonlWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlWriter) closeLocked() error {
	var errEnc error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		errEnc = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return errEnc
}

// DecisionRecord is one line of the decision trail.
type DecisionRecord struct {
	Time    time.Time `json:"time"`
	TileX   int       `json:"tx"`
	TileZ   int       `json:"tz"`
	Outcome string    `json:"outcome"`
	EntryID string    `json:"entry_id,omitempty"`
	Reasons []string  `json:"reasons,omitempty"`
}

// PlacementRecord is one line of the placement trail.
type PlacementRecord struct {
	Time      time.Time       `json:"time"`
	TileX     int             `json:"tx"`
	TileZ     int             `json:"tz"`
	EntryID   string          `json:"entry_id"`
	Placement world.Placement `json:"placement"`
}

// Log is the pipeline's audit sink. Safe for concurrent use.
type Log struct {
	decisions  *jsonlWriter
	placements *jsonlWriter
}

func Open(baseDir string) *Log {
	return &Log{
		decisions:  &jsonlWriter{dir: filepath.Join(baseDir, "audit"), prefix: "decisions"},
		placements: &jsonlWriter{dir: filepath.Join(baseDir, "audit"), prefix: "placements"},
	}
}

func (l *Log) WriteDecision(tx, tz int, outcome, entryID string, reasons []string) error {
	return l.decisions.write(DecisionRecord{
		Time:    time.Now().UTC(),
		TileX:   tx,
		TileZ:   tz,
		Outcome: outcome,
		EntryID: entryID,
		Reasons: reasons,
	})
}

// PlacementDone implements the executor's sink.
func (l *Log) PlacementDone(tx, tz int, entryID string, p world.Placement) {
	_ = l.placements.write(PlacementRecord{
		Time:      time.Now().UTC(),
		TileX:     tx,
		TileZ:     tz,
		EntryID:   entryID,
		Placement: p,
	})
}

func (l *Log) Close() error {
	err1 := l.decisions.close()
	err2 := l.placements.close()
	if err1 != nil {
		return err1
	}
	return err2
}
