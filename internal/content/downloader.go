package content

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
)

// Fetcher fetches one raw payload document from the remote content service.
type Fetcher interface {
	FetchPayload(ctx context.Context, id string) ([]byte, error)
}

type EventKind int

const (
	// EventResult reports one finished fetch (Err set on failure).
	EventResult EventKind = iota + 1
	// EventDone reports bulk-prefetch completion; emitted exactly once.
	EventDone
)

type Event struct {
	Kind EventKind
	ID   string
	Err  error
}

// Downloader prefetches uncached payloads one at a time. The remote content
// service serializes a single caller, so there is exactly one fetch
// goroutine; it advances on both success and failure. Results are handed
// back over Events so the tick goroutine owns every world-visible effect.
type Downloader struct {
	cache   *Cache
	fetcher Fetcher
	log     *zap.Logger

	events chan Event

	total atomic.Int64
	done  atomic.Int64
	ready atomic.Bool

	completed atomic.Bool
}

func NewDownloader(cache *Cache, fetcher Fetcher, log *zap.Logger) *Downloader {
	return &Downloader{
		cache:   cache,
		fetcher: fetcher,
		log:     log,
		events:  make(chan Event, 256),
	}
}

func (d *Downloader) Events() <-chan Event { return d.events }

// Progress reports finished/total for the bulk prefetch.
func (d *Downloader) Progress() (done, total int) {
	return int(d.done.Load()), int(d.total.Load())
}

// Ready reports whether the bulk prefetch has completed (successfully or
// not) or the session was marked ready without downloading.
func (d *Downloader) Ready() bool { return d.ready.Load() }

// Start launches the sequential bulk prefetch of every identifier in
// expected that is not already cached. A second call is a no-op.
func (d *Downloader) Start(ctx context.Context, expected map[string]string) {
	if d.completed.Load() {
		return
	}
	ids := make([]string, 0, len(expected))
	for id := range expected {
		if !d.cache.Contains(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	d.total.Store(int64(len(ids)))
	d.done.Store(0)
	if len(ids) == 0 {
		d.finish()
		return
	}

	go func() {
		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			if !d.cache.MarkDownloading(id) {
				// Already in flight via an on-demand fetch; count it and
				// move on.
				d.done.Add(1)
				continue
			}
			err := d.fetchInto(ctx, id, expected[id])
			d.cache.ClearDownloading(id)
			d.done.Add(1)
			d.events <- Event{Kind: EventResult, ID: id, Err: err}
		}
		d.finish()
	}()
}

// MarkReady skips downloading entirely: used when restoring a session whose
// content was all fetched previously. Any miss after this point is served by
// an on-demand fetch.
func (d *Downloader) MarkReady() {
	d.finish()
}

// FetchOne starts a background fetch for a single identifier. Returns false
// without fetching if one is already in flight.
func (d *Downloader) FetchOne(ctx context.Context, id, expectedHash string) bool {
	if !d.cache.MarkDownloading(id) {
		return false
	}
	go func() {
		err := d.fetchInto(ctx, id, expectedHash)
		d.cache.ClearDownloading(id)
		d.events <- Event{Kind: EventResult, ID: id, Err: err}
	}()
	return true
}

func (d *Downloader) fetchInto(ctx context.Context, id, expectedHash string) error {
	raw, err := d.fetcher.FetchPayload(ctx, id)
	if err != nil {
		d.log.Warn("payload fetch failed", zap.String("id", id), zap.Error(err))
		return err
	}
	hash := catalog.HashBytes(raw)
	if hash != expectedHash {
		d.log.Warn("payload hash mismatch",
			zap.String("id", id), zap.String("got", hash), zap.String("want", expectedHash))
		return fmt.Errorf("payload %s: hash mismatch", id)
	}
	p, err := catalog.DecodePayload(raw)
	if err != nil {
		d.log.Warn("payload decode failed", zap.String("id", id), zap.Error(err))
		return err
	}
	d.cache.Put(id, raw, p, hash)
	return nil
}

func (d *Downloader) finish() {
	if d.completed.CompareAndSwap(false, true) {
		d.ready.Store(true)
		d.events <- Event{Kind: EventDone}
	}
}
