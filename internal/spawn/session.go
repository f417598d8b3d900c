package spawn

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/content"
	"spawnforge.ai/internal/persistence/auditlog"
	"spawnforge.ai/internal/protocol"
	"spawnforge.ai/internal/tuning"
	"spawnforge.ai/internal/world"
)

// CatalogSource refreshes the catalog document from the content service.
// A knownDigest matching the current document yields a nil body.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, catalogID, knownDigest string) ([]byte, string, error)
}

type catalogUpdate struct {
	cat *catalog.Catalog
	raw []byte
}

// Session wires the whole pipeline for one loaded world and drives it from
// a single tick goroutine. Everything that mutates the world or the
// catalog's runtime counters happens on that goroutine.
type Session struct {
	w       world.World
	tun     tuning.Tuning
	cache   *content.Cache
	dl      *content.Downloader
	queue   *Queue
	tracker *Occupancy
	gate    *Gate
	eval    *Evaluator
	audit   *auditlog.Log
	source  CatalogSource
	store   *catalog.Store
	onTick  func(tick int64)
	log     *zap.Logger

	tileLoaded chan world.TileKey
	unload     chan struct{}
	newCatalog chan catalogUpdate

	refreshing atomic.Bool
	placements atomic.Int64

	// mirrors for the status feed, written on the tick goroutine.
	statCatalogID     atomic.Pointer[string]
	statCatalogDigest atomic.Pointer[string]
}

// Options carries the optional collaborators; nil fields disable the
// corresponding feature.
type Options struct {
	Audit  *auditlog.Log
	Source CatalogSource
	Store  *catalog.Store

	// OnTick runs on the tick goroutine before the queue drains. World
	// drivers (exploration, agent movement) hook in here so the world
	// stays single-goroutine.
	OnTick func(tick int64)
}

func NewSession(w world.World, cat *catalog.Catalog, cache *content.Cache, dl *content.Downloader, tun tuning.Tuning, opts Options, log *zap.Logger) *Session {
	s := &Session{
		w:          w,
		tun:        tun,
		cache:      cache,
		dl:         dl,
		queue:      NewQueue(tun.QueueCapacity),
		tracker:    NewOccupancy(),
		audit:      opts.Audit,
		source:     opts.Source,
		store:      opts.Store,
		onTick:     opts.OnTick,
		log:        log,
		tileLoaded: make(chan world.TileKey, 1024),
		unload:     make(chan struct{}, 1),
		newCatalog: make(chan catalogUpdate, 1),
	}
	s.gate = NewGate(w, s.queue, tun.AgentBufferTiles, log)
	exec := NewExecutor(w, cache, s, tun.Language, log)
	s.eval = NewEvaluator(w, cat, cache, s.tracker, exec, func(id, hash string) {
		s.dl.FetchOne(context.Background(), id, hash)
	}, log)
	s.rememberCatalog(cat)
	return s
}

// OnTileLoaded is the world-hosting layer's discovery callback. Safe to
// call from any goroutine; events beyond the buffer are dropped unmarked
// and may be re-delivered later.
func (s *Session) OnTileLoaded(tx, tz int) {
	select {
	case s.tileLoaded <- world.PackTile(tx, tz):
	default:
		s.log.Warn("tile discovery buffer full", zap.Int("tx", tx), zap.Int("tz", tz))
	}
}

// OnWorldUnload drops all pending work and forgets every claim.
func (s *Session) OnWorldUnload() {
	select {
	case s.unload <- struct{}{}:
	default:
	}
}

// PlacementDone implements the executor sink: counts for the status feed
// and forwards to the audit log.
func (s *Session) PlacementDone(tx, tz int, entryID string, p world.Placement) {
	s.placements.Add(1)
	if s.audit != nil {
		s.audit.PlacementDone(tx, tz, entryID, p)
	}
}

// Run drives the pipeline until the context is canceled. The bulk prefetch
// is expected to have been started (or skipped via MarkReady) already;
// evaluation activates when it reports done.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(s.tun.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	refresh := time.NewTicker(time.Duration(s.tun.CatalogRefreshMinutes) * time.Minute)
	defer refresh.Stop()

	if s.dl.Ready() {
		s.gate.SetActive(true)
	}

	var tick int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case k := <-s.tileLoaded:
			tx, tz := k.Unpack()
			s.gate.OnTileLoaded(tx, tz)

		case ev := <-s.dl.Events():
			s.handleDownloadEvent(ev)

		case <-s.unload:
			s.queue.Clear()
			s.tracker.Reset()
			s.gate.SetActive(false)
			s.log.Info("world unloaded, pending evaluation dropped")

		case upd := <-s.newCatalog:
			s.applyCatalog(upd)

		case <-refresh.C:
			s.startRefresh(ctx)

		case <-ticker.C:
			tick++
			if s.onTick != nil {
				s.onTick(tick)
			}
			s.drainDiscoveries()
			for _, k := range s.queue.PopN(s.tun.TilesPerTick) {
				d := s.eval.EvaluateTile(k)
				s.recordDecision(d)
			}
		}
	}
}

// drainDiscoveries flushes tile-load events produced during OnTick so they
// reach the gate on the same tick.
func (s *Session) drainDiscoveries() {
	for {
		select {
		case k := <-s.tileLoaded:
			tx, tz := k.Unpack()
			s.gate.OnTileLoaded(tx, tz)
		default:
			return
		}
	}
}

func (s *Session) handleDownloadEvent(ev content.Event) {
	switch ev.Kind {
	case content.EventDone:
		s.gate.SetActive(true)
		s.log.Info("content prefetch complete, evaluation active")
	case content.EventResult:
		cat := s.eval.Catalog()
		i := cat.EntryByID(ev.ID)
		if i < 0 {
			return
		}
		if ev.Err != nil {
			cat.Entries[i].DownloadFailures++
			return
		}
		cat.Entries[i].DownloadFailures = 0
	}
}

func (s *Session) recordDecision(d Decision) {
	tx, tz := d.Tile.Unpack()
	if s.audit != nil {
		if err := s.audit.WriteDecision(tx, tz, d.Outcome.String(), d.EntryID, d.Reasons); err != nil {
			s.log.Warn("audit write failed", zap.Error(err))
		}
	}
	s.log.Debug("tile evaluated",
		zap.Int("tx", tx), zap.Int("tz", tz),
		zap.Stringer("outcome", d.Outcome),
		zap.String("entry", d.EntryID))
}

// startRefresh fetches the catalog document off the tick goroutine and
// hands the decoded result back over newCatalog. One refresh in flight at
// a time.
func (s *Session) startRefresh(ctx context.Context) {
	if s.source == nil || !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	cat := s.eval.Catalog()
	id, known := cat.ID, cat.Digest
	go func() {
		defer s.refreshing.Store(false)
		raw, digest, err := s.source.FetchCatalog(ctx, id, known)
		if err != nil {
			s.log.Warn("catalog refresh failed", zap.Error(err))
			return
		}
		if raw == nil {
			s.log.Debug("catalog unchanged", zap.String("digest", digest))
			return
		}
		next, err := catalog.Decode(raw)
		if err != nil {
			s.log.Warn("refreshed catalog rejected", zap.Error(err))
			return
		}
		select {
		case s.newCatalog <- catalogUpdate{cat: next, raw: raw}:
		case <-ctx.Done():
		}
	}()
}

// applyCatalog swaps the active catalog, invalidates cache entries whose
// hashes the new catalog disowns, and persists the snapshot.
func (s *Session) applyCatalog(upd catalogUpdate) {
	old := s.eval.Catalog()

	// Carry spawn counts across the swap; budgets describe the world, not
	// the document revision.
	for i := range upd.cat.Entries {
		if j := old.EntryByID(upd.cat.Entries[i].ID); j >= 0 {
			upd.cat.Entries[i].SpawnCount = old.Entries[j].SpawnCount
		}
	}
	s.eval.SetCatalog(upd.cat)
	s.rememberCatalog(upd.cat)

	removed := s.cache.Invalidate(upd.cat.ExpectedHashes())
	if len(removed) > 0 {
		s.log.Info("cache invalidated by catalog refresh",
			zap.Int("removed", len(removed)), zap.Strings("ids", removed))
	}
	if s.store != nil {
		if err := s.store.Save(upd.cat, upd.raw); err != nil {
			s.log.Warn("catalog snapshot save failed", zap.Error(err))
		}
	}
	s.log.Info("catalog refreshed",
		zap.String("id", upd.cat.ID),
		zap.Int64("version", upd.cat.Version),
		zap.String("digest", upd.cat.Digest))
}

func (s *Session) rememberCatalog(cat *catalog.Catalog) {
	id, digest := cat.ID, cat.Digest
	s.statCatalogID.Store(&id)
	s.statCatalogDigest.Store(&digest)
}

// Status implements the status feed source. Safe from any goroutine.
func (s *Session) Status() protocol.StatusMsg {
	done, total := s.dl.Progress()
	msg := protocol.StatusMsg{
		Ready:           s.dl.Ready(),
		DownloadsTotal:  total,
		DownloadsDone:   done,
		PayloadsCached:  s.cache.Len(),
		QueueDepth:      s.queue.Depth(),
		TilesClaimed:    s.tracker.Len(),
		PlacementsTotal: int(s.placements.Load()),
	}
	if p := s.statCatalogID.Load(); p != nil {
		msg.CatalogID = *p
	}
	if p := s.statCatalogDigest.Load(); p != nil {
		msg.CatalogDigest = *p
	}
	return msg
}
