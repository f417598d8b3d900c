// Command spawnd runs the structure placement pipeline against the built-in
// demo world: it loads (or fetches) a catalog, prefetches payloads, explores
// the world in an outward spiral and places structures as tiles are
// discovered. Progress is observable on the local status feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/content"
	"spawnforge.ai/internal/persistence/auditlog"
	"spawnforge.ai/internal/remote"
	"spawnforge.ai/internal/spawn"
	"spawnforge.ai/internal/transport/status"
	"spawnforge.ai/internal/tuning"
	"spawnforge.ai/internal/world"
)

func main() {
	var (
		seed        = flag.Int64("seed", 1337, "world seed")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (empty: defaults)")
		catalogPath = flag.String("catalog", "", "local catalog json (used when -content_url is empty)")
		payloadDir  = flag.String("payloads", "", "local payload directory (<id>.json; used when -content_url is empty)")
		contentURL  = flag.String("content_url", "", "content service websocket url")
		exploreR    = flag.Int("explore_radius", 24, "tiles to explore around the origin")
		devLog      = flag.Bool("dev_log", false, "human-readable log output")
	)
	flag.Parse()

	logger := newLogger(*devLog)
	defer logger.Sync()

	tun := tuning.Defaults()
	if *tuningPath != "" {
		var err error
		if tun, err = tuning.Load(*tuningPath); err != nil {
			logger.Fatal("load tuning", zap.Error(err))
		}
	}
	if *contentURL != "" {
		tun.ContentURL = *contentURL
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal("data dir", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catStore, err := catalog.OpenStore(filepath.Join(*dataDir, "catalog.db"))
	if err != nil {
		logger.Fatal("open catalog store", zap.Error(err))
	}
	defer catStore.Close()

	var (
		cat    *catalog.Catalog
		source spawn.CatalogSource
		fetch  content.Fetcher
	)
	if tun.ContentURL != "" {
		client := remote.NewClient(tun.ContentURL, "spawnd", *seed, logger)
		if err := client.Connect(ctx); err != nil {
			logger.Fatal("content service", zap.Error(err))
		}
		defer client.Close()
		cat, err = fetchCatalog(ctx, client, catStore)
		if err != nil {
			logger.Fatal("fetch catalog", zap.Error(err))
		}
		source = client
		fetch = client
	} else {
		if *catalogPath == "" {
			logger.Fatal("either -content_url or -catalog is required")
		}
		raw, err := os.ReadFile(*catalogPath)
		if err != nil {
			logger.Fatal("read catalog", zap.Error(err))
		}
		if cat, err = catalog.Decode(raw); err != nil {
			logger.Fatal("decode catalog", zap.Error(err))
		}
		if err := catStore.Save(cat, raw); err != nil {
			logger.Warn("catalog snapshot save failed", zap.Error(err))
		}
		fetch = dirFetcher{dir: *payloadDir}
	}
	logger.Info("catalog loaded",
		zap.String("id", cat.ID),
		zap.Int64("version", cat.Version),
		zap.Int("entries", len(cat.Entries)),
		zap.String("digest", cat.Digest))

	cache := content.NewCache()
	disk, err := content.OpenDiskStore(filepath.Join(*dataDir, "content"), logger)
	if err != nil {
		logger.Fatal("open content store", zap.Error(err))
	}
	defer disk.Close()
	restored, err := disk.Load(cache, cat.ExpectedHashes())
	if err != nil {
		logger.Warn("content restore failed", zap.Error(err))
	} else if restored > 0 {
		logger.Info("payloads restored from disk", zap.Int("count", restored))
	}

	dl := content.NewDownloader(cache, fetch, logger)
	dl.Start(ctx, cat.ExpectedHashes())

	w := world.NewChunkWorld(world.Gen{Seed: *seed})
	audit := auditlog.Open(*dataDir)
	defer audit.Close()

	explorer := &spiralExplorer{w: w, radius: *exploreR}
	s := spawn.NewSession(w, cat, cache, dl, tun, spawn.Options{
		Audit:  audit,
		Source: source,
		Store:  catStore,
		OnTick: func(tick int64) { explorer.step(tick) },
	}, logger)
	w.SetTileListener(s.OnTileLoaded)

	go runStatusFeed(ctx, s, tun.StatusListen, logger)

	logger.Info("spawnd running",
		zap.Int64("seed", *seed),
		zap.String("status_listen", tun.StatusListen))
	err = s.Run(ctx)

	// Persist what we fetched before exiting.
	if serr := disk.Save(cache); serr != nil {
		logger.Warn("content save failed", zap.Error(serr))
	}
	summarize(w, logger)
	if err != nil && err != context.Canceled {
		logger.Fatal("session", zap.Error(err))
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	return l
}

// fetchCatalog pulls the catalog from the service, short-circuiting on the
// locally stored snapshot's digest.
func fetchCatalog(ctx context.Context, client *remote.Client, store *catalog.Store) (*catalog.Catalog, error) {
	id := client.Welcome().CatalogID
	known := ""
	localRaw, ok, err := store.Load(id)
	if err == nil && ok {
		if local, derr := catalog.Decode(localRaw); derr == nil {
			known = local.Digest
		}
	}
	raw, _, err := client.FetchCatalog(ctx, id, known)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		// Unchanged; the snapshot is current.
		return catalog.Decode(localRaw)
	}
	cat, err := catalog.Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := store.Save(cat, raw); err != nil {
		return nil, err
	}
	return cat, nil
}

// dirFetcher serves payloads from a local directory, for offline runs.
type dirFetcher struct {
	dir string
}

func (f dirFetcher) FetchPayload(ctx context.Context, id string) ([]byte, error) {
	if f.dir == "" {
		return nil, fmt.Errorf("no payload source configured")
	}
	return os.ReadFile(filepath.Join(f.dir, id+".json"))
}

// spiralExplorer loads one ring of tiles per tick, outward from the origin,
// and walks a couple of demo agents around the frontier.
type spiralExplorer struct {
	w      *world.ChunkWorld
	radius int
	ring   int
}

func (e *spiralExplorer) step(tick int64) {
	if e.ring > e.radius {
		return
	}
	r := e.ring
	for tx := -r; tx <= r; tx++ {
		for tz := -r; tz <= r; tz++ {
			if max(abs(tx), abs(tz)) == r {
				e.w.LoadTile(tx, tz)
			}
		}
	}
	e.ring++

	// Agents trail two rings behind the frontier.
	ar := r - 2
	if ar < 0 {
		ar = 0
	}
	e.w.SetAgents([]world.Vec3i{
		{X: ar * world.TileSize, Y: 20, Z: 0},
		{X: -ar * world.TileSize, Y: 20, Z: ar * world.TileSize},
	})
}

func runStatusFeed(ctx context.Context, s *spawn.Session, listen string, logger *zap.Logger) {
	if listen == "" {
		return
	}
	srv := status.NewServer(s, time.Second, logger)
	if err := srv.Run(ctx, listen); err != nil {
		logger.Warn("status feed stopped", zap.Error(err))
	}
}

func summarize(w *world.ChunkWorld, logger *zap.Logger) {
	placements := w.Placements()
	logger.Info("session summary",
		zap.Int("tiles_loaded", len(w.LoadedTileKeys())),
		zap.Int("placements", len(placements)))
	for _, p := range placements {
		logger.Info("placement",
			zap.String("entry", p.EntryID),
			zap.String("name", p.DisplayName),
			zap.Int("x", p.Box.Min.X), zap.Int("y", p.Box.Min.Y), zap.Int("z", p.Box.Min.Z),
			zap.Int("rotation", p.Rotation*90))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
