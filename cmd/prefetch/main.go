// Command prefetch downloads a catalog's structure payloads into the local
// disk cache ahead of time, so a later spawnd run starts with a warm cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/content"
	"spawnforge.ai/internal/remote"
)

func main() {
	var (
		dataDir     = flag.String("data", "./data", "runtime data directory")
		contentURL  = flag.String("content_url", "", "content service websocket url")
		catalogPath = flag.String("catalog", "", "local catalog json (used when -content_url is empty)")
		payloadDir  = flag.String("payloads", "", "local payload directory (<id>.json)")
		devLog      = flag.Bool("dev_log", true, "human-readable log output")
	)
	flag.Parse()

	var (
		logger *zap.Logger
		err    error
	)
	if *devLog {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cat     *catalog.Catalog
		fetcher content.Fetcher
	)
	if *contentURL != "" {
		client := remote.NewClient(*contentURL, "prefetch", 0, logger)
		if err := client.Connect(ctx); err != nil {
			logger.Fatal("content service", zap.Error(err))
		}
		defer client.Close()
		raw, _, err := client.FetchCatalog(ctx, client.Welcome().CatalogID, "")
		if err != nil {
			logger.Fatal("fetch catalog", zap.Error(err))
		}
		if cat, err = catalog.Decode(raw); err != nil {
			logger.Fatal("decode catalog", zap.Error(err))
		}
		fetcher = client
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
		fetcher = dirFetcher{dir: *payloadDir}
	}

	cache := content.NewCache()
	disk, err := content.OpenDiskStore(filepath.Join(*dataDir, "content"), logger)
	if err != nil {
		logger.Fatal("open content store", zap.Error(err))
	}
	defer disk.Close()

	expected := cat.ExpectedHashes()
	if restored, err := disk.Load(cache, expected); err == nil && restored > 0 {
		logger.Info("already cached", zap.Int("count", restored))
	}

	dl := content.NewDownloader(cache, fetcher, logger)
	dl.Start(ctx, expected)

	failed := 0
	for ev := range dl.Events() {
		switch ev.Kind {
		case content.EventResult:
			done, total := dl.Progress()
			if ev.Err != nil {
				failed++
				logger.Warn("fetch failed", zap.String("id", ev.ID),
					zap.Int("done", done), zap.Int("total", total), zap.Error(ev.Err))
			} else {
				logger.Info("fetched", zap.String("id", ev.ID),
					zap.Int("done", done), zap.Int("total", total))
			}
		case content.EventDone:
			if err := disk.Save(cache); err != nil {
				logger.Fatal("save cache", zap.Error(err))
			}
			logger.Info("prefetch complete",
				zap.Int("cached", cache.Len()),
				zap.Int("failed", failed))
			if failed > 0 {
				os.Exit(1)
			}
			return
		}
	}
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
