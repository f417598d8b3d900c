package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
)

// fakeFetcher serves canned payloads and records call order.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string][]byte
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) FetchPayload(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return nil, errors.New("remote unavailable")
	}
	raw, ok := f.docs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return raw, nil
}

func (f *fakeFetcher) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func collect(t *testing.T, d *Downloader, wantResults int) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-d.Events():
			events = append(events, ev)
			if ev.Kind == EventDone {
				results := 0
				for _, e := range events {
					if e.Kind == EventResult {
						results++
					}
				}
				if results != wantResults {
					t.Fatalf("got %d results before done, want %d", results, wantResults)
				}
				return events
			}
		case <-deadline:
			t.Fatalf("downloader did not complete")
		}
	}
}

func TestDownloaderSequentialWithFailures(t *testing.T) {
	rawA, _, hashA := payloadDoc("a")
	rawC, _, hashC := payloadDoc("c")
	f := &fakeFetcher{
		docs: map[string][]byte{"a": rawA, "c": rawC},
		fail: map[string]bool{"b": true},
	}
	cache := NewCache()
	d := NewDownloader(cache, f, zap.NewNop())

	expected := map[string]string{"a": hashA, "b": "ff", "c": hashC}
	d.Start(context.Background(), expected)
	events := collect(t, d, 3)

	// Queue order is sorted, one at a time; the failure must not block c.
	order := f.callOrder()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("call order %v", order)
	}
	var failed []string
	for _, ev := range events {
		if ev.Kind == EventResult && ev.Err != nil {
			failed = append(failed, ev.ID)
		}
	}
	if len(failed) != 1 || failed[0] != "b" {
		t.Fatalf("failed=%v want [b]", failed)
	}
	if !cache.Contains("a") || !cache.Contains("c") || cache.Contains("b") {
		t.Fatalf("cache contents wrong")
	}
	if done, total := d.Progress(); done != 3 || total != 3 {
		t.Fatalf("progress %d/%d", done, total)
	}
	if !d.Ready() {
		t.Fatalf("downloader not ready after done")
	}
}

func TestDownloaderHashMismatchIsFailure(t *testing.T) {
	rawA, _, _ := payloadDoc("a")
	f := &fakeFetcher{docs: map[string][]byte{"a": rawA}}
	cache := NewCache()
	d := NewDownloader(cache, f, zap.NewNop())

	d.Start(context.Background(), map[string]string{"a": "not-the-hash"})
	events := collect(t, d, 1)
	if events[0].Err == nil {
		t.Fatalf("hash mismatch not reported as failure")
	}
	if cache.Contains("a") {
		t.Fatalf("mismatched payload entered the cache")
	}
}

func TestDownloaderMarkReadySkipsFetching(t *testing.T) {
	f := &fakeFetcher{}
	d := NewDownloader(NewCache(), f, zap.NewNop())
	d.MarkReady()
	events := collect(t, d, 0)
	if len(events) != 1 || events[0].Kind != EventDone {
		t.Fatalf("events=%v", events)
	}
	if !d.Ready() {
		t.Fatalf("not ready")
	}
	// Start after MarkReady is a no-op.
	d.Start(context.Background(), map[string]string{"a": "ff"})
	if len(f.callOrder()) != 0 {
		t.Fatalf("fetches issued after MarkReady")
	}
}

func TestFetchOneSingleFlight(t *testing.T) {
	rawA, _, hashA := payloadDoc("a")
	f := &fakeFetcher{docs: map[string][]byte{"a": rawA}}
	cache := NewCache()
	d := NewDownloader(cache, f, zap.NewNop())

	// A fetch already in flight must refuse a second caller.
	cache.MarkDownloading("a")
	if d.FetchOne(context.Background(), "a", hashA) {
		t.Fatalf("second in-flight fetch accepted")
	}
	cache.ClearDownloading("a")

	if !d.FetchOne(context.Background(), "a", hashA) {
		t.Fatalf("fetch refused")
	}
	ev := <-d.Events()
	if ev.Kind != EventResult || ev.ID != "a" || ev.Err != nil {
		t.Fatalf("event %+v", ev)
	}
	if _, ok := cache.GetVerified("a", hashA); !ok {
		t.Fatalf("payload not cached")
	}
	if cache.IsDownloading("a") {
		t.Fatalf("in-flight flag not cleared")
	}
}

func TestPayloadDecodeRejectsEmpty(t *testing.T) {
	if _, err := catalog.DecodePayload([]byte(`{"id":"x","blocks":[]}`)); err == nil {
		t.Fatalf("empty payload accepted")
	}
}
