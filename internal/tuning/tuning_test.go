package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	doc := "tiles_per_tick: 9\nlanguage: de\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	tun, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tun.TilesPerTick != 9 {
		t.Fatalf("tiles_per_tick = %d, want 9", tun.TilesPerTick)
	}
	if tun.Language != "de" {
		t.Fatalf("language = %q, want de", tun.Language)
	}
	if tun.TickIntervalMs != Defaults().TickIntervalMs {
		t.Fatalf("tick_interval_ms = %d, want default %d", tun.TickIntervalMs, Defaults().TickIntervalMs)
	}
	if tun.QueueCapacity != Defaults().QueueCapacity {
		t.Fatalf("queue_capacity = %d, want default", tun.QueueCapacity)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tiles_per_tick: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected yaml error")
	}
}
