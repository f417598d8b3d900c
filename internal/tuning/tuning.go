// Package tuning loads the placement pipeline's operational knobs from a
// YAML file. Zero values fall back to defaults, so a partial file is fine.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickIntervalMs int `yaml:"tick_interval_ms"`
	TilesPerTick   int `yaml:"tiles_per_tick"`
	QueueCapacity  int `yaml:"queue_capacity"`

	AgentBufferTiles int `yaml:"agent_buffer_tiles"`

	CatalogRefreshMinutes int `yaml:"catalog_refresh_minutes"`

	Language string `yaml:"language"`
	DataDir  string `yaml:"data_dir"`

	ContentURL   string `yaml:"content_url"`
	StatusListen string `yaml:"status_listen"`
}

// Defaults returns the tuning used when no file is given.
func Defaults() Tuning {
	return Tuning{
		TickIntervalMs:        250,
		TilesPerTick:          4,
		QueueCapacity:         1024,
		AgentBufferTiles:      2,
		CatalogRefreshMinutes: 15,
		Language:              "en",
		DataDir:               "data",
		StatusListen:          ":8787",
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.withDefaults(), nil
}

func (t Tuning) withDefaults() Tuning {
	d := Defaults()
	if t.TickIntervalMs <= 0 {
		t.TickIntervalMs = d.TickIntervalMs
	}
	if t.TilesPerTick <= 0 {
		t.TilesPerTick = d.TilesPerTick
	}
	if t.QueueCapacity <= 0 {
		t.QueueCapacity = d.QueueCapacity
	}
	if t.AgentBufferTiles < 0 {
		t.AgentBufferTiles = d.AgentBufferTiles
	}
	if t.CatalogRefreshMinutes <= 0 {
		t.CatalogRefreshMinutes = d.CatalogRefreshMinutes
	}
	if t.Language == "" {
		t.Language = d.Language
	}
	if t.DataDir == "" {
		t.DataDir = d.DataDir
	}
	if t.StatusListen == "" {
		t.StatusListen = d.StatusListen
	}
	return t
}
