// Package catalog holds the versioned collection of placeable structures:
// entries, placement rules, content hashes, and the local snapshot store.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Category is the closed set of placement categories. Each category selects
// its own position-search legality in internal/spawn/validate.
type Category uint8

const (
	CategoryGround Category = iota
	CategoryFloating
	CategorySubmergedFloor
	CategorySubmerged
	CategoryAboveLiquid
	CategorySubterranean
)

var categoryNames = [...]string{
	CategoryGround:         "GROUND",
	CategoryFloating:       "FLOATING",
	CategorySubmergedFloor: "SUBMERGED_FLOOR",
	CategorySubmerged:      "SUBMERGED",
	CategoryAboveLiquid:    "ABOVE_LIQUID",
	CategorySubterranean:   "SUBTERRANEAN",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("CATEGORY(%d)", uint8(c))
}

func ParseCategory(s string) (Category, error) {
	for i, n := range categoryNames {
		if n == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown placement category %q", s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Rule is one placement rule of an entry. Immutable once loaded.
type Rule struct {
	Probability float64  `json:"probability" validate:"gte=0,lte=1"`
	Category    Category `json:"category"`
	YMin        int      `json:"y_min"`
	YMax        int      `json:"y_max"`
	Margin      int      `json:"margin" validate:"gte=0"`
	RegionTags  []string `json:"region_tags,omitempty"`
}

// Matches reports whether the rule applies to the given region tag. A rule
// with no tags applies everywhere.
func (r Rule) Matches(tag string) bool {
	if len(r.RegionTags) == 0 {
		return true
	}
	for _, t := range r.RegionTags {
		if t == tag {
			return true
		}
	}
	return false
}

// DefaultRule is substituted when an entry carries no rules at all, so
// untagged entries still spawn everywhere: ground placement, probability 1,
// generous vertical range.
func DefaultRule(yMin, yMax int) Rule {
	return Rule{
		Probability: 1,
		Category:    CategoryGround,
		YMin:        yMin,
		YMax:        yMax,
		Margin:      1,
	}
}

// Entry is one placeable structure. Owned by its Catalog; the runtime
// counters are mutated only on the tick goroutine.
type Entry struct {
	ID           string            `json:"id" validate:"required"`
	Key          int64             `json:"key" validate:"gt=0"`
	Size         [3]int            `json:"size" validate:"dive,gt=0"`
	Anchor       [3]int            `json:"anchor"`
	AnchorFacing int               `json:"anchor_facing"`
	PayloadHash  string            `json:"payload_hash" validate:"len=64,hexadecimal"`
	Rules        []Rule            `json:"rules,omitempty"`
	Names        map[string]string `json:"names,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	Author       string            `json:"author,omitempty"`

	// MaxSpawns < 0 means unlimited.
	MaxSpawns int `json:"max_spawns"`

	// Runtime counters; never serialized.
	SpawnCount       int `json:"-"`
	DownloadFailures int `json:"-"`
}

// UnmarshalJSON defaults an absent max_spawns to unlimited.
func (e *Entry) UnmarshalJSON(b []byte) error {
	type alias Entry
	tmp := struct {
		*alias
		MaxSpawns *int `json:"max_spawns"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if tmp.MaxSpawns == nil {
		e.MaxSpawns = -1
	} else {
		e.MaxSpawns = *tmp.MaxSpawns
	}
	return nil
}

// HasBudget reports whether the entry may still spawn.
func (e *Entry) HasBudget() bool {
	return e.MaxSpawns < 0 || e.SpawnCount < e.MaxSpawns
}

// DisplayName returns the localized name for lang, falling back to "en",
// then to the entry id.
func (e *Entry) DisplayName(lang string) string {
	if n, ok := e.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := e.Names["en"]; ok && n != "" {
		return n
	}
	return e.ID
}

// Catalog is the immutable versioned collection. Replaced wholesale on
// refresh; only per-entry runtime counters mutate in place.
type Catalog struct {
	ID                string  `json:"catalog_id" validate:"required"`
	Version           int64   `json:"version"`
	GlobalProbability float64 `json:"spawn_probability" validate:"gte=0,lte=1"`
	Entries           []Entry `json:"entries" validate:"dive"`

	// Digest is the sha256 hex of the raw catalog document, used for cheap
	// change detection against the remote service.
	Digest string `json:"-"`

	byID map[string]int
}

// EntryByID returns the index of the entry, or -1.
func (c *Catalog) EntryByID(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// ExpectedHashes returns identifier → payload content hash for every entry.
func (c *Catalog) ExpectedHashes() map[string]string {
	m := make(map[string]string, len(c.Entries))
	for i := range c.Entries {
		m[c.Entries[i].ID] = c.Entries[i].PayloadHash
	}
	return m
}

func (c *Catalog) index() error {
	c.byID = make(map[string]int, len(c.Entries))
	for i := range c.Entries {
		id := c.Entries[i].ID
		if _, dup := c.byID[id]; dup {
			return fmt.Errorf("duplicate entry id %q", id)
		}
		c.byID[id] = i
	}
	return nil
}

// HashBytes is the content hash used for catalog and payload documents.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
