package spawn

import (
	"testing"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/content"
	"spawnforge.ai/internal/world"
)

type countingSink struct {
	placements []world.Placement
}

func (s *countingSink) PlacementDone(tx, tz int, entryID string, p world.Placement) {
	s.placements = append(s.placements, p)
}

func testEntry(id string, key int64) catalog.Entry {
	return catalog.Entry{
		ID:          id,
		Key:         key,
		Size:        [3]int{2, 2, 2},
		Anchor:      [3]int{0, 0, 0},
		PayloadHash: "hash-" + id,
		MaxSpawns:   -1,
		Rules: []catalog.Rule{{
			Probability: 1,
			Category:    catalog.CategoryGround,
			YMin:        0,
			YMax:        63,
			Margin:      1,
		}},
	}
}

func testCatalog(entries ...catalog.Entry) *catalog.Catalog {
	return &catalog.Catalog{
		ID:                "main",
		GlobalProbability: 1,
		Entries:           entries,
	}
}

func cachePayload(c *content.Cache, ent catalog.Entry) {
	p := &catalog.Payload{
		ID: ent.ID,
		Blocks: []catalog.PayloadBlock{
			{Pos: [3]int{0, 0, 0}, Block: "plank"},
			{Pos: [3]int{1, 0, 0}, Block: "plank"},
			{Pos: [3]int{0, 1, 1}, Block: "plank"},
		},
	}
	c.Put(ent.ID, []byte(`{}`), p, ent.PayloadHash)
}

type pipeline struct {
	w       *testWorld
	cat     *catalog.Catalog
	cache   *content.Cache
	tracker *Occupancy
	sink    *countingSink
	eval    *Evaluator
	fetches []string
}

func newPipeline(t *testing.T, cat *catalog.Catalog) *pipeline {
	t.Helper()
	p := &pipeline{
		w:       newTestWorld(7),
		cat:     cat,
		cache:   content.NewCache(),
		tracker: NewOccupancy(),
		sink:    &countingSink{},
	}
	exec := NewExecutor(p.w, p.cache, p.sink, "en", zap.NewNop())
	p.eval = NewEvaluator(p.w, cat, p.cache, p.tracker, exec, func(id, hash string) {
		p.fetches = append(p.fetches, id)
	}, zap.NewNop())
	return p
}

func TestGlobalRollZeroNeverSpawns(t *testing.T) {
	cat := testCatalog(testEntry("watchtower", 1))
	cat.GlobalProbability = 0
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	for tx := 0; tx < 8; tx++ {
		d := p.eval.EvaluateTile(world.PackTile(tx, 0))
		if d.Outcome != OutcomeGlobalRoll {
			t.Fatalf("tile %d outcome %s, want global_roll", tx, d.Outcome)
		}
	}
}

func TestPlacedHappyPath(t *testing.T) {
	cat := testCatalog(testEntry("watchtower", 1))
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomePlaced {
		t.Fatalf("outcome %s (reasons %v), want placed", d.Outcome, d.Reasons)
	}
	if cat.Entries[0].SpawnCount != 1 {
		t.Fatalf("spawn count = %d, want 1", cat.Entries[0].SpawnCount)
	}
	if len(p.sink.placements) != 1 {
		t.Fatalf("sink saw %d placements, want 1", len(p.sink.placements))
	}
	if !p.tracker.AnyClaimed(d.Result.Box) {
		t.Fatal("footprint tiles not claimed")
	}
	tx, tz := d.Tile.Unpack()
	meta := p.w.TileMeta(tx, tz)
	if meta.Placed == nil || meta.Placed.EntryID != "watchtower" {
		t.Fatalf("placement record missing: %+v", meta)
	}
	if p.w.BlockAt(d.Result.Pos) != twPlank {
		t.Fatal("payload blocks not written")
	}
}

func TestDecisionDeterministic(t *testing.T) {
	run := func() Decision {
		cat := testCatalog(testEntry("watchtower", 1))
		p := newPipeline(t, cat)
		cachePayload(p.cache, cat.Entries[0])
		return p.eval.EvaluateTile(world.PackTile(4, -3))
	}
	a, b := run(), run()
	if a.Outcome != b.Outcome || a.EntryID != b.EntryID || a.Result != b.Result {
		t.Fatalf("same inputs, different decisions: %+v vs %+v", a, b)
	}
}

func TestNoEntryWhenBudgetExhausted(t *testing.T) {
	ent := testEntry("watchtower", 1)
	ent.MaxSpawns = 0
	p := newPipeline(t, testCatalog(ent))
	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomeNoEntry {
		t.Fatalf("outcome %s, want no_entry", d.Outcome)
	}
}

func TestBudgetStopsFurtherSpawns(t *testing.T) {
	ent := testEntry("watchtower", 1)
	ent.MaxSpawns = 1
	cat := testCatalog(ent)
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	placed := 0
	for tx := 0; tx < 20 && placed == 0; tx++ {
		if p.eval.EvaluateTile(world.PackTile(tx, 5)).Outcome == OutcomePlaced {
			placed++
		}
	}
	if placed != 1 {
		t.Fatal("no placement within 20 tiles at probability 1")
	}
	for tx := 0; tx < 20; tx++ {
		if d := p.eval.EvaluateTile(world.PackTile(tx, 50)); d.Outcome == OutcomePlaced {
			t.Fatalf("budget of 1 exceeded at tile %d", tx)
		}
	}
}

func TestNoRuleWhenRegionMismatch(t *testing.T) {
	ent := testEntry("reef_shrine", 2)
	ent.Rules[0].RegionTags = []string{"OCEAN"}
	p := newPipeline(t, testCatalog(ent)) // testWorld reports PLAINS
	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomeNoRule {
		t.Fatalf("outcome %s, want no_rule", d.Outcome)
	}
}

func TestDefaultRuleForRulelessEntry(t *testing.T) {
	ent := testEntry("watchtower", 1)
	ent.Rules = nil
	cat := testCatalog(ent)
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomePlaced {
		t.Fatalf("outcome %s (reasons %v), want placed via default rule", d.Outcome, d.Reasons)
	}
}

func TestAwaitingContentTriggersSingleFetch(t *testing.T) {
	cat := testCatalog(testEntry("watchtower", 1))
	p := newPipeline(t, cat)

	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomeAwaitingContent {
		t.Fatalf("outcome %s, want awaiting_content", d.Outcome)
	}
	if len(p.fetches) != 1 || p.fetches[0] != "watchtower" {
		t.Fatalf("fetch requests = %v, want one for watchtower", p.fetches)
	}

	// With a fetch in flight, further misses do not request again.
	p.cache.MarkDownloading("watchtower")
	d = p.eval.EvaluateTile(world.PackTile(1, 0))
	if d.Outcome != OutcomeAwaitingContent {
		t.Fatalf("outcome %s, want awaiting_content", d.Outcome)
	}
	if len(p.fetches) != 1 {
		t.Fatalf("fetch requested again while in flight: %v", p.fetches)
	}
}

func TestOccupiedFootprintRejected(t *testing.T) {
	cat := testCatalog(testEntry("watchtower", 1))
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	// Claim a region covering tile (0,0) and all its neighbors.
	p.tracker.Claim(world.AABB{
		Min: world.Vec3i{X: -world.TileSize, Y: 0, Z: -world.TileSize},
		Max: world.Vec3i{X: 2*world.TileSize - 1, Y: 20, Z: 2*world.TileSize - 1},
	})
	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomeOccupied {
		t.Fatalf("outcome %s, want occupied", d.Outcome)
	}
	if cat.Entries[0].SpawnCount != 0 {
		t.Fatal("occupied evaluation spent budget")
	}
}

func TestExecutorIdempotentRerun(t *testing.T) {
	cat := testCatalog(testEntry("watchtower", 1))
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomePlaced {
		t.Fatalf("outcome %s, want placed", d.Outcome)
	}

	exec := NewExecutor(p.w, p.cache, p.sink, "en", zap.NewNop())
	tx, tz := d.Tile.Unpack()
	placed, err := exec.Place(&cat.Entries[0], d.Result, tx, tz)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if placed {
		t.Fatal("rerun over identical voxels reported changes")
	}
	if cat.Entries[0].SpawnCount != 1 {
		t.Fatalf("rerun spent budget: count %d", cat.Entries[0].SpawnCount)
	}
	if len(p.sink.placements) != 1 {
		t.Fatalf("rerun fired the sink: %d placements", len(p.sink.placements))
	}
}

func TestAdjacentTilesCannotOverlap(t *testing.T) {
	// A footprint wider than two tiles: placements elected from adjacent
	// tiles always share at least one claimed tile, so whichever tile
	// evaluates second must abort.
	ent := testEntry("grand_hall", 3)
	ent.Size = [3]int{34, 2, 34}
	ent.Anchor = [3]int{17, 0, 17}
	cat := testCatalog(ent)
	p := newPipeline(t, cat)
	cachePayload(p.cache, cat.Entries[0])

	first := p.eval.EvaluateTile(world.PackTile(0, 0))
	if first.Outcome != OutcomePlaced {
		t.Fatalf("first tile outcome %s (reasons %v), want placed", first.Outcome, first.Reasons)
	}
	second := p.eval.EvaluateTile(world.PackTile(1, 0))
	if second.Outcome != OutcomeOccupied {
		t.Fatalf("second tile outcome %s, want occupied", second.Outcome)
	}
	if len(p.sink.placements) != 1 {
		t.Fatalf("placements = %d, want 1", len(p.sink.placements))
	}
}

func TestFacedEntryWritesInsideClaimedBox(t *testing.T) {
	// A non-square entry stored facing east: the write rotation and the
	// validated box must share the same net quarter-turn, or the planks
	// land on ground the tracker never claimed.
	ent := testEntry("fishing_pier", 4)
	ent.Size = [3]int{3, 1, 1}
	ent.Anchor = [3]int{0, 0, 0}
	ent.AnchorFacing = 1
	cat := testCatalog(ent)
	p := newPipeline(t, cat)
	p.cache.Put(ent.ID, []byte(`{}`), &catalog.Payload{
		ID: ent.ID,
		Blocks: []catalog.PayloadBlock{
			{Pos: [3]int{0, 0, 0}, Block: "plank"},
			{Pos: [3]int{1, 0, 0}, Block: "plank"},
			{Pos: [3]int{2, 0, 0}, Block: "plank"},
		},
	}, ent.PayloadHash)

	d := p.eval.EvaluateTile(world.PackTile(0, 0))
	if d.Outcome != OutcomePlaced {
		t.Fatalf("outcome %s (reasons %v), want placed", d.Outcome, d.Reasons)
	}
	written := 0
	for pos, b := range p.w.blocks {
		if b != twPlank {
			continue
		}
		written++
		if !d.Result.Box.Contains(pos) {
			t.Fatalf("voxel %v written outside footprint box %v", pos, d.Result.Box)
		}
	}
	if written != 3 {
		t.Fatalf("wrote %d voxels, want 3", written)
	}
	if !p.tracker.AnyClaimed(d.Result.Box) {
		t.Fatal("footprint tiles not claimed")
	}
}

func TestFailurePenalty(t *testing.T) {
	cases := []struct {
		failures int
		want     float64
	}{
		{0, 1}, {1, 0.5}, {2, 0.25}, {3, 0.125}, {4, 0.0625}, {9, 0.0625},
	}
	for _, c := range cases {
		if got := failurePenalty(c.failures); got != c.want {
			t.Fatalf("penalty(%d) = %v, want %v", c.failures, got, c.want)
		}
	}
}
