package spawn

import (
	"sync"

	"spawnforge.ai/internal/world"
)

// testWorld is a flat, fully-loaded world with per-voxel overrides, enough
// control to force every pipeline outcome. Guarded so session tests can
// poll it while the tick goroutine mutates.
type testWorld struct {
	seed    int64
	groundY int
	region  string

	mu         sync.Mutex
	blocks     map[world.Vec3i]world.Block
	agents     []world.Vec3i
	meta       map[world.TileKey]*world.TileMeta
	placements []world.Placement
}

const (
	twAir world.Block = iota
	twStone
	twPlank
)

func newTestWorld(seed int64) *testWorld {
	return &testWorld{
		seed:    seed,
		groundY: 10,
		region:  "PLAINS",
		blocks:  map[world.Vec3i]world.Block{},
		meta:    map[world.TileKey]*world.TileMeta{},
	}
}

func (w *testWorld) Seed() int64 { return w.seed }
func (w *testWorld) MinY() int   { return 0 }
func (w *testWorld) MaxY() int   { return 63 }

func (w *testWorld) TileLoaded(tx, tz int) bool { return true }

func (w *testWorld) Height(x, z int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	for y := w.MaxY(); y > w.groundY; y-- {
		if b, ok := w.blocks[world.Vec3i{X: x, Y: y, Z: z}]; ok && b != twAir {
			return y
		}
	}
	return w.groundY
}

func (w *testWorld) BlockAt(p world.Vec3i) world.Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blockAtLocked(p)
}

func (w *testWorld) blockAtLocked(p world.Vec3i) world.Block {
	if b, ok := w.blocks[p]; ok {
		return b
	}
	if p.Y <= w.groundY {
		return twStone
	}
	return twAir
}

func (w *testWorld) SetBlock(p world.Vec3i, b world.Block) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.blockAtLocked(p) == b {
		return false
	}
	w.blocks[p] = b
	return true
}

func (w *testWorld) ClassOf(b world.Block) world.BlockClass {
	if b == twAir {
		return world.ClassAir
	}
	return world.ClassSolid
}

func (w *testWorld) BlockByName(name string) (world.Block, bool) {
	switch name {
	case "air":
		return twAir, true
	case "stone":
		return twStone, true
	case "plank":
		return twPlank, true
	}
	return 0, false
}

func (w *testWorld) RegionTag(x, z int) string { return w.region }

func (w *testWorld) AgentPositions() []world.Vec3i {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agents
}

func (w *testWorld) TileMeta(tx, tz int) world.TileMeta {
	w.mu.Lock()
	defer w.mu.Unlock()
	if m := w.meta[world.PackTile(tx, tz)]; m != nil {
		return *m
	}
	return world.TileMeta{}
}

func (w *testWorld) MarkTileProcessed(tx, tz int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := world.PackTile(tx, tz)
	if w.meta[k] == nil {
		w.meta[k] = &world.TileMeta{}
	}
	w.meta[k].Processed = true
}

func (w *testWorld) AttachPlacement(tx, tz int, p world.Placement) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := world.PackTile(tx, tz)
	if w.meta[k] == nil {
		w.meta[k] = &world.TileMeta{}
	}
	cp := p
	w.meta[k].Placed = &cp
	w.placements = append(w.placements, p)
}
