package world

import (
	"sort"

	"spawnforge.ai/internal/world/mathx"
)

// Palette ids for the built-in demo world. The placement core only ever
// sees these through BlockClass and BlockByName.
const (
	Air Block = iota
	Stone
	Dirt
	Grass
	Sand
	Gravel
	Water
	TallGrass
	Flower
	Kelp
	Coral
	SnowLayer
	LilyPad
	Plank
	Brick
	Cobble
	Glass
	Thatch
)

var blockNames = map[string]Block{
	"AIR":        Air,
	"STONE":      Stone,
	"DIRT":       Dirt,
	"GRASS":      Grass,
	"SAND":       Sand,
	"GRAVEL":     Gravel,
	"WATER":      Water,
	"TALL_GRASS": TallGrass,
	"FLOWER":     Flower,
	"KELP":       Kelp,
	"CORAL":      Coral,
	"SNOW_LAYER": SnowLayer,
	"LILY_PAD":   LilyPad,
	"PLANK":      Plank,
	"BRICK":      Brick,
	"COBBLE":     Cobble,
	"GLASS":      Glass,
	"THATCH":     Thatch,
}

var blockClasses = map[Block]BlockClass{
	Air:       ClassAir,
	Stone:     ClassSolid,
	Dirt:      ClassSolid,
	Grass:     ClassSolid,
	Sand:      ClassSolid,
	Gravel:    ClassSolid,
	Water:     ClassLiquid,
	TallGrass: ClassFoliage,
	Flower:    ClassFoliage,
	Kelp:      ClassDecor,
	Coral:     ClassDecor,
	SnowLayer: ClassReplaceable,
	LilyPad:   ClassReplaceable,
	Plank:     ClassSolid,
	Brick:     ClassSolid,
	Cobble:    ClassSolid,
	Glass:     ClassSolid,
	Thatch:    ClassSolid,
}

// Gen holds the worldgen tuning for a ChunkWorld.
type Gen struct {
	Seed      int64
	Height    int // world height in voxels
	SeaLevel  int
	BoundaryR int // blocks; 0 means unbounded

	RegionSize int // biome region edge length in blocks

	FoliagePermille int
	KelpPermille    int
}

type tileColumn struct {
	blocks  []Block // len = TileSize*TileSize*height, x fastest, then z, then y
	heights []int   // len = TileSize*TileSize, topmost non-air per column
}

// ChunkWorld is a deterministic, lazily generated voxel world backed by
// per-tile columns. It is the demo/test substrate for the placement
// pipeline; real deployments adapt their own chunk storage to the World
// interface. Accessed only from the tick goroutine.
type ChunkWorld struct {
	gen   Gen
	tiles map[TileKey]*tileColumn
	meta  map[TileKey]*TileMeta

	agents []Vec3i

	// onTileLoaded fires the first time a tile is generated.
	onTileLoaded func(tx, tz int)
}

func NewChunkWorld(gen Gen) *ChunkWorld {
	if gen.Height <= 0 {
		gen.Height = 64
	}
	if gen.SeaLevel <= 0 {
		gen.SeaLevel = 16
	}
	if gen.RegionSize <= 0 {
		gen.RegionSize = 48
	}
	return &ChunkWorld{
		gen:   gen,
		tiles: map[TileKey]*tileColumn{},
		meta:  map[TileKey]*TileMeta{},
	}
}

func (w *ChunkWorld) Seed() int64 { return w.gen.Seed }
func (w *ChunkWorld) MinY() int   { return 0 }
func (w *ChunkWorld) MaxY() int   { return w.gen.Height - 1 }

func (w *ChunkWorld) SetTileListener(fn func(tx, tz int)) { w.onTileLoaded = fn }

func (w *ChunkWorld) SetAgents(positions []Vec3i) { w.agents = positions }

func (w *ChunkWorld) AgentPositions() []Vec3i { return w.agents }

func (w *ChunkWorld) TileLoaded(tx, tz int) bool {
	_, ok := w.tiles[PackTile(tx, tz)]
	return ok
}

// LoadTile generates the tile if needed and fires the discovery listener on
// first generation.
func (w *ChunkWorld) LoadTile(tx, tz int) {
	k := PackTile(tx, tz)
	if _, ok := w.tiles[k]; ok {
		return
	}
	w.tiles[k] = w.generateTile(tx, tz)
	if w.onTileLoaded != nil {
		w.onTileLoaded(tx, tz)
	}
}

// LoadedTileKeys returns the loaded tiles in deterministic order.
func (w *ChunkWorld) LoadedTileKeys() []TileKey {
	keys := make([]TileKey, 0, len(w.tiles))
	for k := range w.tiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (w *ChunkWorld) inBounds(x, z int) bool {
	if w.gen.BoundaryR <= 0 {
		return true
	}
	return x >= -w.gen.BoundaryR && x <= w.gen.BoundaryR && z >= -w.gen.BoundaryR && z <= w.gen.BoundaryR
}

func (w *ChunkWorld) columnIndex(lx, lz int) int { return lx + lz*TileSize }

func (w *ChunkWorld) blockIndex(lx, y, lz int) int {
	return lx + lz*TileSize + y*TileSize*TileSize
}

func (w *ChunkWorld) tileAt(x, z int) (*tileColumn, int, int) {
	tx := mathx.FloorDiv(x, TileSize)
	tz := mathx.FloorDiv(z, TileSize)
	t := w.tiles[PackTile(tx, tz)]
	return t, mathx.Mod(x, TileSize), mathx.Mod(z, TileSize)
}

func (w *ChunkWorld) BlockAt(p Vec3i) Block {
	if p.Y < 0 || p.Y >= w.gen.Height || !w.inBounds(p.X, p.Z) {
		return Air
	}
	t, lx, lz := w.tileAt(p.X, p.Z)
	if t == nil {
		return Air
	}
	return t.blocks[w.blockIndex(lx, p.Y, lz)]
}

func (w *ChunkWorld) SetBlock(p Vec3i, b Block) bool {
	if p.Y < 0 || p.Y >= w.gen.Height || !w.inBounds(p.X, p.Z) {
		return false
	}
	t, lx, lz := w.tileAt(p.X, p.Z)
	if t == nil {
		return false
	}
	i := w.blockIndex(lx, p.Y, lz)
	if t.blocks[i] == b {
		return false
	}
	t.blocks[i] = b
	ci := w.columnIndex(lx, lz)
	if b != Air && p.Y > t.heights[ci] {
		t.heights[ci] = p.Y
	} else if b == Air && p.Y == t.heights[ci] {
		y := p.Y
		for y > 0 && t.blocks[w.blockIndex(lx, y, lz)] == Air {
			y--
		}
		t.heights[ci] = y
	}
	return true
}

func (w *ChunkWorld) Height(x, z int) int {
	t, lx, lz := w.tileAt(x, z)
	if t == nil {
		return 0
	}
	return t.heights[w.columnIndex(lx, lz)]
}

func (w *ChunkWorld) ClassOf(b Block) BlockClass {
	if c, ok := blockClasses[b]; ok {
		return c
	}
	return ClassSolid
}

func (w *ChunkWorld) BlockByName(name string) (Block, bool) {
	b, ok := blockNames[name]
	return b, ok
}

func (w *ChunkWorld) RegionTag(x, z int) string {
	rx := mathx.FloorDiv(x, w.gen.RegionSize)
	rz := mathx.FloorDiv(z, w.gen.RegionSize)
	if w.regionBase(rx, rz) < w.gen.SeaLevel {
		return "OCEAN"
	}
	switch mathx.Hash2(w.gen.Seed^0x5eed, rx, rz) % 3 {
	case 0:
		return "PLAINS"
	case 1:
		return "FOREST"
	default:
		return "DESERT"
	}
}

func (w *ChunkWorld) TileMeta(tx, tz int) TileMeta {
	if m := w.meta[PackTile(tx, tz)]; m != nil {
		return *m
	}
	return TileMeta{}
}

func (w *ChunkWorld) MarkTileProcessed(tx, tz int) {
	k := PackTile(tx, tz)
	m := w.meta[k]
	if m == nil {
		m = &TileMeta{}
		w.meta[k] = m
	}
	m.Processed = true
}

func (w *ChunkWorld) AttachPlacement(tx, tz int, p Placement) {
	k := PackTile(tx, tz)
	m := w.meta[k]
	if m == nil {
		m = &TileMeta{}
		w.meta[k] = m
	}
	if m.Placed != nil {
		// A tile is placed into at most once.
		return
	}
	cp := p
	m.Placed = &cp
}

// Placements returns every attached placement record in deterministic order.
func (w *ChunkWorld) Placements() []Placement {
	keys := make([]TileKey, 0, len(w.meta))
	for k, m := range w.meta {
		if m.Placed != nil {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Placement, 0, len(keys))
	for _, k := range keys {
		out = append(out, *w.meta[k].Placed)
	}
	return out
}

// regionBase is the terrain base height for a biome region.
func (w *ChunkWorld) regionBase(rx, rz int) int {
	h := mathx.Hash2(w.gen.Seed, rx, rz)
	// Base terrain in [SeaLevel-6, SeaLevel+10]; roughly a third of the
	// regions end up flooded.
	return w.gen.SeaLevel - 6 + int(h%17)
}

func (w *ChunkWorld) surfaceHeight(x, z int) int {
	rs := w.gen.RegionSize
	rx := mathx.FloorDiv(x, rs)
	rz := mathx.FloorDiv(z, rs)

	// Blend the four surrounding region bases so terrain slopes instead of
	// stepping at region borders.
	fx := mathx.Mod(x, rs)
	fz := mathx.Mod(z, rs)
	b00 := w.regionBase(rx, rz)
	b10 := w.regionBase(rx+1, rz)
	b01 := w.regionBase(rx, rz+1)
	b11 := w.regionBase(rx+1, rz+1)
	top := b00*(rs-fx) + b10*fx
	bot := b01*(rs-fx) + b11*fx
	base := (top*(rs-fz) + bot*fz) / (rs * rs)

	jitter := int(mathx.Hash2(w.gen.Seed^0x7e44, x, z) % 2)
	h := base + jitter
	if h < 1 {
		h = 1
	}
	if h > w.gen.Height-8 {
		h = w.gen.Height - 8
	}
	return h
}

func (w *ChunkWorld) generateTile(tx, tz int) *tileColumn {
	t := &tileColumn{
		blocks:  make([]Block, TileSize*TileSize*w.gen.Height),
		heights: make([]int, TileSize*TileSize),
	}
	for lz := 0; lz < TileSize; lz++ {
		for lx := 0; lx < TileSize; lx++ {
			x := tx*TileSize + lx
			z := tz*TileSize + lz
			w.generateColumn(t, lx, lz, x, z)
		}
	}
	return t
}

func (w *ChunkWorld) generateColumn(t *tileColumn, lx, lz, x, z int) {
	surface := w.surfaceHeight(x, z)
	tag := w.RegionTag(x, z)

	top := Grass
	if tag == "DESERT" {
		top = Sand
	}
	if surface < w.gen.SeaLevel {
		top = Sand
		if mathx.Hash2(w.gen.Seed^0x9a4e, x, z)%4 == 0 {
			top = Gravel
		}
	}

	for y := 0; y <= surface; y++ {
		b := Stone
		switch {
		case y == surface:
			b = top
		case y >= surface-3:
			b = Dirt
		}
		t.blocks[w.blockIndex(lx, y, lz)] = b
	}
	height := surface

	if surface < w.gen.SeaLevel {
		for y := surface + 1; y <= w.gen.SeaLevel; y++ {
			t.blocks[w.blockIndex(lx, y, lz)] = Water
		}
		height = w.gen.SeaLevel
		if w.gen.KelpPermille > 0 && mathx.Hash2(w.gen.Seed^0x6e1b, x, z)%1000 < uint64(w.gen.KelpPermille) {
			deco := Kelp
			if mathx.Hash2(w.gen.Seed^0x33c0, x, z)%5 == 0 {
				deco = Coral
			}
			t.blocks[w.blockIndex(lx, surface+1, lz)] = deco
		}
	} else if w.gen.FoliagePermille > 0 && tag == "FOREST" {
		if mathx.Hash2(w.gen.Seed^0x51af, x, z)%1000 < uint64(w.gen.FoliagePermille) {
			fol := TallGrass
			if mathx.Hash2(w.gen.Seed^0x2207, x, z)%7 == 0 {
				fol = Flower
			}
			t.blocks[w.blockIndex(lx, surface+1, lz)] = fol
			height = surface + 1
		}
	}

	t.heights[w.columnIndex(lx, lz)] = height
}
