package world

import (
	"fmt"

	"spawnforge.ai/internal/world/mathx"
)

// TileSize is the edge length of one tile (the unit of discovery and
// occupancy tracking) in voxels.
const TileSize = 16

type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// AABB is an inclusive axis-aligned box in voxel coordinates.
type AABB struct {
	Min Vec3i
	Max Vec3i
}

func (b AABB) Contains(p Vec3i) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) Intersects(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// Expand grows the box by m voxels on every axis.
func (b AABB) Expand(m int) AABB {
	return AABB{
		Min: Vec3i{b.Min.X - m, b.Min.Y - m, b.Min.Z - m},
		Max: Vec3i{b.Max.X + m, b.Max.Y + m, b.Max.Z + m},
	}
}

// Tiles returns the keys of every tile the box touches on the XZ plane.
func (b AABB) Tiles() []TileKey {
	minTX := mathx.FloorDiv(b.Min.X, TileSize)
	maxTX := mathx.FloorDiv(b.Max.X, TileSize)
	minTZ := mathx.FloorDiv(b.Min.Z, TileSize)
	maxTZ := mathx.FloorDiv(b.Max.Z, TileSize)
	keys := make([]TileKey, 0, (maxTX-minTX+1)*(maxTZ-minTZ+1))
	for tz := minTZ; tz <= maxTZ; tz++ {
		for tx := minTX; tx <= maxTX; tx++ {
			keys = append(keys, PackTile(tx, tz))
		}
	}
	return keys
}

// TileKey packs a (tileX, tileZ) pair into 64 bits.
type TileKey uint64

func PackTile(tx, tz int) TileKey {
	return TileKey(uint64(uint32(int32(tx)))<<32 | uint64(uint32(int32(tz))))
}

func (k TileKey) Unpack() (tx, tz int) {
	return int(int32(uint32(k >> 32))), int(int32(uint32(k)))
}

func (k TileKey) String() string {
	tx, tz := k.Unpack()
	return fmt.Sprintf("(%d,%d)", tx, tz)
}

// Center returns the block coordinates of the tile's center column.
func (k TileKey) Center() (x, z int) {
	tx, tz := k.Unpack()
	return tx*TileSize + TileSize/2, tz*TileSize + TileSize/2
}

// Block is a palette id for one voxel's content.
type Block uint16

// BlockClass partitions the palette into the classes placement legality
// cares about.
type BlockClass uint8

const (
	ClassAir BlockClass = iota
	ClassSolid
	ClassLiquid
	// ClassFoliage covers surface growth (tall grass, flowers) that
	// disqualifies topsoil but is not terrain.
	ClassFoliage
	// ClassDecor covers ignorable underwater decoration (kelp, coral).
	ClassDecor
	// ClassReplaceable covers thin overwritable cover (snow layers, lily
	// pads, small flora).
	ClassReplaceable
)

// Placement is the immutable record attached to a tile once a structure has
// been placed into it. Written at most once per tile.
type Placement struct {
	EntryID     string `json:"entry_id"`
	EntryKey    int64  `json:"entry_key"`
	Box         AABB   `json:"box"`
	Rotation    int    `json:"rotation"`
	DisplayName string `json:"display_name,omitempty"`
	Author      string `json:"author,omitempty"`
}

// TileMeta is the small metadata record the placement core attaches to a
// tile. Processed is set exactly once, before any other side effect of an
// evaluation pass.
type TileMeta struct {
	Processed bool
	Placed    *Placement
}

// World is the surface the placement pipeline consumes from the
// world-hosting layer. Implementations must be safe to call from the single
// tick goroutine; they are not required to be safe for concurrent use.
type World interface {
	Seed() int64
	MinY() int
	MaxY() int

	// TileLoaded reports whether the tile's voxel data is resident.
	TileLoaded(tx, tz int) bool
	// Height returns the Y of the topmost non-air voxel in the column.
	Height(x, z int) int
	BlockAt(p Vec3i) Block
	// SetBlock writes a voxel and reports whether the content changed.
	SetBlock(p Vec3i, b Block) bool
	ClassOf(b Block) BlockClass
	// BlockByName resolves a payload block id to a palette id.
	BlockByName(name string) (Block, bool)
	// RegionTag classifies the location for placement-rule matching.
	RegionTag(x, z int) string

	AgentPositions() []Vec3i

	TileMeta(tx, tz int) TileMeta
	MarkTileProcessed(tx, tz int)
	AttachPlacement(tx, tz int, p Placement)
}
