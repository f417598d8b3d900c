package spawn

import (
	"testing"

	"spawnforge.ai/internal/world"
)

func box(minX, minZ, maxX, maxZ int) world.AABB {
	return world.AABB{
		Min: world.Vec3i{X: minX, Y: 0, Z: minZ},
		Max: world.Vec3i{X: maxX, Y: 10, Z: maxZ},
	}
}

func TestClaimBlocksOverlap(t *testing.T) {
	o := NewOccupancy()
	a := box(0, 0, 20, 20) // spans tiles (0,0) and (1,1)
	if o.AnyClaimed(a) {
		t.Fatal("fresh tracker reports claims")
	}
	o.Claim(a)
	if !o.AnyClaimed(box(18, 18, 30, 30)) {
		t.Fatal("overlapping box not blocked")
	}
	if o.AnyClaimed(box(40, 40, 50, 50)) {
		t.Fatal("distant box blocked")
	}
	if o.Len() != 4 {
		t.Fatalf("claimed %d tiles, want 4", o.Len())
	}
}

func TestClaimSharedTileBlocksEvenWithoutVoxelOverlap(t *testing.T) {
	o := NewOccupancy()
	o.Claim(box(0, 0, 2, 2))
	// Different voxels, same tile.
	if !o.AnyClaimed(box(10, 10, 12, 12)) {
		t.Fatal("occupancy is per tile, not per voxel")
	}
}

func TestReset(t *testing.T) {
	o := NewOccupancy()
	o.Claim(box(0, 0, 5, 5))
	o.Reset()
	if o.Len() != 0 || o.AnyClaimed(box(0, 0, 5, 5)) {
		t.Fatal("reset did not clear claims")
	}
}
