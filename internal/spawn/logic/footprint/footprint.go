// Package footprint holds the pure geometry of a structure's placed
// footprint: quarter-turn rotation around the anchor and the resulting world
// bounding box.
package footprint

import "spawnforge.ai/internal/world"

// NormalizeRotation converts a rotation value into a stable quarter-turn
// count in [0,3]. It accepts either quarter-turns (0..3) or degrees
// (multiples of 90).
func NormalizeRotation(r int) int {
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot*90 degrees
// clockwise. rot must be a normalized quarter-turn count in [0,3].
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default: // 3
		return -z, x
	}
}

// Geometry describes a structure's local-space extent: its size and the
// anchor point that gets aligned to the chosen world position.
type Geometry struct {
	Size   [3]int // width (x), height (y), depth (z)
	Anchor [3]int // inside [0,Size)
	Facing int    // quarter-turn the stored payload's entrance faces
}

// WorldRotation converts a desired world-space facing into the quarter-turn
// to apply to the stored payload. The same value must drive the bounding
// box, the occupancy claim and the block writes.
func (g Geometry) WorldRotation(face int) int {
	return NormalizeRotation(face - g.Facing)
}

// RotateOffset maps a local-space offset (relative to the anchor) into a
// world-space offset for the given rotation.
func RotateOffset(g Geometry, local [3]int, rot int) world.Vec3i {
	rx, rz := RotateXZ(local[0]-g.Anchor[0], local[2]-g.Anchor[2], rot)
	return world.Vec3i{X: rx, Y: local[1] - g.Anchor[1], Z: rz}
}

// Box computes the inclusive world bounding box of the structure placed
// with its anchor at pos under the given rotation.
func Box(g Geometry, pos world.Vec3i, rot int) world.AABB {
	// Opposite corners of the local extent, rotated.
	ax, az := RotateXZ(-g.Anchor[0], -g.Anchor[2], rot)
	bx, bz := RotateXZ(g.Size[0]-1-g.Anchor[0], g.Size[2]-1-g.Anchor[2], rot)
	minX, maxX := ax, bx
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minZ, maxZ := az, bz
	if minZ > maxZ {
		minZ, maxZ = maxZ, minZ
	}
	return world.AABB{
		Min: world.Vec3i{X: pos.X + minX, Y: pos.Y - g.Anchor[1], Z: pos.Z + minZ},
		Max: world.Vec3i{X: pos.X + maxX, Y: pos.Y - g.Anchor[1] + g.Size[1] - 1, Z: pos.Z + maxZ},
	}
}
