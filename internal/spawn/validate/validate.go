// Package validate implements the position-search strategies, one per
// placement category. A single search template drives them all: visit the
// tile's four quadrants in seeded-shuffled order, pick one candidate column
// per quadrant, derive candidate elevations the category's way, and try the
// four cardinal orientations at each, running the category's legality check
// over the rotated footprint plus clearance margin.
package validate

import (
	"fmt"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/spawn/logic/footprint"
	"spawnforge.ai/internal/spawn/logic/randx"
	"spawnforge.ai/internal/world"
)

// Result is a legal anchor position and orientation for the structure.
type Result struct {
	Pos      world.Vec3i
	Rotation int        // quarter turns
	Box      world.AABB // footprint without margin
}

// Failure carries every rejection reason the search tried. It is never
// empty: a search that finds nothing still explains itself.
type Failure struct {
	Reasons []string
}

// liquid-search elevation retries for categories that support
// multi-elevation search.
const elevationTries = 3

// Search looks for a legal footprint for the geometry under the rule,
// inside the given tile. All randomness comes from the caller's stream, so
// the outcome is a pure function of (world, stream state, rule, tile).
func Search(w world.World, st *randx.Stream, g footprint.Geometry, rule catalog.Rule, tx, tz int) (Result, *Failure) {
	fail := &Failure{}

	half := world.TileSize / 2
	quads := [4][2]int{{0, 0}, {half, 0}, {0, half}, {half, half}}
	order := [4]int{0, 1, 2, 3}
	st.Shuffle(4, func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, qi := range order {
		x := tx*world.TileSize + quads[qi][0] + st.Intn(half)
		z := tz*world.TileSize + quads[qi][1] + st.Intn(half)

		ys := candidateElevations(w, st, rule, x, z, qi, fail)
		for _, y := range ys {
			pos := world.Vec3i{X: x, Y: y, Z: z}
			if res, ok := tryOrientations(w, g, rule, pos, qi, fail); ok {
				return res, nil
			}
		}
	}

	if len(fail.Reasons) == 0 {
		fail.Reasons = append(fail.Reasons, "no candidate columns in range")
	}
	return Result{}, fail
}

func tryOrientations(w world.World, g footprint.Geometry, rule catalog.Rule, pos world.Vec3i, quad int, fail *Failure) (Result, bool) {
	for face := 0; face < 4; face++ {
		rot := g.WorldRotation(face)
		box := footprint.Box(g, pos, rot)
		mbox := box.Expand(rule.Margin)
		if box.Min.Y < w.MinY() || box.Max.Y > w.MaxY() {
			fail.add(quad, pos, rot, "footprint leaves world vertical bounds")
			continue
		}
		if key, ok := unloadedTile(w, mbox); ok {
			fail.add(quad, pos, rot, fmt.Sprintf("footprint spans unloaded tile %s", key))
			continue
		}
		if reason := legality(w, rule.Category, pos, box, mbox); reason != "" {
			fail.add(quad, pos, rot, reason)
			continue
		}
		return Result{Pos: pos, Rotation: rot, Box: box}, true
	}
	return Result{}, false
}

func (f *Failure) add(quad int, pos world.Vec3i, rot int, reason string) {
	f.Reasons = append(f.Reasons,
		fmt.Sprintf("quad %d anchor (%d,%d,%d) rot %d: %s", quad, pos.X, pos.Y, pos.Z, rot*90, reason))
}

func unloadedTile(w world.World, box world.AABB) (world.TileKey, bool) {
	for _, k := range box.Tiles() {
		tx, tz := k.Unpack()
		if !w.TileLoaded(tx, tz) {
			return k, true
		}
	}
	return 0, false
}

// candidateElevations derives the anchor Y candidates for one column.
// Ground and liquid-surface categories have a single deterministic Y;
// floating, fully-submerged and subterranean searches retry at multiple
// elevations within the rule's range.
func candidateElevations(w world.World, st *randx.Stream, rule catalog.Rule, x, z, quad int, fail *Failure) []int {
	yMin, yMax := clampRange(w, rule)
	if yMin > yMax {
		fail.Reasons = append(fail.Reasons,
			fmt.Sprintf("quad %d column (%d,%d): empty vertical range", quad, x, z))
		return nil
	}

	switch rule.Category {
	case catalog.CategoryGround:
		y := w.Height(x, z) + 1
		if y < yMin || y > yMax {
			fail.Reasons = append(fail.Reasons,
				fmt.Sprintf("quad %d column (%d,%d): surface y=%d outside [%d,%d]", quad, x, z, y, yMin, yMax))
			return nil
		}
		return []int{y}

	case catalog.CategoryFloating:
		ys := make([]int, 0, elevationTries)
		for i := 0; i < elevationTries; i++ {
			ys = append(ys, yMin+st.Intn(yMax-yMin+1))
		}
		return ys

	case catalog.CategorySubmergedFloor:
		// Bottom-up scan for solid floor with liquid directly above.
		for y := yMin; y < yMax; y++ {
			below := w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y, Z: z}))
			at := w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y + 1, Z: z}))
			if below == world.ClassSolid && (at == world.ClassLiquid || at == world.ClassDecor) {
				return []int{y + 1}
			}
		}
		fail.Reasons = append(fail.Reasons,
			fmt.Sprintf("quad %d column (%d,%d): no liquid floor in [%d,%d]", quad, x, z, yMin, yMax))
		return nil

	case catalog.CategorySubmerged:
		ys := make([]int, 0, elevationTries)
		for i := 0; i < elevationTries; i++ {
			y := yMin + st.Intn(yMax-yMin+1)
			if w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y, Z: z})) != world.ClassLiquid {
				fail.Reasons = append(fail.Reasons,
					fmt.Sprintf("quad %d column (%d,%d): y=%d not liquid", quad, x, z, y))
				continue
			}
			ys = append(ys, y)
		}
		return ys

	case catalog.CategoryAboveLiquid:
		// Top-down scan for the liquid surface.
		for y := yMax; y >= yMin; y-- {
			at := w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y, Z: z}))
			if at != world.ClassLiquid {
				continue
			}
			above := w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y + 1, Z: z}))
			if above == world.ClassLiquid {
				continue
			}
			return []int{y + 1}
		}
		fail.Reasons = append(fail.Reasons,
			fmt.Sprintf("quad %d column (%d,%d): no liquid surface in [%d,%d]", quad, x, z, yMin, yMax))
		return nil

	case catalog.CategorySubterranean:
		surface := w.Height(x, z)
		hi := yMax
		if hi >= surface {
			hi = surface - 1
		}
		if hi < yMin {
			fail.Reasons = append(fail.Reasons,
				fmt.Sprintf("quad %d column (%d,%d): no depth below surface y=%d", quad, x, z, surface))
			return nil
		}
		ys := make([]int, 0, elevationTries)
		for i := 0; i < elevationTries; i++ {
			ys = append(ys, yMin+st.Intn(hi-yMin+1))
		}
		return ys
	}

	fail.Reasons = append(fail.Reasons,
		fmt.Sprintf("quad %d column (%d,%d): unknown category %v", quad, x, z, rule.Category))
	return nil
}

func clampRange(w world.World, rule catalog.Rule) (int, int) {
	yMin, yMax := rule.YMin, rule.YMax
	if yMin < w.MinY() {
		yMin = w.MinY()
	}
	if yMax > w.MaxY() {
		yMax = w.MaxY()
	}
	return yMin, yMax
}

// legality runs the category-specific check. An empty string means legal.
func legality(w world.World, cat catalog.Category, pos world.Vec3i, box, mbox world.AABB) string {
	switch cat {
	case catalog.CategoryGround:
		return groundLegal(w, box)
	case catalog.CategoryFloating:
		return floatingLegal(w, mbox)
	case catalog.CategorySubmergedFloor:
		return submergedFloorLegal(w, pos, box)
	case catalog.CategorySubmerged:
		return submergedLegal(w, mbox)
	case catalog.CategoryAboveLiquid:
		return aboveLiquidLegal(w, box, mbox)
	case catalog.CategorySubterranean:
		return subterraneanLegal(w, pos, box)
	}
	return fmt.Sprintf("unknown category %v", cat)
}

func corners(box world.AABB) [4][2]int {
	return [4][2]int{
		{box.Min.X, box.Min.Z},
		{box.Max.X, box.Min.Z},
		{box.Min.X, box.Max.Z},
		{box.Max.X, box.Max.Z},
	}
}

func groundLegal(w world.World, box world.AABB) string {
	for _, c := range corners(box) {
		h := w.Height(c[0], c[1])
		top := w.BlockAt(world.Vec3i{X: c[0], Y: h, Z: c[1]})
		switch w.ClassOf(top) {
		case world.ClassSolid:
		case world.ClassFoliage:
			return fmt.Sprintf("corner (%d,%d): topsoil is foliage", c[0], c[1])
		default:
			return fmt.Sprintf("corner (%d,%d): topsoil not solid", c[0], c[1])
		}
	}
	return ""
}

func floatingLegal(w world.World, mbox world.AABB) string {
	for y := mbox.Min.Y; y <= mbox.Max.Y; y++ {
		for z := mbox.Min.Z; z <= mbox.Max.Z; z++ {
			for x := mbox.Min.X; x <= mbox.Max.X; x++ {
				if w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y, Z: z})) != world.ClassAir {
					return fmt.Sprintf("voxel (%d,%d,%d) not empty", x, y, z)
				}
			}
		}
	}
	return ""
}

func submergedFloorLegal(w world.World, pos world.Vec3i, box world.AABB) string {
	floorY := box.Min.Y - 1
	cs := corners(box)
	check := append(cs[:], [2]int{pos.X, pos.Z})
	for _, c := range check {
		if w.ClassOf(w.BlockAt(world.Vec3i{X: c[0], Y: floorY, Z: c[1]})) != world.ClassSolid {
			return fmt.Sprintf("no solid floor beneath (%d,%d)", c[0], c[1])
		}
	}
	// Liquid (or ignorable decoration) at anchor level and at each
	// corner's top-of-structure level.
	if cl := w.ClassOf(w.BlockAt(pos)); cl != world.ClassLiquid && cl != world.ClassDecor {
		return fmt.Sprintf("anchor (%d,%d,%d) not in liquid", pos.X, pos.Y, pos.Z)
	}
	for _, c := range corners(box) {
		cl := w.ClassOf(w.BlockAt(world.Vec3i{X: c[0], Y: box.Max.Y, Z: c[1]}))
		if cl != world.ClassLiquid && cl != world.ClassDecor {
			return fmt.Sprintf("corner (%d,%d) top y=%d not in liquid", c[0], c[1], box.Max.Y)
		}
	}
	return ""
}

func submergedLegal(w world.World, mbox world.AABB) string {
	for y := mbox.Min.Y; y <= mbox.Max.Y; y++ {
		for z := mbox.Min.Z; z <= mbox.Max.Z; z++ {
			for x := mbox.Min.X; x <= mbox.Max.X; x++ {
				switch w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y, Z: z})) {
				case world.ClassLiquid, world.ClassDecor:
				case world.ClassSolid:
					return fmt.Sprintf("solid terrain voxel at (%d,%d,%d)", x, y, z)
				default:
					return fmt.Sprintf("voxel (%d,%d,%d) not submerged", x, y, z)
				}
			}
		}
	}
	return ""
}

func aboveLiquidLegal(w world.World, box, mbox world.AABB) string {
	// Liquid directly beneath the whole footprint.
	below := box.Min.Y - 1
	for z := box.Min.Z; z <= box.Max.Z; z++ {
		for x := box.Min.X; x <= box.Max.X; x++ {
			if w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: below, Z: z})) != world.ClassLiquid {
				return fmt.Sprintf("no liquid beneath (%d,%d)", x, z)
			}
		}
	}
	// Empty or replaceable cover from the anchor level up through the
	// structure's height plus margin.
	for y := box.Min.Y; y <= mbox.Max.Y; y++ {
		for z := box.Min.Z; z <= box.Max.Z; z++ {
			for x := box.Min.X; x <= box.Max.X; x++ {
				switch w.ClassOf(w.BlockAt(world.Vec3i{X: x, Y: y, Z: z})) {
				case world.ClassAir, world.ClassReplaceable:
				default:
					return fmt.Sprintf("voxel (%d,%d,%d) not clear above surface", x, y, z)
				}
			}
		}
	}
	return ""
}

func subterraneanLegal(w world.World, pos world.Vec3i, box world.AABB) string {
	surface := w.Height(pos.X, pos.Z)
	if pos.Y >= surface {
		return fmt.Sprintf("anchor y=%d not below terrain surface y=%d", pos.Y, surface)
	}
	// The anchor must not see the sky: at least one solid voxel somewhere
	// above the structure in the anchor's column.
	for y := box.Max.Y + 1; y <= w.MaxY(); y++ {
		if w.ClassOf(w.BlockAt(world.Vec3i{X: pos.X, Y: y, Z: pos.Z})) == world.ClassSolid {
			return ""
		}
	}
	return fmt.Sprintf("anchor (%d,%d,%d) has clear path to sky", pos.X, pos.Y, pos.Z)
}
