package spawn

import (
	"fmt"

	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/content"
	"spawnforge.ai/internal/spawn/logic/footprint"
	"spawnforge.ai/internal/spawn/logic/randx"
	"spawnforge.ai/internal/spawn/validate"
	"spawnforge.ai/internal/world"
	"spawnforge.ai/internal/world/mathx"
)

// PlacementSink receives the record of every completed placement. The audit
// log and the status feed both implement it.
type PlacementSink interface {
	PlacementDone(tx, tz int, entryID string, p world.Placement)
}

// Executor writes verified payloads into the world. Placement is
// idempotent at the voxel level: a run that changes nothing leaves no
// record and spends no budget.
type Executor struct {
	w     world.World
	cache *content.Cache
	sink  PlacementSink
	log   *zap.Logger
	lang  string
}

func NewExecutor(w world.World, cache *content.Cache, sink PlacementSink, lang string, log *zap.Logger) *Executor {
	if lang == "" {
		lang = "en"
	}
	return &Executor{w: w, cache: cache, sink: sink, lang: lang, log: log}
}

// Place writes the entry's payload at the validated position. It reports
// whether any voxel actually changed; only then does the placement record
// attach, the spawn budget decrement, and the sink fire.
func (x *Executor) Place(ent *catalog.Entry, res validate.Result, tx, tz int) (bool, error) {
	payload, ok := x.cache.GetVerified(ent.ID, ent.PayloadHash)
	if !ok {
		return false, fmt.Errorf("payload for %s not cached", ent.ID)
	}

	// Catalog metadata is authoritative over whatever geometry the payload
	// document carries.
	g := footprint.Geometry{Size: ent.Size, Anchor: ent.Anchor, Facing: ent.AnchorFacing}

	// Structure-local randomness is keyed to the anchor position so the
	// same spot always gets the same variant.
	sec := mathx.Hash3(x.w.Seed(), res.Pos.X, res.Pos.Y, res.Pos.Z)
	blocks := x.selectBlocks(payload, randx.NewStream(sec))

	// res.Rotation is the net quarter-turn the validator built res.Box
	// with, facing compensation included; writes with any other rotation
	// would leave the claimed footprint.
	changed := 0
	skipped := 0
	for _, pb := range blocks {
		b, ok := x.w.BlockByName(pb.Block)
		if !ok {
			skipped++
			continue
		}
		p := res.Pos.Add(footprint.RotateOffset(g, pb.Pos, res.Rotation))
		if x.w.SetBlock(p, b) {
			changed++
		}
	}
	if skipped > 0 {
		x.log.Warn("payload references unknown blocks",
			zap.String("entry", ent.ID), zap.Int("skipped", skipped))
	}
	if changed == 0 {
		return false, nil
	}

	rec := world.Placement{
		EntryID:     ent.ID,
		EntryKey:    ent.Key,
		Box:         res.Box,
		Rotation:    res.Rotation,
		DisplayName: ent.DisplayName(x.lang),
		Author:      ent.Author,
	}
	x.w.AttachPlacement(tx, tz, rec)
	ent.SpawnCount++

	x.log.Info("structure placed",
		zap.String("entry", ent.ID),
		zap.Int("tx", tx), zap.Int("tz", tz),
		zap.Int("x", res.Pos.X), zap.Int("y", res.Pos.Y), zap.Int("z", res.Pos.Z),
		zap.Int("rotation", res.Rotation*90),
		zap.Int("blocks_changed", changed))
	if x.sink != nil {
		x.sink.PlacementDone(tx, tz, ent.ID, rec)
	}
	return true, nil
}

// selectBlocks merges the payload's base blocks with at most one variant,
// chosen uniformly (including the no-variant case) from the stream.
func (x *Executor) selectBlocks(p *catalog.Payload, st *randx.Stream) []catalog.PayloadBlock {
	if len(p.Variants) == 0 {
		return p.Blocks
	}
	pick := st.Intn(len(p.Variants) + 1)
	if pick == len(p.Variants) {
		return p.Blocks
	}
	v := p.Variants[pick]
	out := make([]catalog.PayloadBlock, 0, len(p.Blocks)+len(v.Blocks))
	out = append(out, p.Blocks...)
	out = append(out, v.Blocks...)
	return out
}
