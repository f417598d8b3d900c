package spawn

import (
	"go.uber.org/zap"

	"spawnforge.ai/internal/world"
	"spawnforge.ai/internal/world/mathx"
)

// Gate filters newly-discovered tiles into the evaluation queue. Every
// outcome marks the tile processed first, so a tile is considered exactly
// once no matter what happens afterwards.
type Gate struct {
	w     world.World
	queue *Queue
	log   *zap.Logger

	// agentBufferTiles is the Chebyshev radius, in tiles, within which an
	// active agent suppresses evaluation: agents get first claim on
	// freshly explored ground.
	agentBufferTiles int

	active bool
}

func NewGate(w world.World, queue *Queue, agentBufferTiles int, log *zap.Logger) *Gate {
	return &Gate{
		w:                w,
		queue:            queue,
		agentBufferTiles: agentBufferTiles,
		log:              log,
	}
}

// SetActive enables or disables evaluation. Tiles discovered while
// inactive are still marked processed and are never retried after a later
// activation.
func (g *Gate) SetActive(active bool) { g.active = active }

// OnTileLoaded is idempotent: a tile already marked processed is a no-op.
// The processed mark is the first side effect of any path through the gate.
func (g *Gate) OnTileLoaded(tx, tz int) {
	if g.w.TileMeta(tx, tz).Processed {
		return
	}
	g.w.MarkTileProcessed(tx, tz)

	if !g.active {
		return
	}
	cx, cz := world.PackTile(tx, tz).Center()
	buffer := g.agentBufferTiles * world.TileSize
	for _, a := range g.w.AgentPositions() {
		if mathx.Chebyshev(cx, cz, a.X, a.Z) <= buffer {
			return
		}
	}
	if !g.queue.Push(world.PackTile(tx, tz)) {
		g.log.Debug("evaluation queue full, tile dropped",
			zap.Int("tx", tx), zap.Int("tz", tz))
	}
}
