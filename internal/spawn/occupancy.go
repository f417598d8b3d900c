package spawn

import (
	"sync"

	"spawnforge.ai/internal/world"
)

// Occupancy is the process-lifetime set of claimed tiles. Claims may be
// checked from background goroutines (status reporting) while the tick
// goroutine claims, so the set is guarded. It is never persisted: across
// sessions, overlap is prevented by placed structures physically occupying
// world voxels.
type Occupancy struct {
	mu      sync.Mutex
	claimed map[world.TileKey]struct{}
}

func NewOccupancy() *Occupancy {
	return &Occupancy{claimed: map[world.TileKey]struct{}{}}
}

// Claim marks every tile the box touches.
func (o *Occupancy) Claim(box world.AABB) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range box.Tiles() {
		o.claimed[k] = struct{}{}
	}
}

// AnyClaimed reports whether any tile the box touches is already claimed.
func (o *Occupancy) AnyClaimed(box world.AABB) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range box.Tiles() {
		if _, ok := o.claimed[k]; ok {
			return true
		}
	}
	return false
}

func (o *Occupancy) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.claimed)
}

// Reset clears every claim; called on world unload.
func (o *Occupancy) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claimed = map[world.TileKey]struct{}{}
}
