package spawn

import (
	"sync"

	"spawnforge.ai/internal/world"
)

// Queue decouples bursty tile-load events from the multi-candidate
// evaluation work: a bounded FIFO drained at a fixed rate by the tick loop,
// so a large freshly-explored area never stalls the world-loading path.
type Queue struct {
	mu    sync.Mutex
	items []world.TileKey
	cap   int
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{cap: capacity}
}

// Push appends a tile; returns false if the queue is full. A dropped tile
// was already marked processed and will not come back.
func (q *Queue) Push(k world.TileKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, k)
	return true
}

// PopN removes and returns up to n tiles in FIFO order.
func (q *Queue) PopN(n int) []world.TileKey {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}
	out := make([]world.TileKey, n)
	copy(out, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return out
}

func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending tile; called on world unload. Pending tiles
// were already marked processed, so they are lost permanently.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
