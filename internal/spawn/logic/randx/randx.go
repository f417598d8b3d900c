// Package randx provides the deterministic pseudo-random stream the
// placement pipeline draws from. For a fixed world seed, catalog identity
// and tile coordinate the stream is identical across processes, so a tile
// always gets the same spawn decision no matter when or where it is
// evaluated.
package randx

import "spawnforge.ai/internal/world/mathx"

// Stream is a splitmix-style sequence. Not safe for concurrent use; each
// tile evaluation owns its own stream.
type Stream struct {
	state uint64
}

// NewTileStream seeds a stream from worldSeed ⊕ hash(catalogID) ⊕ tileX ⊕
// tileZ. The coordinates are pre-mixed so neighboring tiles do not produce
// correlated sequences.
func NewTileStream(worldSeed int64, catalogID string, tx, tz int) *Stream {
	v := uint64(worldSeed) ^
		mathx.HashString(catalogID) ^
		mathx.Hash2(worldSeed, tx, tz)
	return &Stream{state: v}
}

// NewStream seeds a stream directly; used for structure-local randomness
// derived from a secondary seed.
func NewStream(seed uint64) *Stream {
	return &Stream{state: seed}
}

func (s *Stream) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	return mathx.Mix64(s.state)
}

// Float64 returns a draw in [0,1).
func (s *Stream) Float64() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// Intn returns a draw in [0,n). n must be > 0.
func (s *Stream) Intn(n int) int {
	return int(s.next() % uint64(n))
}

// Shuffle performs a Fisher–Yates shuffle of n elements.
func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}
