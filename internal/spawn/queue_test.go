package spawn

import (
	"testing"

	"spawnforge.ai/internal/world"
)

func TestQueueFIFOAndBound(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 3; i++ {
		if !q.Push(world.PackTile(i, 0)) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if q.Push(world.PackTile(9, 9)) {
		t.Fatal("push beyond capacity accepted")
	}
	if q.Depth() != 3 {
		t.Fatalf("depth = %d, want 3", q.Depth())
	}

	got := q.PopN(2)
	if len(got) != 2 {
		t.Fatalf("popped %d, want 2", len(got))
	}
	for i, k := range got {
		if k != world.PackTile(i, 0) {
			t.Fatalf("pop order broken at %d: %s", i, k)
		}
	}
	if rest := q.PopN(10); len(rest) != 1 || rest[0] != world.PackTile(2, 0) {
		t.Fatalf("unexpected remainder %v", rest)
	}
	if q.PopN(1) != nil {
		t.Fatal("pop from empty queue returned items")
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(8)
	q.Push(world.PackTile(1, 1))
	q.Push(world.PackTile(2, 2))
	q.Clear()
	if q.Depth() != 0 {
		t.Fatalf("depth after clear = %d", q.Depth())
	}
}
