package entity

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSpawnAndResolve(t *testing.T) {
	dir := NewDirectory()
	id := dir.Spawn(mgl32.Vec3{1, 2, 3})

	if id.IsZero() {
		t.Fatalf("spawn returned the zero id")
	}
	if !dir.Valid(id) {
		t.Fatalf("expected %s to be live", id)
	}
	pos, ok := dir.Position(id)
	if !ok || pos != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("unexpected position %v ok=%v", pos, ok)
	}
	if err := dir.SetPosition(id, mgl32.Vec3{4, 5, 6}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if pos, _ := dir.Position(id); pos != (mgl32.Vec3{4, 5, 6}) {
		t.Fatalf("position not updated: %v", pos)
	}
	if dir.Len() != 1 {
		t.Fatalf("expected one live entity, got %d", dir.Len())
	}
}

func TestRecycledSlotRejectsStaleID(t *testing.T) {
	dir := NewDirectory()
	first := dir.Spawn(mgl32.Vec3{})
	if !dir.Remove(first) {
		t.Fatalf("expected remove to succeed")
	}
	if dir.Remove(first) {
		t.Fatalf("expected second remove to report not live")
	}

	second := dir.Spawn(mgl32.Vec3{})
	if second.Index() != first.Index() {
		t.Fatalf("expected slot reuse, got %d vs %d", second.Index(), first.Index())
	}
	if second.Generation() == first.Generation() {
		t.Fatalf("expected generation bump on reuse")
	}
	if dir.Valid(first) {
		t.Fatalf("stale id must not resolve")
	}
	if err := dir.SetPosition(first, mgl32.Vec3{}); !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
}

func TestZeroAndOutOfRangeIDs(t *testing.T) {
	dir := NewDirectory()
	if dir.Valid(0) {
		t.Fatalf("zero id must never be live")
	}
	if dir.Valid(makeID(40, 1)) {
		t.Fatalf("out of range id must not be live")
	}
	var nilDir *Directory
	if nilDir.Valid(makeID(1, 1)) {
		t.Fatalf("nil directory must not resolve ids")
	}
}
