// Package entity resolves subject handles to their live simulation state.
package entity

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrNotLive = errors.New("entity: handle is not live")

// ID is a generation-checked entity handle: the low 32 bits index a slot and
// the high 32 bits hold the slot's generation at spawn time. The zero ID is
// never live.
type ID uint64

func makeID(index, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32 {
	return uint32(id)
}

func (id ID) Generation() uint32 {
	return uint32(id >> 32)
}

func (id ID) IsZero() bool {
	return id == 0
}

func (id ID) String() string {
	if id == 0 {
		return "none"
	}
	return fmt.Sprintf("%d#%d", id.Index(), id.Generation())
}

type slot struct {
	generation uint32
	live       bool
	position   mgl32.Vec3
}

// Directory is a slot table of live entities. Slots are recycled with a bumped
// generation so stale IDs never resolve.
type Directory struct {
	slots []slot
	free  []uint32
	live  int
}

func NewDirectory() *Directory {
	// slot 0 is reserved so that ID(0) is never handed out
	return &Directory{slots: make([]slot, 1)}
}

// Spawn registers a new entity at pos.
func (d *Directory) Spawn(pos mgl32.Vec3) ID {
	var index uint32
	if n := len(d.free); n > 0 {
		index = d.free[n-1]
		d.free = d.free[:n-1]
	} else {
		index = uint32(len(d.slots))
		d.slots = append(d.slots, slot{})
	}
	s := &d.slots[index]
	s.generation++
	s.live = true
	s.position = pos
	d.live++
	return makeID(index, s.generation)
}

// Remove retires id. Returns false when id was not live.
func (d *Directory) Remove(id ID) bool {
	s, ok := d.lookup(id)
	if !ok {
		return false
	}
	s.live = false
	d.free = append(d.free, id.Index())
	d.live--
	return true
}

// Valid reports whether id refers to a live entity.
func (d *Directory) Valid(id ID) bool {
	_, ok := d.lookup(id)
	return ok
}

// Position returns the live position of id.
func (d *Directory) Position(id ID) (mgl32.Vec3, bool) {
	s, ok := d.lookup(id)
	if !ok {
		return mgl32.Vec3{}, false
	}
	return s.position, true
}

// SetPosition moves a live entity.
func (d *Directory) SetPosition(id ID, pos mgl32.Vec3) error {
	s, ok := d.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLive, id)
	}
	s.position = pos
	return nil
}

// Len is the number of live entities.
func (d *Directory) Len() int {
	return d.live
}

func (d *Directory) lookup(id ID) (*slot, bool) {
	if d == nil || id.IsZero() {
		return nil, false
	}
	index := id.Index()
	if index == 0 || int(index) >= len(d.slots) {
		return nil, false
	}
	s := &d.slots[index]
	if !s.live || s.generation != id.Generation() {
		return nil, false
	}
	return s, true
}
