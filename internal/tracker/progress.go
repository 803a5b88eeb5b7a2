package tracker

import (
	"math"

	"navbridge/internal/entity"
	"navbridge/internal/navmesh"
)

// PathProgress is the path-following state of one subject. The waypoint
// buffer is fixed size; count gives the valid prefix.
type PathProgress struct {
	subject     entity.ID
	path        [MaxPathLength]navmesh.Waypoint
	count       int
	currentArea navmesh.AreaRef
	currentGoal navmesh.Vector
	index       int
	update      float64
	updateMin   float64
	updateMax   float64
}

// Progress is a read-only copy of a record's bookkeeping.
type Progress struct {
	Subject     entity.ID
	Count       int
	Index       int
	CurrentArea navmesh.AreaRef
	CurrentGoal navmesh.Vector
	Update      float64
	UpdateMin   float64
	UpdateMax   float64
}

// Completed reports whether every waypoint has been reached.
func (p Progress) Completed() bool {
	return p.Count > 0 && p.Index >= p.Count
}

func (p *PathProgress) snapshot() Progress {
	return Progress{
		Subject:     p.subject,
		Count:       p.count,
		Index:       p.index,
		CurrentArea: p.currentArea,
		CurrentGoal: p.currentGoal,
		Update:      p.update,
		UpdateMin:   p.updateMin,
		UpdateMax:   p.updateMax,
	}
}

// Waypoints copies the valid prefix of the path.
func (p *PathProgress) waypoints() []navmesh.Waypoint {
	out := make([]navmesh.Waypoint, p.count)
	copy(out, p.path[:p.count])
	return out
}

// clampStep maps a requested step onto the valid prefix, reading the last
// known waypoint when past the end.
func (p *PathProgress) clampStep(index int) int {
	if index >= p.count {
		return p.count - 1
	}
	return index
}

// setIndex moves the cursor and refreshes the cached area.
func (p *PathProgress) setIndex(index int) {
	p.index = index
	if index < p.count {
		p.currentArea = p.path[index].Area
	}
}

// normalizeBounds floors both bounds and orders them. A non-finite bound
// falls back to its default.
func normalizeBounds(lo, hi float64) (float64, float64) {
	lo = max(finiteOr(lo, DefaultUpdateMin), MinUpdateInterval)
	hi = max(finiteOr(hi, DefaultUpdateMax), MinUpdateInterval)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// setUpdateMin floors v and caps it at the current max.
func (p *PathProgress) setUpdateMin(v float64) {
	p.updateMin = min(max(v, MinUpdateInterval), p.updateMax)
}

// setUpdateMax floors v and raises it to at least the current min.
func (p *PathProgress) setUpdateMax(v float64) {
	p.updateMax = max(v, MinUpdateInterval, p.updateMin)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
