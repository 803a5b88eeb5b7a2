package navmesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Extent is an axis-aligned area footprint. Lo.Z and Hi.Z are the floor
// heights at the Lo and Hi corners; the floor is interpolated between them.
type Extent struct {
	Lo Vector
	Hi Vector
}

// Area is a convex walkable region of the mesh.
type Area struct {
	ID         uint32
	Extent     Extent
	Attributes Attribute

	connect   [NumDirections][]uint32
	laddersUp []uint32
	laddersDn []uint32
}

// Center is the floor point at the middle of the area.
func (a *Area) Center() Vector {
	x := (a.Extent.Lo.X() + a.Extent.Hi.X()) / 2
	y := (a.Extent.Lo.Y() + a.Extent.Hi.Y()) / 2
	return Vector{x, y, a.FloorZ(x, y)}
}

// Contains reports whether pos lies within the planar footprint.
func (a *Area) Contains(pos Vector) bool {
	return pos.X() >= a.Extent.Lo.X() && pos.X() <= a.Extent.Hi.X() &&
		pos.Y() >= a.Extent.Lo.Y() && pos.Y() <= a.Extent.Hi.Y()
}

// FloorZ interpolates the floor height at (x, y).
func (a *Area) FloorZ(x, y float32) float32 {
	dx := a.Extent.Hi.X() - a.Extent.Lo.X()
	dy := a.Extent.Hi.Y() - a.Extent.Lo.Y()
	var u, v float32
	if dx > 0 {
		u = mgl32.Clamp((x-a.Extent.Lo.X())/dx, 0, 1)
	}
	if dy > 0 {
		v = mgl32.Clamp((y-a.Extent.Lo.Y())/dy, 0, 1)
	}
	t := (u + v) / 2
	return a.Extent.Lo.Z() + (a.Extent.Hi.Z()-a.Extent.Lo.Z())*t
}

// ClosestPoint projects pos onto the area's floor.
func (a *Area) ClosestPoint(pos Vector) Vector {
	x := mgl32.Clamp(pos.X(), a.Extent.Lo.X(), a.Extent.Hi.X())
	y := mgl32.Clamp(pos.Y(), a.Extent.Lo.Y(), a.Extent.Hi.Y())
	return Vector{x, y, a.FloorZ(x, y)}
}

// Connections lists the neighbour area ids in direction d.
func (a *Area) Connections(d Direction) []uint32 {
	if d >= NumDirections {
		return nil
	}
	return a.connect[d]
}

// Ladder is a climbable connector between a bottom and a top area.
type Ladder struct {
	ID         uint32
	Top        Vector
	Bottom     Vector
	Width      float32
	TopArea    uint32
	BottomArea uint32
}

// Length is the climb distance.
func (l *Ladder) Length() float32 {
	return l.Top.Z() - l.Bottom.Z()
}

// Mesh is an immutable area graph.
type Mesh struct {
	areas   []*Area
	byID    map[uint32]*Area
	ladders map[uint32]*Ladder
}

// AreaSpec describes one area when building a mesh.
type AreaSpec struct {
	ID         uint32
	Extent     Extent
	Attributes Attribute
	Connect    [NumDirections][]uint32
}

// NewMesh validates the area and ladder specs and links them into a graph.
// Dangling connection or ladder references are reported as errors.
func NewMesh(areas []AreaSpec, ladders []Ladder) (*Mesh, error) {
	m := &Mesh{
		areas:   make([]*Area, 0, len(areas)),
		byID:    make(map[uint32]*Area, len(areas)),
		ladders: make(map[uint32]*Ladder, len(ladders)),
	}
	for _, spec := range areas {
		if spec.ID == 0 {
			return nil, fmt.Errorf("area id 0 is reserved")
		}
		if _, dup := m.byID[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate area id %d", spec.ID)
		}
		if spec.Extent.Hi.X() < spec.Extent.Lo.X() || spec.Extent.Hi.Y() < spec.Extent.Lo.Y() {
			return nil, fmt.Errorf("area %d has an inverted extent", spec.ID)
		}
		area := &Area{ID: spec.ID, Extent: spec.Extent, Attributes: spec.Attributes}
		for d := range spec.Connect {
			area.connect[d] = append([]uint32(nil), spec.Connect[d]...)
		}
		m.areas = append(m.areas, area)
		m.byID[area.ID] = area
	}
	for _, area := range m.areas {
		for d := range area.connect {
			for _, id := range area.connect[d] {
				if _, ok := m.byID[id]; !ok {
					return nil, fmt.Errorf("area %d connects to unknown area %d", area.ID, id)
				}
			}
		}
	}
	for i := range ladders {
		ladder := ladders[i]
		if ladder.ID == 0 {
			return nil, fmt.Errorf("ladder id 0 is reserved")
		}
		if _, dup := m.ladders[ladder.ID]; dup {
			return nil, fmt.Errorf("duplicate ladder id %d", ladder.ID)
		}
		bottom, ok := m.byID[ladder.BottomArea]
		if !ok {
			return nil, fmt.Errorf("ladder %d has unknown bottom area %d", ladder.ID, ladder.BottomArea)
		}
		top, ok := m.byID[ladder.TopArea]
		if !ok {
			return nil, fmt.Errorf("ladder %d has unknown top area %d", ladder.ID, ladder.TopArea)
		}
		if ladder.Top.Z() < ladder.Bottom.Z() {
			return nil, fmt.Errorf("ladder %d top is below its bottom", ladder.ID)
		}
		m.ladders[ladder.ID] = &ladder
		bottom.laddersUp = append(bottom.laddersUp, ladder.ID)
		top.laddersDn = append(top.laddersDn, ladder.ID)
	}
	sort.Slice(m.areas, func(i, j int) bool { return m.areas[i].ID < m.areas[j].ID })
	return m, nil
}

func (m *Mesh) AreaCount() int {
	if m == nil {
		return 0
	}
	return len(m.areas)
}

func (m *Mesh) LadderCount() int {
	if m == nil {
		return 0
	}
	return len(m.ladders)
}

// Area looks up an area by id.
func (m *Mesh) Area(id uint32) (*Area, bool) {
	if m == nil {
		return nil, false
	}
	area, ok := m.byID[id]
	return area, ok
}

// Ladder looks up a ladder by id.
func (m *Mesh) Ladder(id uint32) (*Ladder, bool) {
	if m == nil {
		return nil, false
	}
	ladder, ok := m.ladders[id]
	return ladder, ok
}

// Areas returns the areas ordered by id.
func (m *Mesh) Areas() []*Area {
	if m == nil {
		return nil
	}
	return m.areas
}

// Ladders returns the ladders ordered by id.
func (m *Mesh) Ladders() []*Ladder {
	if m == nil {
		return nil
	}
	out := make([]*Ladder, 0, len(m.ladders))
	for _, ladder := range m.ladders {
		out = append(out, ladder)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NearestArea finds the area best matching pos. Areas whose footprint
// contains pos win, preferring the floor closest in height; otherwise the area
// with the closest floor point is chosen. With ignoreVertical only planar
// distance is compared.
func (m *Mesh) NearestArea(pos Vector, ignoreVertical bool) (*Area, bool) {
	if m == nil || len(m.areas) == 0 {
		return nil, false
	}

	var best *Area
	bestScore := float32(math.MaxFloat32)
	for _, area := range m.areas {
		if !area.Contains(pos) {
			continue
		}
		if ignoreVertical {
			return area, true
		}
		dz := float32(math.Abs(float64(area.FloorZ(pos.X(), pos.Y()) - pos.Z())))
		if dz < bestScore {
			best = area
			bestScore = dz
		}
	}
	if best != nil {
		return best, true
	}

	for _, area := range m.areas {
		closest := area.ClosestPoint(pos)
		var d float32
		if ignoreVertical {
			d = PlanarDistance(closest, pos)
		} else {
			d = Distance(closest, pos)
		}
		if d < bestScore {
			best = area
			bestScore = d
		}
	}
	return best, best != nil
}
