// Package navmesh holds the area graph used for pathfinding: areas, ladders,
// nearest-area queries and the path search itself.
package navmesh

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Vector is a world-space position.
type Vector = mgl32.Vec3

const (
	// MaxPathLength bounds the number of waypoints a single path may hold.
	MaxPathLength = 256
	// StepHeight is the tallest rise that can be walked without jumping.
	StepHeight = 18.0
)

var (
	ErrMeshNotLoaded = errors.New("navmesh: mesh not loaded")
	ErrInvalidArea   = errors.New("navmesh: invalid area")
	ErrInvalidLadder = errors.New("navmesh: invalid ladder")
	ErrStaleRef      = errors.New("navmesh: reference from an unloaded mesh")
	ErrNoRoute       = errors.New("navmesh: no route to goal")
	ErrPathTooLong   = errors.New("navmesh: path exceeds maximum length")
)

// NavError is the status reported by a mesh load.
type NavError int

const (
	NavOK NavError = iota
	NavCantAccessFile
	NavInvalidFile
	NavBadFileVersion
	NavCorruptData
)

func (e NavError) String() string {
	switch e {
	case NavOK:
		return "ok"
	case NavCantAccessFile:
		return "cant_access_file"
	case NavInvalidFile:
		return "invalid_file"
	case NavBadFileVersion:
		return "bad_file_version"
	case NavCorruptData:
		return "corrupt_data"
	default:
		return fmt.Sprintf("nav_error(%d)", int(e))
	}
}

// TraverseType records how a waypoint's area is entered from the previous one.
type TraverseType uint8

const (
	GoNorth TraverseType = iota
	GoEast
	GoSouth
	GoWest
	GoLadderUp
	GoLadderDown
	GoJump
	NumTraverseTypes
)

// TraverseNone marks the first waypoint of a path, which is not entered from
// anywhere.
const TraverseNone = NumTraverseTypes

var traverseNames = [...]string{"north", "east", "south", "west", "ladder_up", "ladder_down", "jump", "none"}

func (t TraverseType) String() string {
	if int(t) < len(traverseNames) {
		return traverseNames[t]
	}
	return fmt.Sprintf("traverse(%d)", uint8(t))
}

// Direction indexes an area's planar connection lists.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
	NumDirections
)

func (d Direction) traverse() TraverseType {
	return TraverseType(d)
}

// Attribute is a bit set of area traversal hints.
type Attribute uint8

const (
	AttrCrouch  Attribute = 0x01
	AttrJump    Attribute = 0x02
	AttrPrecise Attribute = 0x04
	AttrNoJump  Attribute = 0x08
)

var attributeNames = []struct {
	flag Attribute
	name string
}{
	{AttrCrouch, "crouch"},
	{AttrJump, "jump"},
	{AttrPrecise, "precise"},
	{AttrNoJump, "no_jump"},
}

func (a Attribute) Has(flag Attribute) bool {
	return a&flag == flag
}

func (a Attribute) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, entry := range attributeNames {
		if a.Has(entry.flag) {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseAttributes converts flag names into an Attribute set.
func ParseAttributes(names []string) (Attribute, error) {
	var out Attribute
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		found := false
		for _, entry := range attributeNames {
			if entry.name == name {
				out |= entry.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown area attribute %q", raw)
		}
	}
	return out, nil
}

// Names lists the flag names set in a.
func (a Attribute) Names() []string {
	var out []string
	for _, entry := range attributeNames {
		if a.Has(entry.flag) {
			out = append(out, entry.name)
		}
	}
	return out
}

// RouteType selects the cost weighting used by the path search.
type RouteType uint8

const (
	RouteFastest RouteType = iota
	RouteSafest
)

func (r RouteType) String() string {
	switch r {
	case RouteFastest:
		return "fastest"
	case RouteSafest:
		return "safest"
	default:
		return fmt.Sprintf("route(%d)", uint8(r))
	}
}

// ParseRoute accepts "fastest" and "safest"; an empty string is fastest.
func ParseRoute(raw string) (RouteType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "fastest":
		return RouteFastest, nil
	case "safest":
		return RouteSafest, nil
	default:
		return 0, fmt.Errorf("unknown route policy %q", raw)
	}
}

// AreaRef is a non-owning, generation-checked reference to an area. The zero
// value refers to no area.
type AreaRef struct {
	ID         uint32 `json:"id"`
	Generation uint32 `json:"generation"`
}

func (r AreaRef) IsZero() bool {
	return r.ID == 0
}

// LadderRef is a non-owning, generation-checked reference to a ladder.
type LadderRef struct {
	ID         uint32 `json:"id"`
	Generation uint32 `json:"generation"`
}

func (r LadderRef) IsZero() bool {
	return r.ID == 0
}

// Waypoint is one step of a computed path.
type Waypoint struct {
	Area   AreaRef      `json:"area"`
	How    TraverseType `json:"how"`
	Pos    Vector       `json:"pos"`
	Ladder LadderRef    `json:"ladder"`
}

// PlanarDistance is the distance between a and b ignoring height.
func PlanarDistance(a, b Vector) float32 {
	return mgl32.Vec2{a.X() - b.X(), a.Y() - b.Y()}.Len()
}

// Distance is the full 3-D distance between a and b.
func Distance(a, b Vector) float32 {
	return a.Sub(b).Len()
}
