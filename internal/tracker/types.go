// Package tracker keeps one path-following record per subject: the waypoints
// of its current path, how far along it is, and when its progress is next
// re-checked against the subject's live position.
package tracker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"navbridge/internal/navmesh"
)

const (
	// MaxPathLength is the waypoint capacity of a record.
	MaxPathLength = navmesh.MaxPathLength

	DefaultUpdateMin float64 = 0.4
	DefaultUpdateMax float64 = 0.6
	// MinUpdateInterval is the floor applied to both recheck bounds.
	MinUpdateInterval float64 = 0.1
)

var (
	ErrMeshNotLoaded    = navmesh.ErrMeshNotLoaded
	ErrInvalidArea      = navmesh.ErrInvalidArea
	ErrInvalidSubject   = errors.New("tracker: subject is not live")
	ErrNotFound         = errors.New("tracker: not found")
	ErrIndexOutOfRange  = errors.New("tracker: step index out of range")
	ErrUnknownField     = errors.New("tracker: unknown field")
	ErrFieldNotWritable = errors.New("tracker: field is read-only")
	ErrValueKind        = errors.New("tracker: value kind does not match field")
	ErrNonFinite        = errors.New("tracker: value is not finite")
	ErrEmptyPath        = errors.New("tracker: path has no waypoints")
)

// Handle is an opaque reference to a tracked record. Handles are never
// reused, so a destroyed handle stays invalid. The zero handle is null.
type Handle uint64

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// DestroyResult reports whether a destroy call found something to remove.
type DestroyResult uint8

const (
	NotFound DestroyResult = iota
	Removed
)

func (r DestroyResult) Found() bool {
	return r == Removed
}

// Field names a readable slot of a record.
type Field uint8

const (
	// FieldPath is the goal position of a step.
	FieldPath Field = iota
	// FieldPathFlags is the attribute set of a step's area.
	FieldPathFlags
	// FieldPathHow is the traverse type of a step.
	FieldPathHow
	FieldArea
	FieldGoal
	FieldLength
	FieldIndex
	FieldUpdate
	FieldUpdateMin
	FieldUpdateMax
	numFields
)

var fieldNames = [numFields]string{
	"path", "path_flags", "path_how", "area", "goal", "length", "index", "update", "update_min", "update_max",
}

func (f Field) String() string {
	if f < numFields {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	return f < numFields
}

// stepped fields accept an explicit step index.
func (f Field) stepped() bool {
	switch f {
	case FieldPath, FieldPathFlags, FieldPathHow, FieldArea:
		return true
	}
	return false
}

// ParseField resolves a field by name.
func ParseField(raw string) (Field, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for i, candidate := range fieldNames {
		if candidate == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, raw)
}

// ValueKind tags the payload carried by a Value.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindVector
	KindInt
	KindFloat
	KindArea
)

func (k ValueKind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindArea:
		return "area"
	default:
		return "none"
	}
}

// Value is a typed field value. Only the member matching Kind is meaningful.
type Value struct {
	Kind  ValueKind
	Vec   navmesh.Vector
	Int   int
	Float float64
	Area  navmesh.AreaRef
}

func VectorValue(v navmesh.Vector) Value { return Value{Kind: KindVector, Vec: v} }

func IntValue(v int) Value { return Value{Kind: KindInt, Int: v} }

func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

func AreaValue(ref navmesh.AreaRef) Value { return Value{Kind: KindArea, Area: ref} }

// asFloat accepts float and int values.
func (v Value) asFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindInt:
		return float64(v.Int), true
	}
	return 0, false
}
