package bridge

import (
	"encoding/json"

	"navbridge/internal/navmesh"
)

// Argument and result shapes of every native. Field tags double as the
// published JSON schema.

type LoadArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Mesh file to load; defaults to the configured path"`
}

type LoadResult struct {
	Status     string `json:"status"`
	Code       int    `json:"code"`
	Generation uint32 `json:"generation,omitempty"`
	Error      string `json:"error,omitempty"`
}

type NearestAreaArgs struct {
	Pos            navmesh.Vector `json:"pos" jsonschema:"required"`
	IgnoreVertical bool           `json:"ignoreVertical,omitempty"`
}

type NearestAreaResult struct {
	Found bool            `json:"found"`
	Area  navmesh.AreaRef `json:"area"`
}

type ClosestPointArgs struct {
	Area navmesh.AreaRef `json:"area" jsonschema:"required"`
	Pos  navmesh.Vector  `json:"pos" jsonschema:"required"`
}

type AreaArgs struct {
	Area navmesh.AreaRef `json:"area" jsonschema:"required"`
}

type AreaInfoResult struct {
	Area       navmesh.AreaRef `json:"area"`
	Lo         navmesh.Vector  `json:"lo"`
	Hi         navmesh.Vector  `json:"hi"`
	Center     navmesh.Vector  `json:"center"`
	Flags      int             `json:"flags"`
	Attributes []string        `json:"attributes,omitempty"`
}

type ComputeArgs struct {
	Handle    uint64           `json:"handle,omitempty" jsonschema:"description=Existing tracker to refresh"`
	Subject   uint64           `json:"subject,omitempty" jsonschema:"description=Entity the path belongs to"`
	StartArea navmesh.AreaRef  `json:"startArea" jsonschema:"required"`
	StartPos  navmesh.Vector   `json:"startPos" jsonschema:"required"`
	GoalArea  *navmesh.AreaRef `json:"goalArea,omitempty" jsonschema:"description=Omit to resolve the goal area from goalPos"`
	GoalPos   navmesh.Vector   `json:"goalPos" jsonschema:"required"`
	Route     string           `json:"route,omitempty" jsonschema:"enum=fastest,enum=safest"`
}

// HandleResult is zero with Error set when a tracker call fails softly.
type HandleResult struct {
	Handle uint64 `json:"handle"`
	Error  string `json:"error,omitempty"`
}

type CreateArgs struct {
	Subject   uint64   `json:"subject,omitempty"`
	UpdateMin *float64 `json:"updateMin,omitempty" jsonschema:"minimum=0.1"`
	UpdateMax *float64 `json:"updateMax,omitempty" jsonschema:"minimum=0.1"`
}

type DestroyArgs struct {
	Handle  uint64 `json:"handle,omitempty"`
	Subject uint64 `json:"subject,omitempty"`
}

type FoundResult struct {
	Found bool `json:"found"`
}

type CountResult struct {
	Count int `json:"count"`
}

type ReadArgs struct {
	Handle uint64 `json:"handle" jsonschema:"required"`
	Field  string `json:"field" jsonschema:"required,enum=path,enum=path_flags,enum=path_how,enum=area,enum=goal,enum=length,enum=index,enum=update,enum=update_min,enum=update_max"`
	Index  *int   `json:"index,omitempty" jsonschema:"minimum=0,maximum=255"`
}

// ValueResult carries a typed field value. Value is a [x,y,z] array for
// vectors, an area reference object for areas and a number otherwise.
type ValueResult struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

type WriteArgs struct {
	Handle uint64          `json:"handle" jsonschema:"required"`
	Field  string          `json:"field" jsonschema:"required,enum=index,enum=update,enum=update_min,enum=update_max,enum=goal"`
	Value  json.RawMessage `json:"value" jsonschema:"required"`
}

type AppliedResult struct {
	Applied bool `json:"applied"`
}

type AdvanceArgs struct {
	Subject        uint64  `json:"subject" jsonschema:"required"`
	Tolerance      float32 `json:"tolerance" jsonschema:"required,minimum=0"`
	IgnoreVertical bool    `json:"ignoreVertical,omitempty"`
}

type AdvancedResult struct {
	Advanced bool `json:"advanced"`
}

type SpawnArgs struct {
	Pos navmesh.Vector `json:"pos"`
}

type EntityArgs struct {
	Entity uint64 `json:"entity" jsonschema:"required"`
}

type MoveArgs struct {
	Entity uint64         `json:"entity" jsonschema:"required"`
	Pos    navmesh.Vector `json:"pos" jsonschema:"required"`
}

type EntityResult struct {
	Entity uint64 `json:"entity"`
}

type PositionResult struct {
	Live bool           `json:"live"`
	Pos  navmesh.Vector `json:"pos"`
}

type LoadedResult struct {
	Loaded     bool   `json:"loaded"`
	Generation uint32 `json:"generation"`
}

type PointResult struct {
	Pos navmesh.Vector `json:"pos"`
}
