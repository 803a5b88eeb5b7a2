// Package bridge exposes the nav mesh, the path trackers and the entity
// directory as named natives that take and return JSON.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"navbridge/internal/entity"
	"navbridge/internal/navmesh"
	"navbridge/internal/tracker"
)

var (
	ErrUnknownNative = errors.New("bridge: unknown native")
	// ErrUnavailable answers navigation natives when navigation is disabled.
	ErrUnavailable = errors.New("isn't available")
	ErrBadArgs     = errors.New("bridge: malformed arguments")
)

// Config wires the bridge to the state it exposes. Every collaborator is
// only touched from the goroutine that calls Call.
type Config struct {
	Nav      *navmesh.Service
	Trackers *tracker.Registry
	Entities *entity.Directory
	// NavEnabled false answers every nav, path and tracker native with
	// ErrUnavailable.
	NavEnabled bool
}

// Native describes one callable entry point.
type Native struct {
	Name string
	// Args and Result are zero values of the argument and result shapes.
	Args   any
	Result any
	// Nav natives depend on navigation support.
	Nav bool

	call func(b *Bridge, raw json.RawMessage) (any, error)
}

type Bridge struct {
	cfg   Config
	table map[string]Native
}

func New(cfg Config) *Bridge {
	b := &Bridge{cfg: cfg, table: make(map[string]Native, len(natives))}
	for _, n := range natives {
		b.table[n.Name] = n
	}
	return b
}

// Natives lists every native sorted by name.
func Natives() []Native {
	out := make([]Native, len(natives))
	copy(out, natives)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named native with raw JSON arguments.
func (b *Bridge) Call(native string, raw json.RawMessage) (any, error) {
	n, ok := b.table[native]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNative, native)
	}
	if n.Nav && !b.cfg.NavEnabled {
		return nil, fmt.Errorf("%s %w", native, ErrUnavailable)
	}
	return n.call(b, raw)
}

// handle adapts a typed handler into a table entry that decodes its
// arguments strictly.
func handle[A any](fn func(b *Bridge, args A) (any, error)) func(*Bridge, json.RawMessage) (any, error) {
	return func(b *Bridge, raw json.RawMessage) (any, error) {
		var args A
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&args); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
			}
		}
		return fn(b, args)
	}
}

type none struct{}

var natives = []Native{
	{Name: "nav.load", Args: LoadArgs{}, Result: LoadResult{}, Nav: true, call: handle((*Bridge).navLoad)},
	{Name: "nav.unload", Args: none{}, Result: CountResult{}, Nav: true, call: handle((*Bridge).navUnload)},
	{Name: "nav.loaded", Args: none{}, Result: LoadedResult{}, Nav: true, call: handle((*Bridge).navLoaded)},
	{Name: "nav.nearest_area", Args: NearestAreaArgs{}, Result: NearestAreaResult{}, Nav: true, call: handle((*Bridge).navNearestArea)},
	{Name: "nav.closest_point", Args: ClosestPointArgs{}, Result: PointResult{}, Nav: true, call: handle((*Bridge).navClosestPoint)},
	{Name: "nav.area_info", Args: AreaArgs{}, Result: AreaInfoResult{}, Nav: true, call: handle((*Bridge).navAreaInfo)},
	{Name: "path.compute", Args: ComputeArgs{}, Result: HandleResult{}, Nav: true, call: handle((*Bridge).pathCompute)},
	{Name: "tracker.create", Args: CreateArgs{}, Result: HandleResult{}, Nav: true, call: handle((*Bridge).trackerCreate)},
	{Name: "tracker.destroy", Args: DestroyArgs{}, Result: FoundResult{}, Nav: true, call: handle((*Bridge).trackerDestroy)},
	{Name: "tracker.destroy_all", Args: none{}, Result: CountResult{}, Nav: true, call: handle((*Bridge).trackerDestroyAll)},
	{Name: "tracker.read", Args: ReadArgs{}, Result: ValueResult{}, Nav: true, call: handle((*Bridge).trackerRead)},
	{Name: "tracker.write", Args: WriteArgs{}, Result: AppliedResult{}, Nav: true, call: handle((*Bridge).trackerWrite)},
	{Name: "tracker.advance", Args: AdvanceArgs{}, Result: AdvancedResult{}, Nav: true, call: handle((*Bridge).trackerAdvance)},
	{Name: "entity.spawn", Args: SpawnArgs{}, Result: EntityResult{}, call: handle((*Bridge).entitySpawn)},
	{Name: "entity.move", Args: MoveArgs{}, Result: AppliedResult{}, call: handle((*Bridge).entityMove)},
	{Name: "entity.remove", Args: EntityArgs{}, Result: FoundResult{}, call: handle((*Bridge).entityRemove)},
	{Name: "entity.position", Args: EntityArgs{}, Result: PositionResult{}, call: handle((*Bridge).entityPosition)},
}
