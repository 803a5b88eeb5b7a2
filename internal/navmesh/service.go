package navmesh

import (
	"context"
	"errors"
	"fmt"

	"navbridge/internal/telemetry"
	"navbridge/logging"
	navlog "navbridge/logging/navigation"
)

const (
	meshGenerationMetricKey = "navmesh_generation"
	meshAreasMetricKey      = "navmesh_areas"
	meshLoadFailMetricKey   = "navmesh_load_failures_total"
	pathSearchMetricKey     = "navmesh_path_searches_total"
	pathNoRouteMetricKey    = "navmesh_path_no_route_total"
)

// ServiceConfig wires the service's ambient dependencies.
type ServiceConfig struct {
	// DefaultPath is loaded when Load is called with an empty path.
	DefaultPath string
	Publisher   logging.Publisher
	Metrics     telemetry.Metrics
	Logger      telemetry.Logger
	// Tick reports the current simulation tick for event stamping.
	Tick func() uint64
}

// Service owns the currently loaded mesh. It is not safe for concurrent use;
// every call is expected on the simulation goroutine.
type Service struct {
	cfg        ServiceConfig
	mesh       *Mesh
	path       string
	generation uint32
	unloadHook []func()
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Tick == nil {
		cfg.Tick = func() uint64 { return 0 }
	}
	return &Service{cfg: cfg}
}

// OnUnload registers fn to run synchronously whenever the mesh is dropped,
// before any later call can observe the new state.
func (s *Service) OnUnload(fn func()) {
	if fn == nil {
		return
	}
	s.unloadHook = append(s.unloadHook, fn)
}

// Load reads the mesh at path (or the configured default) and installs it,
// unloading any previous mesh first.
func (s *Service) Load(path string) (NavError, error) {
	if path == "" {
		path = s.cfg.DefaultPath
	}
	ctx := context.Background()
	mesh, err := LoadMesh(path)
	if err != nil {
		status := StatusOf(err)
		telemetry.Add(s.cfg.Metrics, meshLoadFailMetricKey, 1)
		navlog.MeshLoadFailed(ctx, s.cfg.Publisher, s.cfg.Tick(), navlog.MeshLoadFailedPayload{
			Path:   path,
			Status: status.String(),
			Error:  err.Error(),
		})
		return status, err
	}
	s.install(mesh, path)
	return NavOK, nil
}

// Install replaces the current mesh with an already built one and returns
// its generation.
func (s *Service) Install(mesh *Mesh) uint32 {
	s.install(mesh, "")
	return s.generation
}

func (s *Service) install(mesh *Mesh, path string) {
	if s.mesh != nil {
		s.Unload()
	}
	s.generation++
	s.mesh = mesh
	s.path = path
	telemetry.Store(s.cfg.Metrics, meshGenerationMetricKey, uint64(s.generation))
	telemetry.Store(s.cfg.Metrics, meshAreasMetricKey, uint64(mesh.AreaCount()))
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf("nav mesh generation %d installed: %d areas, %d ladders", s.generation, mesh.AreaCount(), mesh.LadderCount())
	}
	navlog.MeshLoaded(context.Background(), s.cfg.Publisher, s.cfg.Tick(), navlog.MeshLoadedPayload{
		Path:       path,
		Generation: s.generation,
		Areas:      mesh.AreaCount(),
		Ladders:    mesh.LadderCount(),
	})
}

// Unload drops the mesh and runs the unload hooks. It is a no-op when no mesh
// is loaded.
func (s *Service) Unload() {
	if s.mesh == nil {
		return
	}
	for _, fn := range s.unloadHook {
		fn()
	}
	s.mesh = nil
	s.path = ""
	telemetry.Store(s.cfg.Metrics, meshAreasMetricKey, 0)
	navlog.MeshUnloaded(context.Background(), s.cfg.Publisher, s.cfg.Tick(), navlog.MeshUnloadedPayload{Generation: s.generation})
}

func (s *Service) Loaded() bool {
	return s.mesh != nil
}

// Generation is the counter of the current (or last) installed mesh.
func (s *Service) Generation() uint32 {
	return s.generation
}

// Mesh exposes the installed mesh, nil when unloaded.
func (s *Service) Mesh() *Mesh {
	return s.mesh
}

// Area resolves a reference against the current mesh.
func (s *Service) Area(ref AreaRef) (*Area, error) {
	if s.mesh == nil {
		return nil, ErrMeshNotLoaded
	}
	if ref.IsZero() {
		return nil, ErrInvalidArea
	}
	if ref.Generation != s.generation {
		return nil, ErrStaleRef
	}
	area, ok := s.mesh.Area(ref.ID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidArea, ref.ID)
	}
	return area, nil
}

// Ladder resolves a ladder reference against the current mesh.
func (s *Service) Ladder(ref LadderRef) (*Ladder, error) {
	if s.mesh == nil {
		return nil, ErrMeshNotLoaded
	}
	if ref.IsZero() {
		return nil, ErrInvalidLadder
	}
	if ref.Generation != s.generation {
		return nil, ErrStaleRef
	}
	ladder, ok := s.mesh.Ladder(ref.ID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidLadder, ref.ID)
	}
	return ladder, nil
}

// ValidArea reports whether ref resolves against the current mesh.
func (s *Service) ValidArea(ref AreaRef) bool {
	_, err := s.Area(ref)
	return err == nil
}

// AreaAttributes returns the attribute flags of the referenced area.
func (s *Service) AreaAttributes(ref AreaRef) (Attribute, error) {
	area, err := s.Area(ref)
	if err != nil {
		return 0, err
	}
	return area.Attributes, nil
}

// Ref builds a reference to area id in the current generation.
func (s *Service) Ref(id uint32) AreaRef {
	return AreaRef{ID: id, Generation: s.generation}
}

// NearestArea returns the area best matching pos, or a zero ref when the mesh
// is unloaded or empty.
func (s *Service) NearestArea(pos Vector, ignoreVertical bool) (AreaRef, bool) {
	area, ok := s.mesh.NearestArea(pos, ignoreVertical)
	if !ok {
		return AreaRef{}, false
	}
	return AreaRef{ID: area.ID, Generation: s.generation}, true
}

// ClosestPoint projects pos onto the referenced area.
func (s *Service) ClosestPoint(ref AreaRef, pos Vector) (Vector, error) {
	area, err := s.Area(ref)
	if err != nil {
		return Vector{}, err
	}
	return area.ClosestPoint(pos), nil
}

// ComputePath searches from start to goal and writes the waypoints into out,
// returning how many were written. A zero goal ref resolves the goal area from
// goalPos. out is left untouched on failure.
func (s *Service) ComputePath(start AreaRef, startPos Vector, goal AreaRef, goalPos Vector, route RouteType, out []Waypoint) (int, error) {
	startArea, err := s.Area(start)
	if err != nil {
		return 0, err
	}
	var goalArea *Area
	if goal.IsZero() {
		var ok bool
		goalArea, ok = s.mesh.NearestArea(goalPos, false)
		if !ok {
			return 0, ErrNoRoute
		}
	} else {
		goalArea, err = s.Area(goal)
		if err != nil {
			return 0, err
		}
	}
	telemetry.Add(s.cfg.Metrics, pathSearchMetricKey, 1)

	chain, ok := s.mesh.search(startArea, goalArea, goalPos, route)
	if !ok {
		telemetry.Add(s.cfg.Metrics, pathNoRouteMetricKey, 1)
		return 0, fmt.Errorf("%w: area %d to area %d", ErrNoRoute, startArea.ID, goalArea.ID)
	}
	if len(chain)+1 > len(out) {
		return 0, ErrPathTooLong
	}
	return buildPath(chain, startPos, goalPos, s.generation, out)
}

// IsSoftFailure reports whether err is a search outcome rather than a misuse.
func IsSoftFailure(err error) bool {
	return errors.Is(err, ErrNoRoute) || errors.Is(err, ErrPathTooLong) || errors.Is(err, ErrInvalidArea) || errors.Is(err, ErrStaleRef)
}
