package tracker

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"navbridge/internal/entity"
	"navbridge/internal/navmesh"
	"navbridge/internal/random"
	"navbridge/internal/telemetry"
	"navbridge/logging"
	navlog "navbridge/logging/navigation"
)

const (
	activeMetricKey    = "tracker_active"
	createdMetricKey   = "tracker_created_total"
	destroyedMetricKey = "tracker_destroyed_total"
	computedMetricKey  = "tracker_paths_computed_total"
	failedMetricKey    = "tracker_paths_failed_total"
	advancedMetricKey  = "tracker_waypoints_reached_total"
	completedMetricKey = "tracker_paths_completed_total"
)

// NavGraph is the slice of the nav mesh service the registry depends on.
type NavGraph interface {
	Loaded() bool
	ValidArea(ref navmesh.AreaRef) bool
	AreaAttributes(ref navmesh.AreaRef) (navmesh.Attribute, error)
	ComputePath(start navmesh.AreaRef, startPos navmesh.Vector, goal navmesh.AreaRef, goalPos navmesh.Vector, route navmesh.RouteType, out []navmesh.Waypoint) (int, error)
}

// unloadNotifier is implemented by graphs that can drop their mesh.
type unloadNotifier interface {
	OnUnload(fn func())
}

// Directory resolves subjects to their live position.
type Directory interface {
	Valid(id entity.ID) bool
	Position(id entity.ID) (mgl32.Vec3, bool)
}

// Clock reports game time in seconds.
type Clock interface {
	Now() float64
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() float64

func (f ClockFunc) Now() float64 {
	return f()
}

// Config wires a registry to its collaborators. Nav, Entities and Clock are
// required.
type Config struct {
	Nav       NavGraph
	Entities  Directory
	Clock     Clock
	RNG       *rand.Rand
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// Tick reports the current simulation tick for event stamping.
	Tick func() uint64
}

// Registry owns every path-progress record. It is not safe for concurrent
// use; the simulation loop serialises access.
type Registry struct {
	cfg        Config
	records    map[Handle]*PathProgress
	bySubject  map[entity.ID]Handle
	lastHandle Handle
	scratch    [MaxPathLength]navmesh.Waypoint
}

// NewRegistry builds an empty registry. When the nav graph can unload its
// mesh, the registry subscribes so that every record is purged before any
// later call can observe references into a dropped mesh.
func NewRegistry(cfg Config) *Registry {
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Tick == nil {
		cfg.Tick = func() uint64 { return 0 }
	}
	if cfg.RNG == nil {
		cfg.RNG = random.New(random.DefaultSeed, "tracker")
	}
	r := &Registry{
		cfg:       cfg,
		records:   make(map[Handle]*PathProgress),
		bySubject: make(map[entity.ID]Handle),
	}
	if notifier, ok := cfg.Nav.(unloadNotifier); ok {
		notifier.OnUnload(func() {
			r.purge("mesh_unloaded")
		})
	}
	return r
}

// Option adjusts a record at creation.
type Option func(*PathProgress)

// WithRecheckBounds sets the recheck interval bounds in seconds. Bounds are
// floored at MinUpdateInterval and swapped when inverted.
func WithRecheckBounds(lo, hi float64) Option {
	return func(p *PathProgress) {
		p.updateMin, p.updateMax = normalizeBounds(lo, hi)
	}
}

// Create registers an empty record for subject and returns its handle. It
// fails with a zero handle while no mesh is loaded. A subject that is
// already tracked keeps its record; the options are applied to it and its
// existing handle is returned. A zero subject yields a free-standing record
// that is only reachable through its handle.
func (r *Registry) Create(subject entity.ID, opts ...Option) (Handle, error) {
	if !r.cfg.Nav.Loaded() {
		return 0, ErrMeshNotLoaded
	}
	if !subject.IsZero() {
		if !r.cfg.Entities.Valid(subject) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidSubject, subject)
		}
		if h, ok := r.bySubject[subject]; ok {
			rec := r.records[h]
			for _, opt := range opts {
				opt(rec)
			}
			rec.update = r.cfg.Clock.Now() + r.jitter(rec)
			return h, nil
		}
	}
	h, _ := r.register(subject, opts...)
	return h, nil
}

func (r *Registry) register(subject entity.ID, opts ...Option) (Handle, *PathProgress) {
	rec := &PathProgress{
		subject:   subject,
		updateMin: DefaultUpdateMin,
		updateMax: DefaultUpdateMax,
	}
	for _, opt := range opts {
		opt(rec)
	}
	rec.update = r.cfg.Clock.Now() + r.jitter(rec)

	r.lastHandle++
	h := r.lastHandle
	r.records[h] = rec
	if !subject.IsZero() {
		r.bySubject[subject] = h
	}

	r.metricAdd(createdMetricKey, 1)
	r.metricStore(activeMetricKey, uint64(len(r.records)))
	navlog.TrackerCreated(context.Background(), r.cfg.Publisher, r.cfg.Tick(), trackerRef(h), navlog.TrackerPayload{
		Subject:   subjectID(subject),
		UpdateMin: rec.updateMin,
		UpdateMax: rec.updateMax,
	})
	return h, rec
}

// Destroy removes the record behind h.
func (r *Registry) Destroy(h Handle) DestroyResult {
	rec, ok := r.records[h]
	if !ok {
		return NotFound
	}
	r.remove(h, rec)
	return Removed
}

// DestroyBySubject removes the record tracking subject.
func (r *Registry) DestroyBySubject(subject entity.ID) DestroyResult {
	h, ok := r.bySubject[subject]
	if !ok {
		return NotFound
	}
	return r.Destroy(h)
}

func (r *Registry) remove(h Handle, rec *PathProgress) {
	delete(r.records, h)
	if !rec.subject.IsZero() && r.bySubject[rec.subject] == h {
		delete(r.bySubject, rec.subject)
	}
	r.metricAdd(destroyedMetricKey, 1)
	r.metricStore(activeMetricKey, uint64(len(r.records)))
	navlog.TrackerDestroyed(context.Background(), r.cfg.Publisher, r.cfg.Tick(), trackerRef(h), navlog.TrackerPayload{
		Subject: subjectID(rec.subject),
	})
}

// DestroyAll removes every record and returns how many there were.
func (r *Registry) DestroyAll() int {
	return r.purge("requested")
}

func (r *Registry) purge(reason string) int {
	count := len(r.records)
	if count == 0 {
		return 0
	}
	clear(r.records)
	clear(r.bySubject)
	r.metricAdd(destroyedMetricKey, uint64(count))
	r.metricStore(activeMetricKey, 0)
	navlog.TrackersPurged(context.Background(), r.cfg.Publisher, r.cfg.Tick(), navlog.TrackersPurgedPayload{
		Count:  count,
		Reason: reason,
	})
	return count
}

// Len is the number of live records.
func (r *Registry) Len() int {
	return len(r.records)
}

// HandleOf returns the handle tracking subject.
func (r *Registry) HandleOf(subject entity.ID) (Handle, bool) {
	h, ok := r.bySubject[subject]
	return h, ok
}

// Progress returns a copy of the record's bookkeeping.
func (r *Registry) Progress(h Handle) (Progress, error) {
	rec, ok := r.records[h]
	if !ok {
		return Progress{}, fmt.Errorf("%w: handle %s", ErrNotFound, h)
	}
	return rec.snapshot(), nil
}

// Waypoints returns a copy of the record's current path.
func (r *Registry) Waypoints(h Handle) ([]navmesh.Waypoint, error) {
	rec, ok := r.records[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %s", ErrNotFound, h)
	}
	return rec.waypoints(), nil
}

// ComputeRequest describes a path search. When Handle is set the search
// refreshes that record; otherwise the record tracking Subject is refreshed,
// or a new one is registered on success.
type ComputeRequest struct {
	Handle    Handle
	Subject   entity.ID
	StartArea navmesh.AreaRef
	StartPos  navmesh.Vector
	// GoalArea may be zero to resolve the goal area from GoalPos.
	GoalArea navmesh.AreaRef
	GoalPos  navmesh.Vector
	Route    navmesh.RouteType
}

// Compute runs a path search and stores the result. On failure the record,
// if any, is left exactly as it was and the returned handle is the one the
// caller already had (zero when there was none), alongside the error.
func (r *Registry) Compute(req ComputeRequest) (Handle, error) {
	if !r.cfg.Nav.Loaded() {
		prior := r.existing(req)
		r.pathFailed(prior, req, ErrMeshNotLoaded)
		return prior, ErrMeshNotLoaded
	}

	var (
		prior Handle
		rec   *PathProgress
	)
	switch {
	case req.Handle != 0:
		existing, ok := r.records[req.Handle]
		if !ok {
			return 0, fmt.Errorf("%w: handle %s", ErrNotFound, req.Handle)
		}
		prior, rec = req.Handle, existing
	case !req.Subject.IsZero():
		if !r.cfg.Entities.Valid(req.Subject) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidSubject, req.Subject)
		}
		if h, ok := r.bySubject[req.Subject]; ok {
			prior, rec = h, r.records[h]
		}
	}

	if !r.cfg.Nav.ValidArea(req.StartArea) {
		err := fmt.Errorf("%w: start area %d", ErrInvalidArea, req.StartArea.ID)
		r.pathFailed(prior, req, err)
		return prior, err
	}

	n, err := r.cfg.Nav.ComputePath(req.StartArea, req.StartPos, req.GoalArea, req.GoalPos, req.Route, r.scratch[:])
	if err != nil {
		r.pathFailed(prior, req, err)
		return prior, err
	}

	h := prior
	if rec == nil {
		h, rec = r.register(req.Subject)
	}
	copy(rec.path[:n], r.scratch[:n])
	rec.count = n
	rec.currentGoal = req.GoalPos
	rec.currentArea = navmesh.AreaRef{}
	rec.setIndex(0)
	rec.update = r.cfg.Clock.Now() + r.jitter(rec)

	r.metricAdd(computedMetricKey, 1)
	navlog.PathComputed(context.Background(), r.cfg.Publisher, r.cfg.Tick(), trackerRef(h), navlog.PathPayload{
		Route:     req.Route.String(),
		StartArea: req.StartArea.ID,
		GoalArea:  rec.path[n-1].Area.ID,
		Length:    n,
	})
	return h, nil
}

// existing resolves the record a request refers to without validating it.
func (r *Registry) existing(req ComputeRequest) Handle {
	if _, ok := r.records[req.Handle]; ok {
		return req.Handle
	}
	if req.Handle == 0 && !req.Subject.IsZero() {
		return r.bySubject[req.Subject]
	}
	return 0
}

func (r *Registry) pathFailed(h Handle, req ComputeRequest, err error) {
	r.metricAdd(failedMetricKey, 1)
	navlog.PathFailed(context.Background(), r.cfg.Publisher, r.cfg.Tick(), trackerRef(h), navlog.PathPayload{
		Route:     req.Route.String(),
		StartArea: req.StartArea.ID,
		GoalArea:  req.GoalArea.ID,
		Reason:    err.Error(),
	})
}

// Advance re-checks the subject's progress against its live position. While
// the recheck cooldown is pending nothing changes. Once it has elapsed, the
// index steps forward when the subject is within tolerance of the current
// waypoint, and the next recheck is scheduled at a jittered interval. Returns
// whether the index moved.
func (r *Registry) Advance(subject entity.ID, tolerance float32, ignoreVertical bool) bool {
	h, ok := r.bySubject[subject]
	if !ok {
		return false
	}
	rec := r.records[h]
	if r.cfg.Clock.Now() < rec.update {
		return false
	}
	pos, live := r.cfg.Entities.Position(subject)
	if !live {
		return false
	}
	return r.step(h, rec, pos, tolerance, ignoreVertical)
}

// AdvanceFrom is Advance for a record addressed by handle, measured from an
// explicit position. It serves free-standing records that have no subject.
func (r *Registry) AdvanceFrom(h Handle, pos navmesh.Vector, tolerance float32, ignoreVertical bool) (bool, error) {
	rec, ok := r.records[h]
	if !ok {
		return false, fmt.Errorf("%w: handle %s", ErrNotFound, h)
	}
	if r.cfg.Clock.Now() < rec.update {
		return false, nil
	}
	return r.step(h, rec, pos, tolerance, ignoreVertical), nil
}

func (r *Registry) step(h Handle, rec *PathProgress, pos navmesh.Vector, tolerance float32, ignoreVertical bool) bool {
	now := r.cfg.Clock.Now()
	defer func() {
		rec.update = now + r.jitter(rec)
	}()

	if rec.index >= rec.count {
		return false
	}
	target := rec.path[rec.index].Pos
	var dist float32
	if ignoreVertical {
		dist = navmesh.PlanarDistance(pos, target)
	} else {
		dist = navmesh.Distance(pos, target)
	}
	if dist > tolerance {
		return false
	}

	rec.setIndex(rec.index + 1)
	r.metricAdd(advancedMetricKey, 1)
	if rec.index == rec.count {
		r.metricAdd(completedMetricKey, 1)
		navlog.PathCompleted(context.Background(), r.cfg.Publisher, r.cfg.Tick(), trackerRef(h), subjectRef(rec.subject))
	}
	return true
}

func (r *Registry) jitter(rec *PathProgress) float64 {
	return random.Between(r.cfg.RNG, rec.updateMin, rec.updateMax)
}

func (r *Registry) metricAdd(key string, delta uint64) {
	telemetry.Add(r.cfg.Metrics, key, delta)
}

func (r *Registry) metricStore(key string, value uint64) {
	telemetry.Store(r.cfg.Metrics, key, value)
}

func trackerRef(h Handle) logging.EntityRef {
	return logging.EntityRef{ID: h.String(), Kind: logging.EntityKindTracker}
}

func subjectRef(id entity.ID) logging.EntityRef {
	return logging.EntityRef{ID: subjectID(id), Kind: logging.EntityKindSubject}
}

func subjectID(id entity.ID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}
