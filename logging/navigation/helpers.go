package navigation

import (
	"context"

	"navbridge/logging"
)

const (
	// EventMeshLoaded is emitted after a nav mesh is installed.
	EventMeshLoaded logging.EventType = "navigation.mesh_loaded"
	// EventMeshLoadFailed is emitted when a nav mesh file is rejected.
	EventMeshLoadFailed logging.EventType = "navigation.mesh_load_failed"
	// EventMeshUnloaded is emitted after the mesh is dropped and trackers purged.
	EventMeshUnloaded logging.EventType = "navigation.mesh_unloaded"
	// EventTrackerCreated is emitted when a path tracker is registered.
	EventTrackerCreated logging.EventType = "navigation.tracker_created"
	// EventTrackerDestroyed is emitted when a single tracker is removed.
	EventTrackerDestroyed logging.EventType = "navigation.tracker_destroyed"
	// EventTrackersPurged is emitted when every tracker is torn down at once.
	EventTrackersPurged logging.EventType = "navigation.trackers_purged"
	// EventPathComputed is emitted when a tracker receives a new path.
	EventPathComputed logging.EventType = "navigation.path_computed"
	// EventPathFailed is emitted when a path request is softly rejected.
	EventPathFailed logging.EventType = "navigation.path_failed"
	// EventPathCompleted is emitted when a tracker steps past its last waypoint.
	EventPathCompleted logging.EventType = "navigation.path_completed"
)

// MeshLoadedPayload describes the installed mesh.
type MeshLoadedPayload struct {
	Path       string `json:"path"`
	Generation uint32 `json:"generation"`
	Areas      int    `json:"areas"`
	Ladders    int    `json:"ladders"`
}

// MeshLoadFailedPayload carries the nav error reported for a file.
type MeshLoadFailedPayload struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// MeshUnloadedPayload records the retired generation.
type MeshUnloadedPayload struct {
	Generation uint32 `json:"generation"`
}

// TrackerPayload identifies a tracker and its subject.
type TrackerPayload struct {
	Subject   string  `json:"subject,omitempty"`
	UpdateMin float64 `json:"updateMin,omitempty"`
	UpdateMax float64 `json:"updateMax,omitempty"`
}

// TrackersPurgedPayload records how many trackers a bulk teardown removed.
type TrackersPurgedPayload struct {
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// PathPayload summarises a path request.
type PathPayload struct {
	Route     string `json:"route"`
	StartArea uint32 `json:"startArea"`
	GoalArea  uint32 `json:"goalArea,omitempty"`
	Length    int    `json:"length,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryNavigation
	pub.Publish(ctx, event)
}

// MeshLoaded publishes an info event for a freshly installed mesh.
func MeshLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload MeshLoadedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventMeshLoaded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindMesh},
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

// MeshLoadFailed publishes a warning for a rejected mesh file.
func MeshLoadFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload MeshLoadFailedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventMeshLoadFailed,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindMesh},
		Severity: logging.SeverityWarn,
		Payload:  payload,
	})
}

// MeshUnloaded publishes an info event once the mesh is dropped.
func MeshUnloaded(ctx context.Context, pub logging.Publisher, tick uint64, payload MeshUnloadedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventMeshUnloaded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindMesh},
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func TrackerCreated(ctx context.Context, pub logging.Publisher, tick uint64, tracker logging.EntityRef, payload TrackerPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventTrackerCreated,
		Tick:     tick,
		Actor:    tracker,
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

func TrackerDestroyed(ctx context.Context, pub logging.Publisher, tick uint64, tracker logging.EntityRef, payload TrackerPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventTrackerDestroyed,
		Tick:     tick,
		Actor:    tracker,
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

// TrackersPurged publishes an info event for a bulk teardown.
func TrackersPurged(ctx context.Context, pub logging.Publisher, tick uint64, payload TrackersPurgedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventTrackersPurged,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindTracker},
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func PathComputed(ctx context.Context, pub logging.Publisher, tick uint64, tracker logging.EntityRef, payload PathPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPathComputed,
		Tick:     tick,
		Actor:    tracker,
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

// PathFailed publishes a warning for a softly rejected path request.
func PathFailed(ctx context.Context, pub logging.Publisher, tick uint64, tracker logging.EntityRef, payload PathPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPathFailed,
		Tick:     tick,
		Actor:    tracker,
		Severity: logging.SeverityWarn,
		Payload:  payload,
	})
}

func PathCompleted(ctx context.Context, pub logging.Publisher, tick uint64, tracker logging.EntityRef, subject logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventPathCompleted,
		Tick:     tick,
		Actor:    tracker,
		Targets:  []logging.EntityRef{subject},
		Severity: logging.SeverityDebug,
	})
}
