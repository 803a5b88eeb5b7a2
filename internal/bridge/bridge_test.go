package bridge

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"navbridge/internal/entity"
	"navbridge/internal/navmesh"
	"navbridge/internal/tracker"
)

type testClock struct {
	now float64
}

func (c *testClock) Now() float64 {
	return c.now
}

type harness struct {
	bridge *Bridge
	nav    *navmesh.Service
	clock  *testClock
}

func hallFile() *navmesh.File {
	return &navmesh.File{
		Version: navmesh.FileVersion,
		Areas: []navmesh.AreaRecord{
			{ID: 1, Lo: [3]float32{0, 0, 0}, Hi: [3]float32{100, 100, 0}, East: []uint32{2}},
			{ID: 2, Lo: [3]float32{100, 0, 0}, Hi: [3]float32{200, 100, 0}, West: []uint32{1}, Attributes: []string{"jump"}},
		},
	}
}

func newHarness(t *testing.T, navEnabled bool) *harness {
	t.Helper()
	data, err := navmesh.EncodeBinary(hallFile())
	if err != nil {
		t.Fatalf("encode mesh: %v", err)
	}
	path := filepath.Join(t.TempDir(), "hall.nav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write mesh: %v", err)
	}

	h := &harness{
		nav:   navmesh.NewService(navmesh.ServiceConfig{DefaultPath: path}),
		clock: &testClock{},
	}
	dir := entity.NewDirectory()
	registry := tracker.NewRegistry(tracker.Config{Nav: h.nav, Entities: dir, Clock: h.clock})
	h.bridge = New(Config{Nav: h.nav, Trackers: registry, Entities: dir, NavEnabled: navEnabled})
	return h
}

// call runs native with args marshalled to JSON and decodes the reply into
// out through a JSON round trip, the way a session would see it.
func (h *harness) call(t *testing.T, native string, args any, out any) {
	t.Helper()
	if err := h.try(native, args, out); err != nil {
		t.Fatalf("%s: %v", native, err)
	}
}

func (h *harness) try(native string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return err
		}
		raw = encoded
	}
	value, err := h.bridge.Call(native, raw)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

func TestNavigationNativesUnavailableWhenDisabled(t *testing.T) {
	h := newHarness(t, false)

	for _, native := range Natives() {
		err := h.try(native.Name, nil, nil)
		if native.Nav {
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("%s: expected unavailable, got %v", native.Name, err)
			}
			if err.Error() != native.Name+" isn't available" {
				t.Fatalf("unexpected message %q", err.Error())
			}
		} else if errors.Is(err, ErrUnavailable) {
			t.Fatalf("%s must stay available", native.Name)
		}
	}
}

func TestUnknownNativeAndBadArgs(t *testing.T) {
	h := newHarness(t, true)
	if err := h.try("nav.teleport", nil, nil); !errors.Is(err, ErrUnknownNative) {
		t.Fatalf("expected unknown native, got %v", err)
	}
	if _, err := h.bridge.Call("entity.spawn", json.RawMessage(`{"position":[1,2,3]}`)); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("expected bad args for unknown field, got %v", err)
	}
	if _, err := h.bridge.Call("tracker.destroy", json.RawMessage(`{}`)); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("expected bad args without a key, got %v", err)
	}
}

func TestLoadAndQueryMesh(t *testing.T) {
	h := newHarness(t, true)

	var missing LoadResult
	h.call(t, "nav.load", LoadArgs{Path: filepath.Join(t.TempDir(), "nope.nav")}, &missing)
	if missing.Status != "cant_access_file" || missing.Error == "" {
		t.Fatalf("unexpected status %+v", missing)
	}

	var loaded LoadResult
	h.call(t, "nav.load", nil, &loaded)
	if loaded.Status != "ok" || loaded.Generation == 0 {
		t.Fatalf("unexpected load result %+v", loaded)
	}

	var nearest NearestAreaResult
	h.call(t, "nav.nearest_area", NearestAreaArgs{Pos: navmesh.Vector{150, 20, 0}}, &nearest)
	if !nearest.Found || nearest.Area.ID != 2 {
		t.Fatalf("unexpected nearest area %+v", nearest)
	}

	var point PointResult
	h.call(t, "nav.closest_point", ClosestPointArgs{Area: nearest.Area, Pos: navmesh.Vector{500, 500, 9}}, &point)
	if point.Pos != (navmesh.Vector{200, 100, 0}) {
		t.Fatalf("unexpected closest point %v", point.Pos)
	}

	var info AreaInfoResult
	h.call(t, "nav.area_info", AreaArgs{Area: nearest.Area}, &info)
	if info.Center != (navmesh.Vector{150, 50, 0}) || len(info.Attributes) != 1 || info.Attributes[0] != "jump" {
		t.Fatalf("unexpected area info %+v", info)
	}

	var count CountResult
	h.call(t, "nav.unload", nil, &count)
	var state LoadedResult
	h.call(t, "nav.loaded", nil, &state)
	if state.Loaded {
		t.Fatalf("expected mesh to be unloaded")
	}
	if err := h.try("nav.area_info", AreaArgs{Area: nearest.Area}, nil); !errors.Is(err, navmesh.ErrMeshNotLoaded) {
		t.Fatalf("expected mesh not loaded, got %v", err)
	}
}

func TestTrackerNativesFollowPath(t *testing.T) {
	h := newHarness(t, true)

	var created HandleResult
	h.call(t, "tracker.create", CreateArgs{}, &created)
	if created.Handle != 0 || created.Error == "" {
		t.Fatalf("expected a null handle before the mesh loads, got %+v", created)
	}
	h.call(t, "nav.load", nil, nil)

	var subject EntityResult
	h.call(t, "entity.spawn", SpawnArgs{Pos: navmesh.Vector{50, 50, 0}}, &subject)
	lo, hi := 0.4, 0.6
	h.call(t, "tracker.create", CreateArgs{Subject: subject.Entity, UpdateMin: &lo, UpdateMax: &hi}, &created)
	if created.Handle == 0 {
		t.Fatalf("expected a tracker, got %+v", created)
	}

	var area NearestAreaResult
	h.call(t, "nav.nearest_area", NearestAreaArgs{Pos: navmesh.Vector{50, 50, 0}}, &area)
	var computed HandleResult
	h.call(t, "path.compute", ComputeArgs{
		Handle:    created.Handle,
		StartArea: area.Area,
		StartPos:  navmesh.Vector{50, 50, 0},
		GoalPos:   navmesh.Vector{150, 50, 0},
		Route:     "safest",
	}, &computed)
	if computed.Handle != created.Handle || computed.Error != "" {
		t.Fatalf("unexpected compute result %+v", computed)
	}

	var length struct {
		Kind  string
		Value int
	}
	h.call(t, "tracker.read", ReadArgs{Handle: created.Handle, Field: "length"}, &length)
	if length.Kind != "int" || length.Value != 3 {
		t.Fatalf("unexpected length %+v", length)
	}

	var advanced AdvancedResult
	h.call(t, "tracker.advance", AdvanceArgs{Subject: subject.Entity, Tolerance: 1}, &advanced)
	if advanced.Advanced {
		t.Fatalf("advance must respect the cooldown")
	}
	h.clock.now = 1
	h.call(t, "tracker.advance", AdvanceArgs{Subject: subject.Entity, Tolerance: 1}, &advanced)
	if !advanced.Advanced {
		t.Fatalf("expected the subject to reach the first waypoint")
	}

	step := 1
	var pos struct {
		Kind  string
		Value navmesh.Vector
	}
	h.call(t, "tracker.read", ReadArgs{Handle: created.Handle, Field: "path", Index: &step}, &pos)
	if pos.Kind != "vector" || pos.Value != (navmesh.Vector{100, 50, 0}) {
		t.Fatalf("unexpected waypoint %+v", pos)
	}

	var applied AppliedResult
	h.call(t, "tracker.write", WriteArgs{Handle: created.Handle, Field: "index", Value: json.RawMessage(`7`)}, &applied)
	var index struct{ Value int }
	h.call(t, "tracker.read", ReadArgs{Handle: created.Handle, Field: "index"}, &index)
	if index.Value != 2 {
		t.Fatalf("expected the index write to clamp to 2, got %d", index.Value)
	}
	h.call(t, "tracker.write", WriteArgs{Handle: created.Handle, Field: "goal", Value: json.RawMessage(`[1,2,3]`)}, &applied)
	h.call(t, "tracker.write", WriteArgs{Handle: created.Handle, Field: "update_min", Value: json.RawMessage(`0.01`)}, &applied)
	var updateMin struct{ Value float64 }
	h.call(t, "tracker.read", ReadArgs{Handle: created.Handle, Field: "update_min"}, &updateMin)
	if updateMin.Value != tracker.MinUpdateInterval {
		t.Fatalf("expected the floor, got %v", updateMin.Value)
	}

	if err := h.try("tracker.write", WriteArgs{Handle: created.Handle, Field: "length", Value: json.RawMessage(`1`)}, nil); !errors.Is(err, tracker.ErrFieldNotWritable) {
		t.Fatalf("expected read-only field, got %v", err)
	}
	if err := h.try("tracker.read", ReadArgs{Handle: created.Handle, Field: "speed"}, nil); !errors.Is(err, tracker.ErrUnknownField) {
		t.Fatalf("expected unknown field, got %v", err)
	}
	for _, raw := range []string{`[1,2]`, `[1,2,3,4]`, `["a","b","c"]`} {
		if err := h.try("tracker.write", WriteArgs{Handle: created.Handle, Field: "goal", Value: json.RawMessage(raw)}, nil); !errors.Is(err, ErrBadArgs) {
			t.Fatalf("expected %s to be rejected as a goal, got %v", raw, err)
		}
	}
	var goal struct{ Value navmesh.Vector }
	h.call(t, "tracker.read", ReadArgs{Handle: created.Handle, Field: "goal"}, &goal)
	if goal.Value != (navmesh.Vector{1, 2, 3}) {
		t.Fatalf("rejected goal writes must leave the goal alone, got %v", goal.Value)
	}
	tooFar := tracker.MaxPathLength
	if err := h.try("tracker.read", ReadArgs{Handle: created.Handle, Field: "path", Index: &tooFar}, nil); !errors.Is(err, tracker.ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}
}

func TestComputeSoftFailureKeepsHandle(t *testing.T) {
	h := newHarness(t, true)
	h.call(t, "nav.load", nil, nil)

	var created HandleResult
	h.call(t, "tracker.create", CreateArgs{}, &created)
	var computed HandleResult
	h.call(t, "path.compute", ComputeArgs{
		Handle:    created.Handle,
		StartArea: navmesh.AreaRef{ID: 77, Generation: 1},
		GoalPos:   navmesh.Vector{150, 50, 0},
	}, &computed)
	if computed.Handle != created.Handle || computed.Error == "" {
		t.Fatalf("expected the prior handle with an error, got %+v", computed)
	}

	if err := h.try("path.compute", ComputeArgs{Handle: created.Handle + 1, StartArea: navmesh.AreaRef{ID: 1, Generation: 1}}, nil); !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("expected not found for an unknown handle, got %v", err)
	}
	if err := h.try("path.compute", ComputeArgs{Route: "scenic"}, nil); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("expected bad route, got %v", err)
	}
}

func TestEntityRemoveDropsTracker(t *testing.T) {
	h := newHarness(t, true)
	h.call(t, "nav.load", nil, nil)

	var subject EntityResult
	h.call(t, "entity.spawn", SpawnArgs{Pos: navmesh.Vector{10, 10, 0}}, &subject)
	var created HandleResult
	h.call(t, "tracker.create", CreateArgs{Subject: subject.Entity}, &created)

	var moved AppliedResult
	h.call(t, "entity.move", MoveArgs{Entity: subject.Entity, Pos: navmesh.Vector{20, 20, 0}}, &moved)
	var pos PositionResult
	h.call(t, "entity.position", EntityArgs{Entity: subject.Entity}, &pos)
	if !pos.Live || pos.Pos != (navmesh.Vector{20, 20, 0}) {
		t.Fatalf("unexpected position %+v", pos)
	}

	var removed FoundResult
	h.call(t, "entity.remove", EntityArgs{Entity: subject.Entity}, &removed)
	if !removed.Found {
		t.Fatalf("expected entity removal")
	}
	var destroyed FoundResult
	h.call(t, "tracker.destroy", DestroyArgs{Handle: created.Handle}, &destroyed)
	if destroyed.Found {
		t.Fatalf("tracker should have been dropped with its subject")
	}
	if err := h.try("entity.move", MoveArgs{Entity: subject.Entity}, nil); !errors.Is(err, entity.ErrNotLive) {
		t.Fatalf("expected not live, got %v", err)
	}
}

func TestNativesAreSortedAndUnique(t *testing.T) {
	list := Natives()
	if len(list) != 17 {
		t.Fatalf("expected 17 natives, got %d", len(list))
	}
	names := make([]string, len(list))
	seen := make(map[string]bool)
	for i, n := range list {
		if seen[n.Name] {
			t.Fatalf("duplicate native %s", n.Name)
		}
		seen[n.Name] = true
		names[i] = n.Name
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("natives not sorted: %v", names)
	}
}
