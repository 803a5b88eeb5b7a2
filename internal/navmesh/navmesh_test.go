package navmesh

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// corridorFile is three floor areas running east, a raised platform reached
// by a ladder from the last one, and an unconnected island.
func corridorFile() *File {
	return &File{
		Version: FileVersion,
		Areas: []AreaRecord{
			{ID: 1, Lo: [3]float32{0, 0, 0}, Hi: [3]float32{100, 100, 0}, East: []uint32{2}},
			{ID: 2, Lo: [3]float32{100, 0, 0}, Hi: [3]float32{200, 100, 0}, West: []uint32{1}, East: []uint32{3}},
			{ID: 3, Lo: [3]float32{200, 0, 0}, Hi: [3]float32{300, 100, 0}, West: []uint32{2}, Attributes: []string{"crouch"}},
			{ID: 4, Lo: [3]float32{200, 100, 200}, Hi: [3]float32{300, 200, 200}},
			{ID: 5, Lo: [3]float32{1000, 1000, 0}, Hi: [3]float32{1100, 1100, 0}},
		},
		Ladders: []LadderRecord{
			{ID: 9, Bottom: [3]float32{250, 100, 0}, Top: [3]float32{250, 100, 200}, Width: 16, BottomArea: 3, TopArea: 4},
		},
	}
}

func newCorridorService(t *testing.T) *Service {
	t.Helper()
	mesh, err := corridorFile().Build()
	if err != nil {
		t.Fatalf("failed to build corridor mesh: %v", err)
	}
	svc := NewService(ServiceConfig{})
	svc.Install(mesh)
	return svc
}

func TestNewMeshRejectsDanglingReferences(t *testing.T) {
	file := corridorFile()
	file.Areas[0].East = []uint32{42}
	if _, err := file.Build(); StatusOf(err) != NavCorruptData {
		t.Fatalf("expected corrupt data for dangling connection, got %v", err)
	}

	file = corridorFile()
	file.Ladders[0].TopArea = 77
	if _, err := file.Build(); StatusOf(err) != NavCorruptData {
		t.Fatalf("expected corrupt data for dangling ladder, got %v", err)
	}

	file = corridorFile()
	file.Areas[1].ID = 1
	if _, err := file.Build(); StatusOf(err) != NavCorruptData {
		t.Fatalf("expected corrupt data for duplicate id, got %v", err)
	}
}

func TestNearestArea(t *testing.T) {
	svc := newCorridorService(t)

	for _, tc := range []struct {
		name           string
		pos            Vector
		ignoreVertical bool
		want           uint32
	}{
		{name: "contained", pos: Vector{150, 50, 10}, want: 2},
		{name: "platform above floor", pos: Vector{250, 150, 210}, want: 4},
		{name: "outside picks closest", pos: Vector{-20, 50, 0}, want: 1},
		{name: "planar ignores height", pos: Vector{50, 50, 5000}, ignoreVertical: true, want: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ref, ok := svc.NearestArea(tc.pos, tc.ignoreVertical)
			if !ok {
				t.Fatalf("expected an area")
			}
			if ref.ID != tc.want {
				t.Fatalf("expected area %d, got %d", tc.want, ref.ID)
			}
			if ref.Generation != svc.Generation() {
				t.Fatalf("expected generation %d, got %d", svc.Generation(), ref.Generation)
			}
		})
	}

	svc.Unload()
	if _, ok := svc.NearestArea(Vector{150, 50, 0}, false); ok {
		t.Fatalf("expected no area once unloaded")
	}
}

func TestClosestPoint(t *testing.T) {
	svc := newCorridorService(t)

	got, err := svc.ClosestPoint(svc.Ref(2), Vector{500, -30, 40})
	if err != nil {
		t.Fatalf("closest point failed: %v", err)
	}
	if got != (Vector{200, 0, 0}) {
		t.Fatalf("unexpected projection: %v", got)
	}

	if _, err := svc.ClosestPoint(svc.Ref(99), Vector{}); !errors.Is(err, ErrInvalidArea) {
		t.Fatalf("expected invalid area, got %v", err)
	}
	if _, err := svc.ClosestPoint(AreaRef{}, Vector{}); !errors.Is(err, ErrInvalidArea) {
		t.Fatalf("expected invalid area for zero ref, got %v", err)
	}
}

func TestComputePathAlongCorridor(t *testing.T) {
	svc := newCorridorService(t)
	out := make([]Waypoint, MaxPathLength)
	start := Vector{50, 50, 0}
	goal := Vector{280, 60, 0}

	n, err := svc.ComputePath(svc.Ref(1), start, svc.Ref(3), goal, RouteFastest, out)
	if err != nil {
		t.Fatalf("compute path failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 waypoints, got %d: %+v", n, out[:n])
	}

	wantAreas := []uint32{1, 2, 3, 3}
	wantHow := []TraverseType{TraverseNone, GoEast, GoEast, TraverseNone}
	for i := 0; i < n; i++ {
		if out[i].Area.ID != wantAreas[i] {
			t.Fatalf("step %d: expected area %d, got %d", i, wantAreas[i], out[i].Area.ID)
		}
		if out[i].How != wantHow[i] {
			t.Fatalf("step %d: expected %s, got %s", i, wantHow[i], out[i].How)
		}
	}
	if out[0].Pos != start {
		t.Fatalf("expected first waypoint at start, got %v", out[0].Pos)
	}
	if out[1].Pos != (Vector{100, 50, 0}) {
		t.Fatalf("expected second waypoint on the shared edge, got %v", out[1].Pos)
	}
	if out[n-1].Pos != goal {
		t.Fatalf("expected last waypoint at goal, got %v", out[n-1].Pos)
	}
}

func TestComputePathUsesLadder(t *testing.T) {
	svc := newCorridorService(t)
	out := make([]Waypoint, MaxPathLength)

	n, err := svc.ComputePath(svc.Ref(2), Vector{150, 50, 0}, AreaRef{}, Vector{250, 180, 200}, RouteFastest, out)
	if err != nil {
		t.Fatalf("compute path failed: %v", err)
	}
	var climb *Waypoint
	for i := 0; i < n; i++ {
		if out[i].How == GoLadderUp {
			climb = &out[i]
		}
	}
	if climb == nil {
		t.Fatalf("expected a ladder step in %+v", out[:n])
	}
	if climb.Ladder.ID != 9 || climb.Area.ID != 4 {
		t.Fatalf("unexpected ladder step %+v", *climb)
	}
	if _, err := svc.Ladder(climb.Ladder); err != nil {
		t.Fatalf("ladder ref should resolve: %v", err)
	}
}

func TestComputePathNoRouteLeavesOutputUntouched(t *testing.T) {
	svc := newCorridorService(t)
	out := make([]Waypoint, MaxPathLength)
	sentinel := Waypoint{Area: AreaRef{ID: 77}}
	out[0] = sentinel

	_, err := svc.ComputePath(svc.Ref(1), Vector{50, 50, 0}, svc.Ref(5), Vector{1050, 1050, 0}, RouteFastest, out)
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected no route, got %v", err)
	}
	if out[0] != sentinel {
		t.Fatalf("output modified on failure: %+v", out[0])
	}

	if _, err := svc.ComputePath(svc.Ref(1), Vector{}, svc.Ref(3), Vector{}, RouteFastest, out[:2]); !errors.Is(err, ErrPathTooLong) {
		t.Fatalf("expected path too long for short buffer, got %v", err)
	}
}

func TestSafestRoutePenalisesLaddersAndCrouching(t *testing.T) {
	mesh, err := corridorFile().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	from, _ := mesh.Area(2)
	to, _ := mesh.Area(3)
	ladder, _ := mesh.Ladder(9)

	walk := hop{area: to, how: GoEast}
	if edgeCost(from, walk, RouteSafest) <= edgeCost(from, walk, RouteFastest) {
		t.Fatalf("expected crouch area to cost more on the safest route")
	}
	climb := hop{area: to, how: GoLadderUp, ladder: ladder}
	if edgeCost(from, climb, RouteSafest) <= edgeCost(from, climb, RouteFastest) {
		t.Fatalf("expected ladder to cost more on the safest route")
	}
}

func TestReinstallInvalidatesRefs(t *testing.T) {
	svc := newCorridorService(t)
	old := svc.Ref(1)

	hooks := 0
	svc.OnUnload(func() { hooks++ })

	mesh, err := corridorFile().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	svc.Install(mesh)

	if hooks != 1 {
		t.Fatalf("expected unload hook to run once, ran %d", hooks)
	}
	if _, err := svc.Area(old); !errors.Is(err, ErrStaleRef) {
		t.Fatalf("expected stale ref, got %v", err)
	}
	if !svc.ValidArea(svc.Ref(1)) {
		t.Fatalf("expected fresh ref to resolve")
	}

	svc.Unload()
	svc.Unload()
	if hooks != 2 {
		t.Fatalf("expected a single hook run per unload, got %d", hooks)
	}
	if _, err := svc.Area(svc.Ref(1)); !errors.Is(err, ErrMeshNotLoaded) {
		t.Fatalf("expected mesh not loaded, got %v", err)
	}
}

func TestLoadStatuses(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(ServiceConfig{})

	if status, _ := svc.Load(filepath.Join(dir, "missing.hjson")); status != NavCantAccessFile {
		t.Fatalf("expected cant access file, got %s", status)
	}

	garbage := filepath.Join(dir, "garbage.hjson")
	writeFile(t, garbage, []byte("{ areas: [ "))
	if status, _ := svc.Load(garbage); status != NavInvalidFile {
		t.Fatalf("expected invalid file, got %s", status)
	}

	old := filepath.Join(dir, "old.hjson")
	writeFile(t, old, []byte("{\n  version: 7\n  areas: []\n}\n"))
	if status, _ := svc.Load(old); status != NavBadFileVersion {
		t.Fatalf("expected bad version, got %s", status)
	}

	corrupt := filepath.Join(dir, "corrupt.hjson")
	writeFile(t, corrupt, []byte(`{
  # area 1 points at an area that does not exist
  version: 1
  areas: [
    { id: 1, lo: [0, 0, 0], hi: [10, 10, 0], north: [3] }
  ]
}`))
	if status, _ := svc.Load(corrupt); status != NavCorruptData {
		t.Fatalf("expected corrupt data, got %s", status)
	}
	if svc.Loaded() {
		t.Fatalf("failed loads must not install a mesh")
	}
}

func TestLoadCompiledMesh(t *testing.T) {
	data, err := EncodeBinary(corridorFile())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "corridor.nav")
	writeFile(t, path, data)

	svc := NewService(ServiceConfig{DefaultPath: path})
	status, err := svc.Load("")
	if status != NavOK || err != nil {
		t.Fatalf("expected ok, got %s: %v", status, err)
	}
	if got := svc.Mesh().AreaCount(); got != 5 {
		t.Fatalf("expected 5 areas, got %d", got)
	}
	if got := svc.Mesh().LadderCount(); got != 1 {
		t.Fatalf("expected 1 ladder, got %d", got)
	}

	if _, err := DecodeBinary([]byte("not msgpack")); StatusOf(err) != NavInvalidFile {
		t.Fatalf("expected invalid file for garbage, got %v", err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
