package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"navbridge/internal/net/proto"
	"navbridge/internal/telemetry"
)

const corridorMesh = `{
  # two rooms joined east to west
  version: 1
  areas: [
    { id: 1, lo: [0, 0, 0], hi: [100, 100, 0], east: [2] }
    { id: 2, lo: [100, 0, 0], hi: [200, 100, 0], west: [1] }
  ]
}`

func newTestServer(t *testing.T, meshPath string) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	cfg.TickRate = 100
	cfg.MeshPath = meshPath
	cfg.Observability.DisableRuntimeMetrics = true
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	stop := make(chan struct{})
	go s.Loop.Run(stop)
	t.Cleanup(func() {
		close(stop)
		s.Close(context.Background())
	})
	return s
}

func writeMesh(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corridor.hjson")
	if err := os.WriteFile(path, []byte(corridorMesh), 0o644); err != nil {
		t.Fatalf("write mesh: %v", err)
	}
	return path
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func connect(t *testing.T, s *Server) *client {
	t.Helper()
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(srv.Close)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		resp.Body.Close()
	})
	c := &client{t: t, conn: conn}
	var hello proto.HelloMessage
	c.read(&hello)
	if hello.Type != proto.TypeHello || len(hello.Natives) == 0 {
		t.Fatalf("unexpected hello %+v", hello)
	}
	return c
}

func (c *client) read(into any) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(payload, into); err != nil {
		c.t.Fatalf("decode %s: %v", payload, err)
	}
}

// call sends one call and decodes the result value into out.
func (c *client) call(native string, args any, out any) proto.ResultMessage {
	c.t.Helper()
	if err := c.conn.WriteJSON(map[string]any{"type": "call", "id": native, "native": native, "args": args}); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	var result struct {
		proto.ResultMessage
		Value json.RawMessage `json:"value"`
	}
	c.read(&result)
	if out != nil && result.OK {
		if err := json.Unmarshal(result.Value, out); err != nil {
			c.t.Fatalf("decode %s value: %v", native, err)
		}
	}
	return result.ResultMessage
}

func TestBridgeEndToEnd(t *testing.T) {
	s := newTestServer(t, writeMesh(t))
	c := connect(t, s)

	var loaded struct {
		Loaded     bool   `json:"loaded"`
		Generation uint32 `json:"generation"`
	}
	if res := c.call("nav.loaded", nil, &loaded); !res.OK || !loaded.Loaded {
		t.Fatalf("expected the configured mesh to be loaded, got %+v %+v", res, loaded)
	}

	var spawned struct {
		Entity uint64 `json:"entity"`
	}
	c.call("entity.spawn", map[string]any{"pos": []float32{50, 50, 0}}, &spawned)
	if spawned.Entity == 0 {
		t.Fatalf("expected an entity id")
	}

	var created struct {
		Handle uint64 `json:"handle"`
		Error  string `json:"error"`
	}
	c.call("path.compute", map[string]any{
		"subject":   spawned.Entity,
		"startArea": map[string]any{"id": 1, "generation": loaded.Generation},
		"startPos":  []float32{50, 50, 0},
		"goalPos":   []float32{150, 50, 0},
	}, &created)
	if created.Handle == 0 || created.Error != "" {
		t.Fatalf("expected a tracker, got %+v", created)
	}

	var length struct {
		Kind  string `json:"kind"`
		Value int    `json:"value"`
	}
	c.call("tracker.read", map[string]any{"handle": created.Handle, "field": "length"}, &length)
	if length.Kind != "int" || length.Value < 2 {
		t.Fatalf("expected a multi-step path, got %+v", length)
	}

	if res := c.call("tracker.write", map[string]any{"handle": created.Handle, "field": "path"}, nil); res.OK || res.Code != proto.CodeBadArgs {
		t.Fatalf("expected a bad-args rejection for a missing value, got %+v", res)
	}

	var unloaded struct {
		Count int `json:"count"`
	}
	c.call("nav.unload", nil, &unloaded)
	if unloaded.Count != 1 {
		t.Fatalf("expected unloading to purge the tracker, got %d", unloaded.Count)
	}

	// diagnostics lag by at most a tick
	deadline := time.Now().Add(2 * time.Second)
	for {
		diag := s.Diagnostics()
		if !diag.MeshLoaded && diag.Entities == 1 && diag.Trackers == 0 && diag.Tick > 0 {
			if diag.Metrics["tracker_created_total"] != 1 {
				t.Fatalf("expected the created counter in diagnostics, got %v", diag.Metrics)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("diagnostics never caught up: %+v", diag)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNavigationDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	cfg.NavEnabled = false
	cfg.MeshPath = writeMesh(t)
	cfg.Observability.DisableRuntimeMetrics = true
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	stop := make(chan struct{})
	go s.Loop.Run(stop)
	t.Cleanup(func() {
		close(stop)
		s.Close(context.Background())
	})
	if s.Nav.Loaded() {
		t.Fatalf("a disabled bridge must not load the mesh")
	}

	c := connect(t, s)
	if res := c.call("nav.load", nil, nil); res.OK || res.Code != proto.CodeUnavailable || res.Error != "nav.load isn't available" {
		t.Fatalf("expected nav.load to be unavailable, got %+v", res)
	}
	if res := c.call("entity.spawn", map[string]any{"pos": []float32{1, 2, 3}}, nil); !res.OK {
		t.Fatalf("entity natives must stay available, got %+v", res)
	}
}

func TestHTTPSurface(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/diagnostics")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Status string      `json:"status"`
		State  Diagnostics `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.State.TickRate != 100 || payload.State.MeshLoaded {
		t.Fatalf("unexpected diagnostics %+v", payload)
	}

	metrics, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	metrics.Body.Close()
	if metrics.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics to be served, got %d", metrics.StatusCode)
	}
}
