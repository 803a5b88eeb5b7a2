package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"navbridge/internal/bridge"
	"navbridge/internal/entity"
	"navbridge/internal/navmesh"
	servernet "navbridge/internal/net"
	"navbridge/internal/net/ws"
	"navbridge/internal/random"
	"navbridge/internal/sim"
	"navbridge/internal/telemetry"
	"navbridge/internal/tracker"
	"navbridge/logging"
	loggingSinks "navbridge/logging/sinks"
)

// Diagnostics is the state reported by /diagnostics.
type Diagnostics struct {
	Tick           uint64              `json:"tick"`
	GameTime       float64             `json:"gameTime"`
	TickRate       int                 `json:"tickRate"`
	NavEnabled     bool                `json:"navEnabled"`
	MeshLoaded     bool                `json:"meshLoaded"`
	MeshGeneration uint32              `json:"meshGeneration"`
	Trackers       int                 `json:"trackers"`
	Entities       int                 `json:"entities"`
	PendingCalls   int                 `json:"pendingCalls"`
	Sessions       int                 `json:"sessions"`
	Router         logging.RouterStats `json:"router"`
	Metrics        map[string]uint64   `json:"metrics"`
}

// loopState is captured on the simulation goroutine after every tick so the
// HTTP goroutines never touch the registry directly.
type loopState struct {
	tick       uint64
	gameTime   float64
	meshLoaded bool
	generation uint32
	trackers   int
	entities   int
}

// Server is the fully wired process: the bridge state, the loop that owns it
// and the HTTP surface in front of it.
type Server struct {
	cfg      Config
	logger   telemetry.Logger
	router   *logging.Router
	jsonFile *os.File
	counters *logging.Metrics
	registry *prometheus.Registry

	Nav      *navmesh.Service
	Entities *entity.Directory
	Trackers *tracker.Registry
	Bridge   *bridge.Bridge
	Loop     *sim.Loop
	Sessions *ws.Handler
	Handler  http.Handler

	state atomic.Pointer[loopState]
}

// New wires every component and loads the configured mesh. Nothing runs
// until Run or Loop.Run is called.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	s := &Server{cfg: cfg, logger: logger, counters: &logging.Metrics{}}

	if err := s.buildRouter(); err != nil {
		return nil, err
	}

	s.registry = prometheus.NewRegistry()
	if !cfg.Observability.DisableRuntimeMetrics {
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	prom, err := telemetry.NewPrometheusMetrics(s.registry)
	if err != nil {
		s.closeRouter(context.Background())
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	metrics := telemetry.Fanout(telemetry.WrapMetrics(s.counters), prom)

	// the loop is created last; these closures only run once it exists
	tick := func() uint64 {
		if s.Loop == nil {
			return 0
		}
		return s.Loop.Tick()
	}
	gameTime := tracker.ClockFunc(func() float64 {
		if s.Loop == nil {
			return 0
		}
		return s.Loop.GameTime()
	})

	s.Nav = navmesh.NewService(navmesh.ServiceConfig{
		DefaultPath: cfg.MeshPath,
		Publisher:   s.router,
		Metrics:     metrics,
		Logger:      telemetry.Prefixed(logger, "nav"),
		Tick:        tick,
	})
	s.Entities = entity.NewDirectory()
	s.Trackers = tracker.NewRegistry(tracker.Config{
		Nav:       s.Nav,
		Entities:  s.Entities,
		Clock:     gameTime,
		RNG:       random.New(cfg.Seed, "tracker"),
		Publisher: s.router,
		Metrics:   metrics,
		Tick:      tick,
	})
	s.Bridge = bridge.New(bridge.Config{
		Nav:        s.Nav,
		Trackers:   s.Trackers,
		Entities:   s.Entities,
		NavEnabled: cfg.NavEnabled,
	})

	s.Loop, err = sim.NewEngine(s.Bridge,
		sim.WithDeps(sim.Deps{
			Logger:    telemetry.Prefixed(logger, "sim"),
			Metrics:   metrics,
			Clock:     logging.SystemClock{},
			Publisher: s.router,
		}),
		sim.WithLoopConfig(sim.LoopConfig{
			TickRate:        cfg.TickRate,
			CommandCapacity: cfg.CommandCapacity,
			PerActorLimit:   cfg.PerActorLimit,
		}),
		sim.WithLoopHooks(sim.LoopHooks{
			AfterStep: func(sim.LoopStepResult) { s.captureState() },
		}),
	)
	if err != nil {
		s.closeRouter(context.Background())
		return nil, fmt.Errorf("failed to construct simulation loop: %w", err)
	}

	names := make([]string, 0)
	for _, native := range bridge.Natives() {
		names = append(names, native.Name)
	}
	s.Sessions = ws.NewHandler(s.Loop, ws.HandlerConfig{
		Logger:      telemetry.Prefixed(logger, "ws"),
		Metrics:     metrics,
		Publisher:   s.router,
		Natives:     names,
		CallTimeout: cfg.CallTimeout,
	})
	s.Handler = servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Logger:        logger,
		Bridge:        s.Sessions,
		Diagnostics:   func() any { return s.Diagnostics() },
		Gatherer:      s.registry,
		Observability: cfg.Observability,
	})

	if cfg.NavEnabled && cfg.MeshPath != "" {
		if status, err := s.Nav.Load(cfg.MeshPath); err != nil {
			logger.Printf("initial mesh load of %s failed (%s): %v", cfg.MeshPath, status, err)
		}
	}
	s.captureState()
	return s, nil
}

func (s *Server) buildRouter() error {
	logConfig := logging.DefaultConfig()
	logConfig.MinimumSeverity = s.cfg.LogLevel
	named := []logging.NamedSink{{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout)}}
	if s.cfg.LogJSONPath != "" {
		file, err := os.OpenFile(s.cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open json log: %w", err)
		}
		s.jsonFile = file
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
		logConfig.JSON.FilePath = s.cfg.LogJSONPath
		named = append(named, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval)})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, named)
	if err != nil {
		if s.jsonFile != nil {
			s.jsonFile.Close()
		}
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	s.router = router
	return nil
}

func (s *Server) captureState() {
	s.state.Store(&loopState{
		tick:       s.Loop.Tick(),
		gameTime:   s.Loop.GameTime(),
		meshLoaded: s.Nav.Loaded(),
		generation: s.Nav.Generation(),
		trackers:   s.Trackers.Len(),
		entities:   s.Entities.Len(),
	})
}

// Diagnostics is safe to call from any goroutine.
func (s *Server) Diagnostics() Diagnostics {
	diag := Diagnostics{
		TickRate:     s.cfg.TickRate,
		NavEnabled:   s.cfg.NavEnabled,
		PendingCalls: s.Loop.Pending(),
		Sessions:     s.Sessions.ActiveSessions(),
		Router:       s.router.Stats(),
		Metrics:      s.counters.Snapshot(),
	}
	if state := s.state.Load(); state != nil {
		diag.Tick = state.tick
		diag.GameTime = state.gameTime
		diag.MeshLoaded = state.meshLoaded
		diag.MeshGeneration = state.generation
		diag.Trackers = state.trackers
		diag.Entities = state.entities
	}
	return diag
}

// Close flushes the logging sinks.
func (s *Server) Close(ctx context.Context) error {
	return s.closeRouter(ctx)
}

func (s *Server) closeRouter(ctx context.Context) error {
	err := s.router.Close(ctx)
	if s.jsonFile != nil {
		if cerr := s.jsonFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Run serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := s.Close(closeCtx); cerr != nil {
			s.logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	stop := make(chan struct{})
	go s.Loop.Run(stop)
	defer close(stop)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: s.Handler}
	s.logger.Printf("server listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}
