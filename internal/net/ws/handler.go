// Package ws serves the websocket bridge: every text frame is a call
// envelope answered by a result envelope.
package ws

import (
	"context"
	"fmt"
	"log"
	nethttp "net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"navbridge/internal/net/intake"
	"navbridge/internal/net/proto"
	"navbridge/internal/sim"
	"navbridge/internal/telemetry"
	"navbridge/logging"
	"navbridge/logging/network"
)

const (
	metricSessionsActive = "ws_sessions_active"
	metricCallsTotal     = "ws_calls_total"
	metricRejectsTotal   = "ws_call_rejects_total"
)

// Caller runs a native on the simulation goroutine. *sim.Loop satisfies it.
type Caller interface {
	Call(ctx context.Context, actorID string, call sim.CallCommand) (any, error)
	Tick() uint64
}

type HandlerConfig struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	// Natives is announced in the hello message and used to reject unknown
	// names before they are queued.
	Natives []string
	// CallTimeout bounds how long one call may wait for its tick.
	CallTimeout time.Duration
}

type Handler struct {
	caller    Caller
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	natives   []string
	known     map[string]struct{}
	timeout   time.Duration
	upgrader  websocket.Upgrader

	nextID atomic.Uint64
	active atomic.Int64
}

func NewHandler(caller Caller, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var known map[string]struct{}
	if len(cfg.Natives) > 0 {
		known = make(map[string]struct{}, len(cfg.Natives))
		for _, name := range cfg.Natives {
			known[name] = struct{}{}
		}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		caller:    caller,
		logger:    logger,
		metrics:   cfg.Metrics,
		publisher: publisher,
		natives:   append([]string(nil), cfg.Natives...),
		known:     known,
		timeout:   timeout,
		upgrader:  upgrader,
	}
}

// ActiveSessions reports how many clients are attached.
func (h *Handler) ActiveSessions() int {
	return int(h.active.Load())
}

func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.Handle(w, r)
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.caller == nil {
		nethttp.Error(w, "bridge unavailable", nethttp.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sess := newSession(fmt.Sprintf("session-%d", h.nextID.Add(1)), conn)
	h.storeActive(h.active.Add(1))
	network.SessionOpened(context.Background(), h.publisher, sess.ref(), network.SessionPayload{Remote: sess.remote})

	ctx, cancel := context.WithCancel(context.Background())
	var inflight sync.WaitGroup
	reason := "client closed"
	defer func() {
		cancel()
		inflight.Wait()
		sess.close(websocket.CloseNormalClosure, "")
		h.storeActive(h.active.Add(-1))
		network.SessionClosed(context.Background(), h.publisher, sess.ref(), network.SessionPayload{Remote: sess.remote, Reason: reason})
	}()

	if err := sess.writeJSON(proto.NewHello(sess.id, h.natives)); err != nil {
		reason = "hello failed"
		return
	}

	staging := intake.CallContext{Known: h.isKnown}
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sess.id, err)
			if werr := sess.writeJSON(proto.Failure(msg.ID, proto.CodeInvalidEnvelope, err)); werr != nil {
				reason = "write failed"
				return
			}
			continue
		}

		if msg.Type == proto.TypeHeartbeat {
			ack := proto.HeartbeatMessage{
				Ver:        proto.Version,
				Type:       proto.TypeHeartbeat,
				ServerTime: time.Now().UnixMilli(),
				ClientTime: msg.SentAt,
			}
			if err := sess.writeJSON(ack); err != nil {
				reason = "write failed"
				return
			}
			continue
		}

		call, ok, code := intake.StageCall(staging, msg)
		if !ok {
			h.reject(sess, msg.ID, msg.Native, code, fmt.Errorf("native %q rejected: %s", msg.Native, code))
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			h.dispatch(ctx, sess, call)
		}()
	}
}

func (h *Handler) dispatch(parent context.Context, sess *session, call sim.CallCommand) {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	telemetry.Add(h.metrics, metricCallsTotal, 1)
	value, err := h.caller.Call(ctx, sess.id, call)
	if err != nil {
		h.reject(sess, call.ID, call.Native, intake.Classify(err), err)
		return
	}
	if werr := sess.writeJSON(proto.Success(call.ID, value, h.caller.Tick())); werr != nil {
		h.logger.Printf("failed to answer %s for %s: %v", call.Native, sess.id, werr)
	}
}

func (h *Handler) reject(sess *session, id, native, code string, err error) {
	telemetry.Add(h.metrics, metricRejectsTotal, 1)
	tick := h.caller.Tick()
	network.CallRejected(context.Background(), h.publisher, tick, sess.ref(), id, network.CallRejectedPayload{Native: native, Error: err.Error()})
	result := proto.Failure(id, code, err)
	result.Tick = tick
	if werr := sess.writeJSON(result); werr != nil {
		h.logger.Printf("failed to reject %s for %s: %v", native, sess.id, werr)
	}
}

func (h *Handler) isKnown(native string) bool {
	if h.known == nil {
		return true
	}
	_, ok := h.known[native]
	return ok
}

func (h *Handler) storeActive(n int64) {
	if n < 0 {
		return
	}
	telemetry.Store(h.metrics, metricSessionsActive, uint64(n))
}
