package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"navbridge/internal/telemetry"
	"navbridge/logging"
	simlog "navbridge/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	tickMetricKey       = "sim_tick"
	callsMetricKey      = "sim_calls_total"
	callErrorsMetricKey = "sim_call_errors_total"
	overrunMetricKey    = "sim_tick_budget_overrun_total"
)

var (
	ErrQueueFull  = errors.New("sim: call queue is full")
	ErrActorLimit = errors.New("sim: too many pending calls for actor")
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult summarises a completed tick.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	GameTime     float64
	Commands     []Command
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

// LoopHooks are optional callbacks around each tick.
type LoopHooks struct {
	// Prepare runs after game time advances and before staged calls execute.
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop owns the simulation goroutine. Every bridge call is staged in the
// command buffer and executed in FIFO order at the start of the next tick, so
// the dispatcher and everything behind it is only touched by one goroutine.
type Loop struct {
	dispatcher Dispatcher
	buffer     *CommandBuffer
	hooks      LoopHooks
	config     LoopConfig
	logger     telemetry.Logger
	metrics    telemetry.Metrics
	publisher  logging.Publisher
	clock      logging.Clock

	tick          atomic.Uint64
	gameTime      atomic.Uint64
	overrunStreak uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64
	droppedTotal  uint64
}

// NewLoop wraps the dispatcher with a ring-buffer queue and loop.
func NewLoop(dispatcher Dispatcher, deps Deps, cfg LoopConfig, hooks LoopHooks) *Loop {
	if dispatcher == nil {
		return nil
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 1024
	}
	return &Loop{
		dispatcher:    dispatcher,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		publisher:     deps.Publisher,
		clock:         deps.Clock,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Tick reports the last tick that ran.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// GameTime reports elapsed simulated seconds.
func (l *Loop) GameTime() float64 {
	if l == nil {
		return 0
	}
	return math.Float64frombits(l.gameTime.Load())
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Capacity reports the size of the call queue.
func (l *Loop) Capacity() int {
	if l == nil {
		return 0
	}
	return l.buffer.Capacity()
}

// Call stages a native call and blocks until the tick goroutine has run it
// or ctx is done. A call abandoned by its context still runs; its result is
// discarded.
func (l *Loop) Call(ctx context.Context, actorID string, call CallCommand) (any, error) {
	reply := make(chan Result, 1)
	ok, reason := l.Enqueue(Command{
		OriginTick: l.Tick(),
		ActorID:    actorID,
		Type:       CommandCall,
		IssuedAt:   l.clock.Now(),
		Call:       &call,
		reply:      reply,
	})
	if !ok {
		if reason == CommandRejectQueueLimit {
			return nil, ErrActorLimit
		}
		return nil, ErrQueueFull
	}
	select {
	case res := <-reply:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
			if cmd.ActorID != "" && l.config.PerActorLimit > 0 {
				l.perActorCount[cmd.ActorID]--
			}
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	total := l.droppedTotal
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount, total)
		return false, reason
	}
	return true, ""
}

// Advance executes a single tick: game time moves forward by ctx.Delta and
// the staged calls run in FIFO order.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	l.tick.Store(ctx.Tick)
	gameTime := l.GameTime() + ctx.Delta
	l.gameTime.Store(math.Float64bits(gameTime))
	telemetry.Store(l.metrics, tickMetricKey, ctx.Tick)
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	for _, cmd := range commands {
		l.execute(cmd)
	}
	return LoopStepResult{
		Tick:     ctx.Tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		GameTime: gameTime,
		Commands: commands,
	}
}

// Step runs one tick of delta seconds immediately.
func (l *Loop) Step(delta float64) LoopStepResult {
	return l.Advance(LoopTickContext{Tick: l.Tick() + 1, Now: l.clock.Now(), Delta: delta})
}

func (l *Loop) execute(cmd Command) {
	if cmd.Type != CommandCall || cmd.Call == nil {
		cmd.respond(Result{Err: ErrUnknownCommand})
		return
	}
	value, err := l.dispatcher.Call(cmd.Call.Native, cmd.Call.Args)
	telemetry.Add(l.metrics, callsMetricKey, 1)
	if err != nil {
		telemetry.Add(l.metrics, callErrorsMetricKey, 1)
	}
	cmd.respond(Result{Value: value, Err: err})
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	last := l.clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	budgetDuration := time.Second / time.Duration(tickRate)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := l.clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.Tick() + 1, Now: now, Delta: dt})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			l.checkBudget(result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) checkBudget(result LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	telemetry.Add(l.metrics, overrunMetricKey, 1)
	simlog.TickBudgetOverrun(context.Background(), l.publisher, result.Tick, simlog.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrunStreak,
		Calls:          len(result.Commands),
	}, nil)
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	l.droppedTotal++
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count, total uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if reason == CommandRejectQueueFull && total&(total-1) == 0 {
		simlog.CallQueueSaturated(context.Background(), l.publisher, l.Tick(), simlog.CallQueueSaturatedPayload{
			Capacity: l.buffer.Capacity(),
			Dropped:  total,
		})
	}
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		if l.logger != nil {
			l.logger.Printf(
				"[backpressure] dropping call actor=%s type=%s count=%d limit=%d",
				cmd.ActorID,
				cmd.Type,
				count,
				l.config.PerActorLimit,
			)
		}
	}
}
