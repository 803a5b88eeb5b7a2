package sim

import (
	"encoding/json"
	"errors"
)

var (
	// ErrMissingDispatcher indicates NewEngine was invoked without a dispatcher.
	ErrMissingDispatcher = errors.New("sim: dispatcher is nil")
	// ErrUnknownCommand is replied to commands the loop cannot execute.
	ErrUnknownCommand = errors.New("sim: unknown command")
)

// Dispatcher executes bridge natives. It is only ever invoked from the tick
// goroutine, so implementations need no locking of their own.
type Dispatcher interface {
	Call(native string, args json.RawMessage) (any, error)
}

// DispatcherFunc adapts a function into a Dispatcher.
type DispatcherFunc func(native string, args json.RawMessage) (any, error)

func (f DispatcherFunc) Call(native string, args json.RawMessage) (any, error) {
	return f(native, args)
}

// EngineOption configures NewEngine behaviour. Options are applied in order;
// later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	deps       Deps
	loopConfig LoopConfig
	loopHooks  LoopHooks
}

// WithDeps injects shared infrastructure dependencies used by the loop.
func WithDeps(deps Deps) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.deps = deps
	})
}

// WithLoopConfig overrides the default call queue and tick loop sizing.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies custom loop callbacks.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = hooks
	})
}

// NewEngine builds the tick loop that serialises bridge calls onto one
// goroutine.
func NewEngine(dispatcher Dispatcher, opts ...EngineOption) (*Loop, error) {
	if dispatcher == nil {
		return nil, ErrMissingDispatcher
	}
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	return NewLoop(dispatcher, cfg.deps, cfg.loopConfig, cfg.loopHooks), nil
}
