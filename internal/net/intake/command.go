package intake

import (
	"errors"

	"navbridge/internal/bridge"
	"navbridge/internal/net/proto"
	"navbridge/internal/sim"
)

// CallContext validates inbound calls before they reach the loop.
type CallContext struct {
	// Known reports whether a native exists. Nil accepts every name and
	// leaves the check to the dispatcher.
	Known func(native string) bool
}

// StageCall turns a decoded call envelope into a loop command. A rejected
// call reports the proto code to answer with.
func StageCall(ctx CallContext, msg proto.ClientMessage) (sim.CallCommand, bool, string) {
	var zero sim.CallCommand
	if msg.Type != proto.TypeCall || msg.Native == "" {
		return zero, false, proto.CodeInvalidEnvelope
	}
	if ctx.Known != nil && !ctx.Known(msg.Native) {
		return zero, false, proto.CodeUnknownNative
	}
	return sim.CallCommand{ID: msg.ID, Native: msg.Native, Args: msg.Args}, true, ""
}

// Classify maps a call error onto the proto code reported to the client.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sim.ErrActorLimit):
		return proto.CodeQueueLimit
	case errors.Is(err, sim.ErrQueueFull):
		return proto.CodeQueueFull
	case errors.Is(err, bridge.ErrUnknownNative):
		return proto.CodeUnknownNative
	case errors.Is(err, bridge.ErrBadArgs):
		return proto.CodeBadArgs
	case errors.Is(err, bridge.ErrUnavailable):
		return proto.CodeUnavailable
	default:
		return proto.CodeFailed
	}
}

// Retryable reports whether a code signals back pressure rather than a bad
// call.
func Retryable(code string) bool {
	return code == proto.CodeQueueLimit || code == proto.CodeQueueFull
}
