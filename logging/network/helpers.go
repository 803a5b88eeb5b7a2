package network

import (
	"context"

	"navbridge/logging"
)

const (
	// EventSessionOpened is emitted when a scripting client attaches.
	EventSessionOpened logging.EventType = "network.session_opened"
	// EventSessionClosed is emitted when a scripting client detaches.
	EventSessionClosed logging.EventType = "network.session_closed"
	// EventCallRejected is emitted when a native call fails a precondition.
	EventCallRejected logging.EventType = "network.call_rejected"
)

// SessionPayload captures the remote address of a session.
type SessionPayload struct {
	Remote string `json:"remote"`
	Reason string `json:"reason,omitempty"`
}

// CallRejectedPayload captures the native and the usage error it produced.
type CallRejectedPayload struct {
	Native string `json:"native"`
	Error  string `json:"error"`
}

// SessionOpened publishes an info event for a new bridge session.
func SessionOpened(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionOpened,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBridge,
		Payload:  payload,
	})
}

// SessionClosed publishes an info event when a session ends.
func SessionClosed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionClosed,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBridge,
		Payload:  payload,
	})
}

// CallRejected publishes a warning for a native call that failed a
// precondition check.
func CallRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, callID string, payload CallRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCallRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryBridge,
		Payload:  payload,
		CallID:   callID,
	})
}
