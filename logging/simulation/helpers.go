package simulation

import (
	"context"

	"navbridge/logging"
)

const (
	// EventTickBudgetOverrun is emitted when the simulation loop exceeds the allotted tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCallQueueSaturated is emitted when bridge calls are rejected because the queue is full.
	EventCallQueueSaturated logging.EventType = "simulation.call_queue_saturated"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	Calls          int     `json:"calls"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CallQueueSaturatedPayload records the queue depth at the time of rejection.
type CallQueueSaturatedPayload struct {
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
}

// CallQueueSaturated publishes a warning when the call queue rejects work.
func CallQueueSaturated(ctx context.Context, pub logging.Publisher, tick uint64, payload CallQueueSaturatedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCallQueueSaturated,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
	})
}
