package sim

import (
	"encoding/json"
	"time"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	// CommandCall runs a bridge native on the simulation goroutine.
	CommandCall CommandType = "Call"
)

// CallCommand names a native and carries its raw arguments.
type CallCommand struct {
	ID     string          `json:"id,omitempty"`
	Native string          `json:"native"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Result is the outcome of a command, delivered to the caller that staged it.
type Result struct {
	Value any
	Err   error
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64       `json:"originTick"`
	ActorID    string       `json:"actorId"`
	Type       CommandType  `json:"type"`
	IssuedAt   time.Time    `json:"issuedAt"`
	Call       *CallCommand `json:"call,omitempty"`

	reply chan<- Result
}

func (c Command) respond(res Result) {
	if c.reply == nil {
		return
	}
	// the reply channel is buffered for exactly one result
	c.reply <- res
}
