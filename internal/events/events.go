// Package events defines the progress events a streaming agent run
// emits, with an optional NATS mirror for external subscribers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

// Event type discriminators.
const (
	// TypeStarted is emitted once when a run begins.
	TypeStarted = "started"
	// TypeProgress marks intermediate progress within a run.
	TypeProgress = "progress"
	// TypeCompleted is the terminal event for a successful run; its
	// Response carries the full response envelope.
	TypeCompleted = "completed"
	// TypeError is the terminal event for a run whose envelope carries
	// a structured error. Its Response is still the full envelope.
	TypeError = "error"
)

// Event is one progress update in a streaming run. The terminal event
// carries the response envelope; intermediate events carry a stage name
// and message.
type Event struct {
	// EventID uniquely identifies one emitted event across mirrors.
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	RequestID string    `json:"request_id"`
	TaskType  string    `json:"task_type,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Percent   int       `json:"percent,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Response is set only on TypeCompleted events.
	Response *contract.Response `json:"response,omitempty"`
}

// Started builds the initial event for a run.
func Started(req *contract.Request) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      TypeStarted,
		RequestID: req.RequestID,
		TaskType:  string(req.TaskType),
		Timestamp: time.Now().UTC(),
	}
}

// Progress builds an intermediate progress event.
func Progress(req *contract.Request, stage, message string, percent int) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      TypeProgress,
		RequestID: req.RequestID,
		TaskType:  string(req.TaskType),
		Stage:     stage,
		Message:   message,
		Percent:   percent,
		Timestamp: time.Now().UTC(),
	}
}

// Completed builds the terminal event wrapping the response envelope.
// Error-status envelopes terminate the stream with TypeError.
func Completed(req *contract.Request, resp *contract.Response) Event {
	eventType := TypeCompleted
	if resp != nil && resp.Status == contract.StatusError {
		eventType = TypeError
	}
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		RequestID: req.RequestID,
		TaskType:  string(req.TaskType),
		Percent:   100,
		Timestamp: time.Now().UTC(),
		Response:  resp,
	}
}

// Sink receives run events. Implementations must not block indefinitely.
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(event Event) { f(event) }

// Discard drops all events.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(event Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(event)
			}
		}
	})
}
