package events

import "burnfaucet/core/types"

// Event represents a structured state change emitted by a program.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. HTTP clients, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Committed wraps an event released by a committed transaction.
type Committed struct {
	Evt       types.Event
	Signature string
}

func (c Committed) EventType() string { return c.Evt.Type }

// Event returns the underlying typed event.
func (c Committed) Event() *types.Event { return &c.Evt }

// Recorder keeps every emitted event in memory.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) { r.Events = append(r.Events, evt) }
