package domain

import "time"

type EventType string

const (
	EventWaiting   EventType = "waiting"
	EventActive    EventType = "active"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventProgress  EventType = "progress"
	EventStalled   EventType = "stalled"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventCleaned   EventType = "cleaned"
	EventDrained   EventType = "drained"
)

// EventTypes lists every lifecycle event in emission-agnostic order.
var EventTypes = []EventType{
	EventWaiting, EventActive, EventCompleted, EventFailed, EventProgress,
	EventStalled, EventPaused, EventResumed, EventCleaned, EventDrained,
}

// Event is delivered synchronously to listeners. Job is a copy; mutating it has no effect.
type Event struct {
	Type     EventType     `json:"type"`
	Queue    string        `json:"queue"`
	Job      *Job          `json:"job,omitempty"`
	Progress int           `json:"progress,omitempty"`
	Error    string        `json:"error,omitempty"`
	Delay    time.Duration `json:"delay,omitempty"`
	Count    int           `json:"count,omitempty"`
	Time     time.Time     `json:"time"`
}

type Listener func(Event)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64
