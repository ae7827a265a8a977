package models

import "time"

type EventKind string

const (
	EventTrainingStarted   EventKind = "training_started"
	EventRoundCompleted    EventKind = "round_completed"
	EventTrainingPaused    EventKind = "training_paused"
	EventTrainingResumed   EventKind = "training_resumed"
	EventStopRequested     EventKind = "stop_requested"
	EventTrainingCompleted EventKind = "training_completed"
	EventTrainingFailed    EventKind = "training_failed"
	EventStrategyChanged   EventKind = "strategy_changed"
)

// Event is a lifecycle notification emitted by the engine. Delivery is
// best-effort; the engine never blocks on a subscriber.
type Event struct {
	Kind      EventKind              `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

func NewEvent(kind EventKind, payload map[string]interface{}) Event {
	return Event{
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
