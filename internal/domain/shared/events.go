package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventStandingChanged EventType = "standing.changed"
	EventGradeRecorded   EventType = "registration.graded"
	EventEntityNumbered  EventType = "numbering.issued"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// Correlation returns the correlation ID, empty when unset.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// StandingChangedEvent is emitted when reconciliation moves a student to a
// different academic standing.
type StandingChangedEvent struct {
	BaseEvent
	StudentID    int64    `json:"student_id"`
	FromStanding string   `json:"from_standing"`
	ToStanding   string   `json:"to_standing"`
	Path         []string `json:"path"`
	GPA          *float64 `json:"gpa,omitempty"`
}

// Payload implements Event interface.
func (e StandingChangedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"student_id":    e.StudentID,
		"from_standing": e.FromStanding,
		"to_standing":   e.ToStanding,
		"path":          e.Path,
	}
	if e.GPA != nil {
		p["gpa"] = *e.GPA
	}
	return p
}

// GradeRecordedEvent is emitted when a score is recorded on a registration.
type GradeRecordedEvent struct {
	BaseEvent
	StudentID      int64   `json:"student_id"`
	RegistrationID int64   `json:"registration_id"`
	Score          float64 `json:"score"`
	GradePoint     string  `json:"grade_point"`
}

// Payload implements Event interface.
func (e GradeRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"registration_id": e.RegistrationID,
		"score":           e.Score,
		"grade_point":     e.GradePoint,
	}
}

// EntityNumberedEvent is emitted when an entity receives its business number
// (student number, course number, registration number).
type EntityNumberedEvent struct {
	BaseEvent
	Category string `json:"category"`
	Number   string `json:"number"`
}

// Payload implements Event interface.
func (e EntityNumberedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"category": e.Category,
		"number":   e.Number,
	}
}

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope serializes an event into an envelope.
func NewEnvelope(event Event, correlationID string) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		Type:          event.EventType(),
		AggregateID:   event.AggregateID(),
		Timestamp:     event.OccurredAt(),
		CorrelationID: correlationID,
		Payload:       payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber

	// Close stops delivery and releases resources.
	Close() error
}
