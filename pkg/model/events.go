package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SessionEventType string

const (
	SessionLogin     SessionEventType = "login"
	SessionRefreshed SessionEventType = "refreshed"
	SessionLogout    SessionEventType = "logout"
	SessionExpired   SessionEventType = "expired"

	NotificationReceived SessionEventType = "notification.received"
)

// SessionEvent describes a change in the client's authentication state.
type SessionEvent struct {
	ID        uuid.UUID        `json:"id"`
	Type      SessionEventType `json:"type"`
	UserID    int64            `json:"user_id,omitempty"`
	Role      Role             `json:"role,omitempty"`
	Detail    json.RawMessage  `json:"detail,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewSessionEvent stamps an event with a fresh id and the current UTC time.
func NewSessionEvent(t SessionEventType, u *User) SessionEvent {
	ev := SessionEvent{
		ID:        uuid.New(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
	if u != nil {
		ev.UserID = u.ID
		ev.Role = u.Role
	}
	return ev
}

// Envelope is the canonical wrapper for events leaving the process.
// All messages published to NATS or RabbitMQ follow this format.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a session event; the event id becomes the correlation id.
func NewEnvelope(topic string, ev SessionEvent) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:            uuid.New(),
		CorrelationID: ev.ID,
		Topic:         topic,
		EventType:     string(ev.Type),
		Version:       "v1",
		Timestamp:     ev.Timestamp,
		Payload:       payload,
	}, nil
}
