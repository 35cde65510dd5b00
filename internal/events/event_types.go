package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCredentialRegistered EventType = "credential_registered"
	EventCredentialUpdated    EventType = "credential_updated"
	EventSessionStarted       EventType = "session_started"
	EventSessionRotated       EventType = "session_rotated"
	EventSessionEnded         EventType = "session_ended"
)

// Event represents a domain event emitted by services. Subject is the
// credential id the event concerns.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// CredentialRegisteredPayload carries what the verification email needs.
type CredentialRegisteredPayload struct {
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	VerificationToken string    `json:"-"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// CredentialUpdatedPayload lists the fields an admin changed.
type CredentialUpdatedPayload struct {
	Changed []string `json:"changed"`
	Banned  bool     `json:"banned"`
}

// SessionPayload payload.
type SessionPayload struct {
	Username string `json:"username,omitempty"`
}
