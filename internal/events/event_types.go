package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "auth_login_succeeded"
	EventLoginFailed    EventType = "auth_login_failed"
	EventUserRegistered EventType = "auth_user_registered"
	EventTokenRejected  EventType = "auth_token_rejected"
	EventAccessDenied   EventType = "auth_access_denied"
)

// Event represents an authentication event emitted by services and middleware.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subjectID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	TokenID   string    `json:"token_id"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginFailedPayload payload. Email is the normalised login attempt.
type LoginFailedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// AuthFailurePayload payload for rejected tokens and denied access.
type AuthFailurePayload struct {
	Reason string `json:"reason"`
	Path   string `json:"path"`
	IP     string `json:"ip,omitempty"`
}
