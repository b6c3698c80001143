package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered  EventType = "user_registered"
	EventLoginSucceeded  EventType = "login_succeeded"
	EventLoginFailed     EventType = "login_failed"
	EventLoggedOut       EventType = "logged_out"
	EventPasswordChanged EventType = "password_changed"
	EventProfileUpdated  EventType = "profile_updated"
	EventRolesChanged    EventType = "roles_changed"
	EventStatusChanged   EventType = "status_changed"
	EventUserDeleted     EventType = "user_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, userID, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginFailedPayload payload. Reason is never shown to the client.
type LoginFailedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// RolesChangedPayload payload.
type RolesChangedPayload struct {
	OldRoles []string `json:"old_roles"`
	NewRoles []string `json:"new_roles"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}
