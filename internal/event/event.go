package event

import (
	"time"

	"github.com/google/uuid"

	"go-auth-service/internal/model"
)

type Type string

const (
	TypeRegistered      Type = model.AuditActionRegister
	TypeLoggedIn        Type = model.AuditActionLogin
	TypeLoginFailed     Type = model.AuditActionLoginFailed
	TypeRefreshed       Type = model.AuditActionRefresh
	TypeLoggedOut       Type = model.AuditActionLogout
	TypePasswordChanged Type = model.AuditActionPasswordChanged
	TypeUserUpdated     Type = model.AuditActionUserUpdated
	TypeUserDeleted     Type = model.AuditActionUserDeleted
	TypeUserActivated   Type = model.AuditActionUserActivated
	TypeUserDeactivated Type = model.AuditActionUserDeactivated
	TypeProductCreated  Type = model.AuditActionProductCreated
	TypeProductUpdated  Type = model.AuditActionProductUpdated
	TypeProductDeleted  Type = model.AuditActionProductDeleted
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ActorID   string    `json:"actor_id,omitempty"` // Who triggered the event
	TargetID  string    `json:"target_id,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a successful event. Use Failed for a failed attempt.
func New(t Type, actorID, targetID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		ActorID:   actorID,
		TargetID:  targetID,
		Status:    StatusSuccess,
		Timestamp: time.Now().UTC(),
	}
}

func (e Event) Failed(detail string) Event {
	e.Status = StatusFailure
	e.Detail = detail
	return e
}

func (e Event) WithDetail(detail string) Event {
	e.Detail = detail
	return e
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
