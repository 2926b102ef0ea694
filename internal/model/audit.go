package model

import "time"

const (
	AuditActionRegister        = "auth.register"
	AuditActionLogin           = "auth.login"
	AuditActionLoginFailed     = "auth.login_failed"
	AuditActionRefresh         = "auth.refresh"
	AuditActionLogout          = "auth.logout"
	AuditActionPasswordChanged = "auth.password_changed"
	AuditActionUserUpdated     = "user.updated"
	AuditActionUserDeleted     = "user.deleted"
	AuditActionUserActivated   = "user.activated"
	AuditActionUserDeactivated = "user.deactivated"
	AuditActionProductCreated  = "product.created"
	AuditActionProductUpdated  = "product.updated"
	AuditActionProductDeleted  = "product.deleted"
)

type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditQuery filters the audit log. From and To are optional RFC 3339 bounds.
type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	From    string
	To      string
	Page    int
	PerPage int
}
