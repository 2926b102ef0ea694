// Package policy decides whether a caller may perform an action. Decisions
// are pure functions of the caller, the action and the target owner id.
package policy

import (
	"go-auth-service/internal/model"
)

// Caller is either anonymous or an authenticated identity. Build it with
// Anonymous or Authenticated; the zero value is anonymous.
type Caller struct {
	authenticated bool
	id            string
	role          model.Role
	active        bool
}

func Anonymous() Caller {
	return Caller{}
}

func Authenticated(id string, role model.Role, active bool) Caller {
	return Caller{authenticated: true, id: id, role: role, active: active}
}

func (c Caller) IsAuthenticated() bool { return c.authenticated }
func (c Caller) ID() string            { return c.id }
func (c Caller) Role() model.Role      { return c.role }
func (c Caller) Active() bool          { return c.active }
func (c Caller) IsAdmin() bool         { return c.authenticated && c.role == model.RoleAdmin }

type Scope string

const (
	ScopePublic        Scope = "public"
	ScopeAuthenticated Scope = "authenticated"
	ScopeSelfOrAdmin   Scope = "self_or_admin"
	ScopeAdmin         Scope = "admin"
)

type Action struct {
	Name     string
	Scope    Scope
	Mutating bool
}

var (
	ProductList   = Action{Name: "product.list", Scope: ScopePublic}
	ProductRead   = Action{Name: "product.read", Scope: ScopePublic}
	ProductCreate = Action{Name: "product.create", Scope: ScopeAdmin, Mutating: true}
	ProductUpdate = Action{Name: "product.update", Scope: ScopeAdmin, Mutating: true}
	ProductDelete = Action{Name: "product.delete", Scope: ScopeAdmin, Mutating: true}

	ProfileRead    = Action{Name: "profile.read", Scope: ScopeAuthenticated}
	SessionLogout  = Action{Name: "session.logout", Scope: ScopeAuthenticated}
	PasswordChange = Action{Name: "password.change", Scope: ScopeAuthenticated, Mutating: true}

	UserList       = Action{Name: "user.list", Scope: ScopeAdmin}
	UserRead       = Action{Name: "user.read", Scope: ScopeSelfOrAdmin}
	UserUpdate     = Action{Name: "user.update", Scope: ScopeSelfOrAdmin, Mutating: true}
	UserDelete     = Action{Name: "user.delete", Scope: ScopeAdmin, Mutating: true}
	UserActivate   = Action{Name: "user.activate", Scope: ScopeAdmin, Mutating: true}
	UserDeactivate = Action{Name: "user.deactivate", Scope: ScopeAdmin, Mutating: true}

	AuditList   = Action{Name: "audit.list", Scope: ScopeAdmin}
	EventStream = Action{Name: "event.stream", Scope: ScopeAdmin}
)

type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonAccountDisabled        Reason = "account_disabled"
	ReasonAdminRequired          Reason = "admin_required"
	ReasonPermissionDenied       Reason = "permission_denied"
	ReasonSelfActionDenied       Reason = "self_action_denied"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason Reason) Decision { return Decision{Reason: reason} }

// Err returns nil for an allowed decision and the matching model error
// otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonAuthenticationRequired:
		return model.ErrAuthenticationRequired
	case ReasonAccountDisabled:
		return model.ErrAccountDisabled
	case ReasonAdminRequired:
		return model.ErrAdminRequired
	case ReasonSelfActionDenied:
		return model.ErrSelfActionDenied
	}
	return model.ErrPermissionDenied
}

// Authorize evaluates in a fixed order: public actions, anonymous callers,
// disabled callers on mutating actions, administrators, admin-only scope,
// authenticated scope, then ownership.
func Authorize(caller Caller, action Action, targetOwnerID string) Decision {
	if action.Scope == ScopePublic {
		return allow()
	}
	if !caller.authenticated {
		return deny(ReasonAuthenticationRequired)
	}
	if action.Mutating && !caller.active {
		return deny(ReasonAccountDisabled)
	}
	if caller.role == model.RoleAdmin {
		return allow()
	}

	switch action.Scope {
	case ScopeAdmin:
		return deny(ReasonAdminRequired)
	case ScopeAuthenticated:
		return allow()
	case ScopeSelfOrAdmin:
		if targetOwnerID != "" && caller.id == targetOwnerID {
			return allow()
		}
	}
	return deny(ReasonPermissionDenied)
}

// CheckIdentityUpdate layers field rules on top of UserUpdate: only
// administrators may change role or active, and an administrator may not
// deactivate their own account.
func CheckIdentityUpdate(caller Caller, targetID string, fields map[string]any) Decision {
	if d := Authorize(caller, UserUpdate, targetID); !d.Allowed {
		return d
	}

	_, setsRole := fields["role"]
	active, setsActive := fields["active"]
	if !caller.IsAdmin() {
		if setsRole || setsActive {
			return deny(ReasonPermissionDenied)
		}
		return allow()
	}

	if setsActive && caller.id == targetID {
		if on, ok := active.(bool); ok && !on {
			return deny(ReasonSelfActionDenied)
		}
	}
	return allow()
}

// CheckIdentityDeletion refuses self-deletion for every caller, admins
// included.
func CheckIdentityDeletion(caller Caller, targetID string) Decision {
	if d := Authorize(caller, UserDelete, targetID); !d.Allowed {
		return d
	}
	if caller.id == targetID {
		return deny(ReasonSelfActionDenied)
	}
	return allow()
}

// CheckIdentityDeactivation applies the same self-protection to the
// dedicated deactivate action.
func CheckIdentityDeactivation(caller Caller, targetID string) Decision {
	if d := Authorize(caller, UserDeactivate, targetID); !d.Allowed {
		return d
	}
	if caller.id == targetID {
		return deny(ReasonSelfActionDenied)
	}
	return allow()
}
