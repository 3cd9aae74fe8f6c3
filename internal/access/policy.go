// Package access holds the authorization policy for templates, forms and
// role changes. Every function here is a pure decision over values the
// caller has already loaded; nothing in this package touches storage.
package access

import (
	"errors"
	"time"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// Reasons attached to a Decision
const (
	ReasonAdmin             = "admin"
	ReasonOwner             = "owner"
	ReasonTemplateOwner     = "template_owner"
	ReasonPublic            = "public"
	ReasonGranted           = "granted"
	ReasonNotPermitted      = "not_permitted"
	ReasonAdminRequired     = "admin_required"
	ReasonSelfDemotion      = "self_demotion"
	ReasonLastAdmin         = "last_admin"
	ReasonAmendWindowClosed = "amend_window_closed"
)

// ErrInvalidRole is returned by ValidateRole for roles outside the fixed set
var ErrInvalidRole = errors.New("role must be one of: admin, user")

// Principal is the authenticated caller
type Principal struct {
	UserID uint
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// TemplateResource describes a template for policy evaluation. Granted is
// true when a TemplateAccess row exists for (template, principal).
type TemplateResource struct {
	OwnerID  uint
	IsPublic bool
	Granted  bool
}

// FormResource describes a submitted form and its parent template
type FormResource struct {
	OwnerID          uint
	TemplateOwnerID  uint
	TemplateIsPublic bool
	Granted          bool
}

// Decision is the outcome of a policy check
type Decision struct {
	Allowed bool
	Reason  string
}

func permit(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanReadTemplate: admin, owner, public, grant holder
func CanReadTemplate(p Principal, t TemplateResource) Decision {
	switch {
	case p.IsAdmin():
		return permit(ReasonAdmin)
	case p.UserID == t.OwnerID:
		return permit(ReasonOwner)
	case t.IsPublic:
		return permit(ReasonPublic)
	case t.Granted:
		return permit(ReasonGranted)
	}
	return deny(ReasonNotPermitted)
}

// CanWriteTemplate covers update, delete and question changes. Visibility and
// grants never confer write rights.
func CanWriteTemplate(p Principal, t TemplateResource) Decision {
	switch {
	case p.IsAdmin():
		return permit(ReasonAdmin)
	case p.UserID == t.OwnerID:
		return permit(ReasonOwner)
	}
	return deny(ReasonNotPermitted)
}

// CanSubmitForm requires read-equivalent access to the template
func CanSubmitForm(p Principal, t TemplateResource) Decision {
	return CanReadTemplate(p, t)
}

// CanManageAccess decides who may grant or revoke template access
func CanManageAccess(p Principal, t TemplateResource) Decision {
	return CanWriteTemplate(p, t)
}

// CanViewSubmissions decides who may list or export every form of a template
func CanViewSubmissions(p Principal, t TemplateResource) Decision {
	return CanWriteTemplate(p, t)
}

// CanReadForm: admin, submitter, template owner, public template, grant holder
func CanReadForm(p Principal, f FormResource) Decision {
	switch {
	case p.IsAdmin():
		return permit(ReasonAdmin)
	case p.UserID == f.OwnerID:
		return permit(ReasonOwner)
	case p.UserID == f.TemplateOwnerID:
		return permit(ReasonTemplateOwner)
	case f.TemplateIsPublic:
		return permit(ReasonPublic)
	case f.Granted:
		return permit(ReasonGranted)
	}
	return deny(ReasonNotPermitted)
}

// CanAmendForm lets admins and the template owner amend at any time, and the
// submitter only while now is within window of submittedAt.
func CanAmendForm(p Principal, f FormResource, submittedAt, now time.Time, window time.Duration) Decision {
	switch {
	case p.IsAdmin():
		return permit(ReasonAdmin)
	case p.UserID == f.TemplateOwnerID:
		return permit(ReasonTemplateOwner)
	case p.UserID == f.OwnerID:
		if now.Sub(submittedAt) <= window {
			return permit(ReasonOwner)
		}
		return deny(ReasonAmendWindowClosed)
	}
	return deny(ReasonNotPermitted)
}

// RequireAdmin permits admins only
func RequireAdmin(p Principal) Decision {
	if p.IsAdmin() {
		return permit(ReasonAdmin)
	}
	return deny(ReasonAdminRequired)
}

// ValidateRole rejects roles outside the fixed set. This is a validation
// failure, not an authorization one.
func ValidateRole(role string) error {
	if !models.ValidRole(role) {
		return ErrInvalidRole
	}
	return nil
}

// CheckRoleChange evaluates a role mutation. adminCount is the number of
// admins before the change, read under lock by the caller.
func CheckRoleChange(actor Principal, targetID uint, targetRole, newRole string, adminCount int64) Decision {
	if !actor.IsAdmin() {
		return deny(ReasonAdminRequired)
	}
	if newRole == models.RoleUser {
		if targetID == actor.UserID {
			return deny(ReasonSelfDemotion)
		}
		if targetRole == models.RoleAdmin && adminCount-1 < 1 {
			return deny(ReasonLastAdmin)
		}
	}
	return permit(ReasonAdmin)
}
