// Package policy holds one capability check per ticket operation. Checks only
// answer who may act; state preconditions live in the lifecycle service.
package policy

import "github.com/spec-kit/helpdesk-tickets/internal/domain"

// CanCreate requires any authenticated principal.
func CanCreate(p *domain.Principal) bool {
	return p != nil && p.ID != ""
}

// SeesSensitive reports whether emails of participants may be shown.
func SeesSensitive(p *domain.Principal, t *domain.Ticket) bool {
	if p == nil {
		return false
	}
	return p.IsPrivileged() || t.IsAuthor(p.ID) || t.IsAssignee(p.ID)
}

// ListScope returns the user id lists are restricted to, or nil for no restriction.
// Guests see every ticket with sensitive fields stripped.
func ListScope(p *domain.Principal) *string {
	if p == nil || p.IsPrivileged() {
		return nil
	}
	id := p.ID
	return &id
}

// CanModerate covers assignment and direct status edits.
func CanModerate(p *domain.Principal) bool {
	return p.IsPrivileged()
}

// CanEditContent covers title, request, category, priority and topics.
func CanEditContent(p *domain.Principal, t *domain.Ticket) bool {
	if p == nil {
		return false
	}
	if p.IsPrivileged() {
		return true
	}
	return t.IsAuthor(p.ID) && t.FlagStatus == domain.FlagStatusOpen
}

// CanClose lets the owner close unilaterally at any time.
func CanClose(p *domain.Principal, t *domain.Ticket) bool {
	if p == nil {
		return false
	}
	return p.IsPrivileged() || t.IsAuthor(p.ID)
}

// CanUpdate reports whether p may touch the ticket at all.
func CanUpdate(p *domain.Principal, t *domain.Ticket) bool {
	return CanClose(p, t)
}

func CanDelete(p *domain.Principal, t *domain.Ticket) bool {
	if p == nil {
		return false
	}
	return p.IsPrivileged() || t.IsAuthor(p.ID)
}

// CanRequestResolution is reserved to the assigned developer.
func CanRequestResolution(p *domain.Principal, t *domain.Ticket) bool {
	return p != nil && p.Role == domain.RoleDeveloper && t.IsAssignee(p.ID)
}

func CanApproveResolution(p *domain.Principal) bool {
	return p.IsPrivileged()
}

func CanRejectResolution(p *domain.Principal) bool {
	return p.IsPrivileged()
}

// CanRate is reserved to the author.
func CanRate(p *domain.Principal, t *domain.Ticket) bool {
	return p != nil && t.IsAuthor(p.ID)
}

// CanComment also gates reading the thread and the history.
func CanComment(p *domain.Principal, t *domain.Ticket) bool {
	if p == nil {
		return false
	}
	return p.IsPrivileged() || t.IsAuthor(p.ID) || t.IsAssignee(p.ID)
}
