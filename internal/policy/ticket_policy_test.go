package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

func strPtr(s string) *string { return &s }

func fixture(flag domain.FlagStatus) *domain.Ticket {
	return &domain.Ticket{
		RequestAuthorID:     "author",
		AssignedDeveloperID: strPtr("dev"),
		FlagStatus:          flag,
	}
}

var (
	author    = &domain.Principal{ID: "author", Role: domain.RoleUser}
	assignee  = &domain.Principal{ID: "dev", Role: domain.RoleDeveloper}
	otherDev  = &domain.Principal{ID: "dev-2", Role: domain.RoleDeveloper}
	stranger  = &domain.Principal{ID: "someone", Role: domain.RoleUser}
	moderator = &domain.Principal{ID: "mod", Role: domain.RoleModerator}
	admin     = &domain.Principal{ID: "root", Role: domain.RoleAdmin}
)

func TestTicketPolicies(t *testing.T) {
	open := fixture(domain.FlagStatusOpen)
	closed := fixture(domain.FlagStatusClosed)

	tests := []struct {
		name  string
		check func(*domain.Principal) bool
		allow []*domain.Principal
		deny  []*domain.Principal
	}{
		{
			name:  "edit content of open ticket",
			check: func(p *domain.Principal) bool { return CanEditContent(p, open) },
			allow: []*domain.Principal{author, moderator, admin},
			deny:  []*domain.Principal{nil, assignee, stranger},
		},
		{
			name:  "edit content of closed ticket",
			check: func(p *domain.Principal) bool { return CanEditContent(p, closed) },
			allow: []*domain.Principal{moderator, admin},
			deny:  []*domain.Principal{author, assignee},
		},
		{
			name:  "close",
			check: func(p *domain.Principal) bool { return CanClose(p, closed) },
			allow: []*domain.Principal{author, moderator},
			deny:  []*domain.Principal{nil, assignee, stranger},
		},
		{
			name:  "delete",
			check: func(p *domain.Principal) bool { return CanDelete(p, open) },
			allow: []*domain.Principal{author, moderator, admin},
			deny:  []*domain.Principal{nil, assignee, stranger},
		},
		{
			name:  "request resolution",
			check: func(p *domain.Principal) bool { return CanRequestResolution(p, open) },
			allow: []*domain.Principal{assignee},
			deny:  []*domain.Principal{nil, author, otherDev, moderator},
		},
		{
			name:  "approve",
			check: CanApproveResolution,
			allow: []*domain.Principal{moderator, admin},
			deny:  []*domain.Principal{nil, author, assignee},
		},
		{
			name:  "reject",
			check: CanRejectResolution,
			allow: []*domain.Principal{moderator, admin},
			deny:  []*domain.Principal{nil, assignee},
		},
		{
			name:  "rate",
			check: func(p *domain.Principal) bool { return CanRate(p, closed) },
			allow: []*domain.Principal{author},
			deny:  []*domain.Principal{nil, assignee, moderator},
		},
		{
			name:  "comment",
			check: func(p *domain.Principal) bool { return CanComment(p, open) },
			allow: []*domain.Principal{author, assignee, moderator, admin},
			deny:  []*domain.Principal{nil, stranger, otherDev},
		},
		{
			name:  "see sensitive",
			check: func(p *domain.Principal) bool { return SeesSensitive(p, open) },
			allow: []*domain.Principal{author, assignee, moderator},
			deny:  []*domain.Principal{nil, stranger},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range tt.allow {
				assert.True(t, tt.check(p), "%+v", p)
			}
			for _, p := range tt.deny {
				assert.False(t, tt.check(p), "%+v", p)
			}
		})
	}
}

func TestListScope(t *testing.T) {
	assert.Nil(t, ListScope(nil))
	assert.Nil(t, ListScope(moderator))
	assert.Equal(t, "author", *ListScope(author))
	assert.Equal(t, "dev", *ListScope(assignee))
}

func TestCanCreate(t *testing.T) {
	assert.False(t, CanCreate(nil))
	assert.False(t, CanCreate(&domain.Principal{Role: domain.RoleUser}))
	assert.True(t, CanCreate(stranger))
}
