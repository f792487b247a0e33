package domain

import "time"

// TicketPriority enumerates how urgently a ticket must be resolved.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is one of the allowed priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// ResolutionWindow is the time allotted to resolve a ticket of priority p.
func (p TicketPriority) ResolutionWindow() time.Duration {
	switch p {
	case TicketPriorityHigh:
		return 2 * 24 * time.Hour
	case TicketPriorityMedium:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

// FlagStatus tells whether a ticket is actively worked.
type FlagStatus string

const (
	FlagStatusOpen   FlagStatus = "open"
	FlagStatusClosed FlagStatus = "closed"
)

func (s FlagStatus) Valid() bool {
	return s == FlagStatusOpen || s == FlagStatusClosed
}

// SolveStatus is the resolution workflow state, independent of FlagStatus.
type SolveStatus string

const (
	SolveStatusNotSolved       SolveStatus = "not_solved"
	SolveStatusPendingApproval SolveStatus = "pending_approval"
	SolveStatusSolved          SolveStatus = "solved"
)

func (s SolveStatus) Valid() bool {
	switch s {
	case SolveStatusNotSolved, SolveStatusPendingApproval, SolveStatusSolved:
		return true
	}
	return false
}

// Ticket is the aggregate for help-desk requests.
type Ticket struct {
	ID                  string
	Title               string
	Request             string
	Category            string
	Priority            TicketPriority
	FlagStatus          FlagStatus
	SolveStatus         SolveStatus
	RequestAuthorID     string
	AssignedDeveloperID *string
	ResolvedByID        *string
	ResolvedAt          *time.Time
	DeadlineDate        time.Time
	CreationDate        time.Time
	ClosedBy            *string
	ClosedDate          *time.Time
	RejectionReason     *string
	Topics              []string
	UpdatedAt           time.Time
}

// DeadlineFor derives the deadline of a ticket created at createdAt.
func DeadlineFor(priority TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(priority.ResolutionWindow())
}

// IsAuthor reports whether userID owns the ticket.
func (t *Ticket) IsAuthor(userID string) bool {
	return userID != "" && t.RequestAuthorID == userID
}

// IsAssignee reports whether userID is the assigned developer.
func (t *Ticket) IsAssignee(userID string) bool {
	return userID != "" && t.AssignedDeveloperID != nil && *t.AssignedDeveloperID == userID
}

// CreditedDeveloper returns who receives score for the current resolution cycle.
func (t *Ticket) CreditedDeveloper() (string, bool) {
	if t.ResolvedByID != nil && *t.ResolvedByID != "" {
		return *t.ResolvedByID, true
	}
	if t.AssignedDeveloperID != nil && *t.AssignedDeveloperID != "" {
		return *t.AssignedDeveloperID, true
	}
	return "", false
}

// Rating is the author's single score of a solved ticket. DeveloperID is the
// developer credited when the rating was given and never changes afterwards.
type Rating struct {
	TicketID    string
	AuthorID    string
	DeveloperID *string
	Rating      int
	Comment     *string
	CreatedAt   time.Time
}

const (
	MinRating = 1
	MaxRating = 5
)
