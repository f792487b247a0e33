package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated             TicketChangeType = "CREATED"
	ChangeTypeFields              TicketChangeType = "FIELDS_CHANGE"
	ChangeTypeFlagStatus          TicketChangeType = "FLAG_STATUS_CHANGE"
	ChangeTypeSolveStatus         TicketChangeType = "SOLVE_STATUS_CHANGE"
	ChangeTypeAssignee            TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePriority            TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeTopics              TicketChangeType = "TOPICS_CHANGE"
	ChangeTypeResolutionRequested TicketChangeType = "RESOLUTION_REQUESTED"
	ChangeTypeResolutionApproved  TicketChangeType = "RESOLUTION_APPROVED"
	ChangeTypeResolutionRejected  TicketChangeType = "RESOLUTION_REJECTED"
	ChangeTypeRated               TicketChangeType = "RATED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActorID    string
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
