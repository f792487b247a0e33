package events

import (
	"time"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketUpdated       EventType = "ticket.updated"
	EventTicketDeleted       EventType = "ticket.deleted"
	EventResolutionRequested EventType = "ticket.resolution_requested"
	EventResolutionApproved  EventType = "ticket.resolution_approved"
	EventResolutionRejected  EventType = "ticket.resolution_rejected"
	EventTicketRated         EventType = "ticket.rated"
	EventTicketCommentAdded  EventType = "ticket.comment_added"
)

// AllEventTypes lists every lifecycle event.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketUpdated,
		EventTicketDeleted,
		EventResolutionRequested,
		EventResolutionApproved,
		EventResolutionRejected,
		EventTicketRated,
		EventTicketCommentAdded,
	}
}

// Actor identifies who triggered the event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorOf converts a principal.
func ActorOf(p *domain.Principal) Actor {
	if p == nil {
		return Actor{}
	}
	return Actor{UserID: p.ID, Role: p.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title        string                `json:"title"`
	Priority     domain.TicketPriority `json:"priority"`
	DeadlineDate time.Time             `json:"deadline_date"`
	Topics       []string              `json:"topics,omitempty"`
}

// TicketUpdatedPayload lists changed field names.
type TicketUpdatedPayload struct {
	Fields      []string           `json:"fields"`
	FlagStatus  domain.FlagStatus  `json:"flag_status"`
	SolveStatus domain.SolveStatus `json:"solve_status"`
}

// ResolutionPayload is shared by request, approve and reject.
type ResolutionPayload struct {
	DeveloperID   string  `json:"developer_id,omitempty"`
	PointsAwarded int     `json:"points_awarded,omitempty"`
	Reason        *string `json:"reason,omitempty"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	Rating      int    `json:"rating"`
	DeveloperID string `json:"developer_id,omitempty"`
	Points      int    `json:"points,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}
