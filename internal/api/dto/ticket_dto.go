package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Request  string   `json:"request" validate:"required,max=10000"`
	Category string   `json:"category" validate:"max=100"`
	Priority string   `json:"priority" validate:"required,oneof=low medium high"`
	Topics   []string `json:"topics" validate:"max=20,dive,max=50"`
}

// UpdateTicketRequest is a partial update. An empty assigned_developer_id unassigns.
type UpdateTicketRequest struct {
	Title               *string   `json:"title" validate:"omitempty,max=200"`
	Request             *string   `json:"request" validate:"omitempty,max=10000"`
	Category            *string   `json:"category" validate:"omitempty,max=100"`
	Priority            *string   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Topics              *[]string `json:"topics" validate:"omitempty,max=20,dive,max=50"`
	AssignedDeveloperID *string   `json:"assigned_developer_id" validate:"omitempty,max=64"`
	FlagStatus          *string   `json:"flag_status" validate:"omitempty,oneof=open closed"`
	SolveStatus         *string   `json:"solve_status" validate:"omitempty,oneof=not_solved pending_approval solved"`
}

// ToUpdate converts the request to service input.
func (r UpdateTicketRequest) ToUpdate() service.TicketUpdate {
	update := service.TicketUpdate{
		Title:               r.Title,
		Request:             r.Request,
		Category:            r.Category,
		Topics:              r.Topics,
		AssignedDeveloperID: r.AssignedDeveloperID,
	}
	if r.Priority != nil {
		p := domain.TicketPriority(*r.Priority)
		update.Priority = &p
	}
	if r.FlagStatus != nil {
		f := domain.FlagStatus(*r.FlagStatus)
		update.FlagStatus = &f
	}
	if r.SolveStatus != nil {
		s := domain.SolveStatus(*r.SolveStatus)
		update.SolveStatus = &s
	}
	return update
}

// RejectResolutionRequest payload.
type RejectResolutionRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// RateTicketRequest payload.
type RateTicketRequest struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// IdentityResponse is a participant snapshot; email is omitted when withheld.
type IdentityResponse struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Surname string                `json:"surname"`
	Email   string                `json:"email,omitempty"`
	Status  domain.IdentityStatus `json:"status"`
}

// TicketResponse is the enriched ticket.
type TicketResponse struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Request             string                `json:"request"`
	Category            string                `json:"category"`
	Priority            domain.TicketPriority `json:"priority"`
	FlagStatus          domain.FlagStatus     `json:"flag_status"`
	SolveStatus         domain.SolveStatus    `json:"solve_status"`
	RequestAuthorID     string                `json:"request_author_id"`
	AssignedDeveloperID *string               `json:"assigned_developer_id"`
	ResolvedByID        *string               `json:"resolved_by_id"`
	ResolvedAt          *time.Time            `json:"resolved_at"`
	DeadlineDate        time.Time             `json:"deadline_date"`
	CreationDate        time.Time             `json:"creation_date"`
	ClosedBy            *string               `json:"closed_by"`
	ClosedDate          *time.Time            `json:"closed_date"`
	RejectionReason     *string               `json:"rejection_reason"`
	Topics              []string              `json:"topics"`
	UpdatedAt           time.Time             `json:"updated_at"`
	Author              IdentityResponse      `json:"author"`
	Developer           *IdentityResponse     `json:"developer,omitempty"`
	ResolvedBy          *IdentityResponse     `json:"resolved_by,omitempty"`
}

// ApprovalResponse is returned by the approve endpoint.
type ApprovalResponse struct {
	Ticket        TicketResponse `json:"ticket"`
	PointsAwarded int            `json:"points_awarded"`
	DeveloperID   string         `json:"developer_id"`
}

// RatingResponse response.
type RatingResponse struct {
	TicketID    string    `json:"ticket_id"`
	AuthorID    string    `json:"author_id"`
	DeveloperID *string   `json:"developer_id"`
	Rating      int       `json:"rating"`
	Comment     *string   `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommentResponse response.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse response.
type HistoryResponse struct {
	ID         string                  `json:"id"`
	ActorID    string                  `json:"actor_id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value,omitempty"`
	NewValue   map[string]any          `json:"new_value,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// ScoreResponse response.
type ScoreResponse struct {
	DeveloperID     string    `json:"developer_id"`
	TotalPoints     int       `json:"total_points"`
	TicketsResolved int       `json:"tickets_resolved"`
	AverageRating   *float64  `json:"average_rating"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LeaderboardEntryResponse response.
type LeaderboardEntryResponse struct {
	Rank      int              `json:"rank"`
	Developer IdentityResponse `json:"developer"`
	ScoreResponse
}

func identityResponse(identity domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:      identity.ID,
		Name:    identity.Name,
		Surname: identity.Surname,
		Email:   identity.Email,
		Status:  identity.Status,
	}
}

func optionalIdentity(identity *domain.Identity) *IdentityResponse {
	if identity == nil {
		return nil
	}
	resp := identityResponse(*identity)
	return &resp
}

// NewTicketResponse maps an enriched ticket.
func NewTicketResponse(view *service.TicketView) TicketResponse {
	topics := view.Topics
	if topics == nil {
		topics = []string{}
	}
	return TicketResponse{
		ID:                  view.ID,
		Title:               view.Title,
		Request:             view.Request,
		Category:            view.Category,
		Priority:            view.Priority,
		FlagStatus:          view.FlagStatus,
		SolveStatus:         view.SolveStatus,
		RequestAuthorID:     view.RequestAuthorID,
		AssignedDeveloperID: view.AssignedDeveloperID,
		ResolvedByID:        view.ResolvedByID,
		ResolvedAt:          view.ResolvedAt,
		DeadlineDate:        view.DeadlineDate,
		CreationDate:        view.CreationDate,
		ClosedBy:            view.ClosedBy,
		ClosedDate:          view.ClosedDate,
		RejectionReason:     view.RejectionReason,
		Topics:              topics,
		UpdatedAt:           view.UpdatedAt,
		Author:              identityResponse(view.Author),
		Developer:           optionalIdentity(view.Developer),
		ResolvedBy:          optionalIdentity(view.ResolvedBy),
	}
}

func NewRatingResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{
		TicketID:    r.TicketID,
		AuthorID:    r.AuthorID,
		DeveloperID: r.DeveloperID,
		Rating:      r.Rating,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}

func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{ID: c.ID, TicketID: c.TicketID, AuthorID: c.AuthorID, Text: c.Text, CreatedAt: c.CreatedAt}
}

func NewHistoryResponse(h *domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:         h.ID,
		ActorID:    h.ActorID,
		ChangeType: h.ChangeType,
		OldValue:   h.OldValue,
		NewValue:   h.NewValue,
		CreatedAt:  h.CreatedAt,
	}
}

func NewScoreResponse(s *domain.DeveloperScore) ScoreResponse {
	return ScoreResponse{
		DeveloperID:     s.DeveloperID,
		TotalPoints:     s.TotalPoints,
		TicketsResolved: s.TicketsResolved,
		AverageRating:   s.AverageRating,
		UpdatedAt:       s.UpdatedAt,
	}
}

func NewLeaderboardEntryResponse(e *service.LeaderboardEntry) LeaderboardEntryResponse {
	return LeaderboardEntryResponse{
		Rank:          e.Rank,
		Developer:     identityResponse(e.Developer),
		ScoreResponse: NewScoreResponse(&e.Score),
	}
}
