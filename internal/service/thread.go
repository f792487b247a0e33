package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/events"
	"github.com/spec-kit/helpdesk-tickets/internal/policy"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// MaxCommentLength bounds comment bodies in runes.
const MaxCommentLength = 5000

// AddComment appends to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, principal *domain.Principal, ticketID, text string) (*domain.Comment, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("comment text required", map[string]any{"text": "required"})
	}
	if len([]rune(text)) > MaxCommentLength {
		return nil, apperrors.NewValidationError("comment too long", map[string]any{"max": MaxCommentLength})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanComment(principal, ticket) {
		return nil, apperrors.NewForbidden("only participants may comment")
	}

	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TicketID: ticket.ID,
		AuthorID: principal.ID,
		Text:     text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, s.fail("add comment", ticketID, err)
	}

	s.publishEvent(ctx, principal, events.EventTicketCommentAdded, ticket.ID, events.TicketCommentAddedPayload{
		CommentID:   comment.ID,
		AuthorID:    comment.AuthorID,
		BodyPreview: stringPreview(comment.Text, 120),
	})
	return comment, nil
}

// ListComments returns the thread oldest first.
func (s *TicketService) ListComments(ctx context.Context, principal *domain.Principal, ticketID string) ([]domain.Comment, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanComment(principal, ticket) {
		return nil, apperrors.NewForbidden("only participants may read the thread")
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.fail("list comments", ticketID, err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, nil
}

// GetRating is public.
func (s *TicketService) GetRating(ctx context.Context, ticketID string) (*domain.Rating, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	rating, err := s.ratings.GetByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("rating", map[string]any{"ticket_id": ticketID})
		}
		return nil, s.fail("get rating", ticketID, err)
	}
	return rating, nil
}

// History returns the audit trail oldest first.
func (s *TicketService) History(ctx context.Context, principal *domain.Principal, ticketID string) ([]domain.TicketHistory, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanComment(principal, ticket) {
		return nil, apperrors.NewForbidden("only participants may read the history")
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.fail("list history", ticketID, err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}
