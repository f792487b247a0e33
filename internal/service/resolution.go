package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/events"
	"github.com/spec-kit/helpdesk-tickets/internal/policy"
	"github.com/spec-kit/helpdesk-tickets/internal/repository"
	"github.com/spec-kit/helpdesk-tickets/internal/scoring"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// ApprovalResult is returned by ApproveResolution.
type ApprovalResult struct {
	Ticket        *TicketView
	PointsAwarded int
	DeveloperID   string
}

// RequestResolution lets the assigned developer claim the ticket is solved.
func (s *TicketService) RequestResolution(ctx context.Context, principal *domain.Principal, ticketID string) (*TicketView, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !policy.CanRequestResolution(principal, locked) {
			return apperrors.NewForbidden("only the assigned developer may request resolution")
		}
		if locked.FlagStatus != domain.FlagStatusOpen {
			return conflict("ticket is closed", locked)
		}
		if locked.SolveStatus != domain.SolveStatusNotSolved {
			return conflict("resolution already requested or approved", locked)
		}

		now := s.now().UTC()
		resolvedBy := principal.ID
		locked.SolveStatus = domain.SolveStatusPendingApproval
		locked.ResolvedByID = &resolvedBy
		locked.ResolvedAt = &now
		locked.RejectionReason = nil
		if err := s.tickets.Update(txCtx, locked); err != nil {
			return err
		}
		if err := s.record(txCtx, principal, locked.ID, domain.ChangeTypeResolutionRequested,
			map[string]any{"solve_status": domain.SolveStatusNotSolved},
			map[string]any{"solve_status": locked.SolveStatus, "resolved_by_id": resolvedBy},
		); err != nil {
			return err
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, s.fail("request resolution", ticketID, err)
	}

	view := s.enrichOne(ctx, principal, ticket)
	s.publishEvent(ctx, principal, events.EventResolutionRequested, ticket.ID, events.ResolutionPayload{
		DeveloperID: principal.ID,
	})
	return view, nil
}

// ApproveResolution marks a pending ticket solved, closes it and awards points
// to the developer who claimed it, all in one transaction.
func (s *TicketService) ApproveResolution(ctx context.Context, principal *domain.Principal, ticketID string) (*ApprovalResult, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !policy.CanApproveResolution(principal) {
		return nil, apperrors.NewForbidden("only moderators may approve resolutions")
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	var (
		ticket    *domain.Ticket
		points    int
		developer string
	)
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if locked.SolveStatus != domain.SolveStatusPendingApproval || locked.ResolvedByID == nil {
			return conflict("ticket is not pending approval", locked)
		}

		now := s.now().UTC()
		finishedAt := now
		if locked.ResolvedAt != nil {
			finishedAt = *locked.ResolvedAt
		}
		developer = *locked.ResolvedByID
		points = scoring.CalculateScore(locked.Priority, locked.CreationDate, locked.DeadlineDate, finishedAt)

		if _, err := s.scoring.AwardPoints(txCtx, developer, points); err != nil {
			return err
		}

		closedBy := principal.ID
		locked.SolveStatus = domain.SolveStatusSolved
		locked.FlagStatus = domain.FlagStatusClosed
		locked.ClosedBy = &closedBy
		locked.ClosedDate = &now
		if err := s.tickets.Update(txCtx, locked); err != nil {
			return err
		}
		if err := s.scoring.RecomputeAverageRating(txCtx, developer); err != nil {
			return err
		}
		if err := s.record(txCtx, principal, locked.ID, domain.ChangeTypeResolutionApproved,
			map[string]any{"solve_status": domain.SolveStatusPendingApproval},
			map[string]any{"solve_status": locked.SolveStatus, "developer_id": developer, "points": points},
		); err != nil {
			return err
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, s.fail("approve resolution", ticketID, err)
	}

	result := &ApprovalResult{
		Ticket:        s.enrichOne(ctx, principal, ticket),
		PointsAwarded: points,
		DeveloperID:   developer,
	}
	s.publishEvent(ctx, principal, events.EventResolutionApproved, ticket.ID, events.ResolutionPayload{
		DeveloperID:   developer,
		PointsAwarded: points,
	})
	return result, nil
}

// RejectResolution sends a pending ticket back to not_solved; it stays open.
func (s *TicketService) RejectResolution(ctx context.Context, principal *domain.Principal, ticketID, reason string) (*TicketView, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !policy.CanRejectResolution(principal) {
		return nil, apperrors.NewForbidden("only moderators may reject resolutions")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason required", map[string]any{"reason": "required"})
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	var (
		ticket    *domain.Ticket
		developer string
	)
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if locked.SolveStatus != domain.SolveStatusPendingApproval {
			return conflict("ticket is not pending approval", locked)
		}
		developer = derefString(locked.ResolvedByID)
		locked.SolveStatus = domain.SolveStatusNotSolved
		locked.ResolvedByID = nil
		locked.ResolvedAt = nil
		locked.RejectionReason = &reason
		if err := s.tickets.Update(txCtx, locked); err != nil {
			return err
		}
		if err := s.record(txCtx, principal, locked.ID, domain.ChangeTypeResolutionRejected,
			map[string]any{"solve_status": domain.SolveStatusPendingApproval, "resolved_by_id": developer},
			map[string]any{"solve_status": locked.SolveStatus, "reason": reason},
		); err != nil {
			return err
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, s.fail("reject resolution", ticketID, err)
	}

	view := s.enrichOne(ctx, principal, ticket)
	s.publishEvent(ctx, principal, events.EventResolutionRejected, ticket.ID, events.ResolutionPayload{
		DeveloperID: developer,
		Reason:      &reason,
	})
	return view, nil
}

// RateTicket stores the author's single rating and nudges the credited
// developer's score.
func (s *TicketService) RateTicket(ctx context.Context, principal *domain.Principal, ticketID string, rating int, comment *string) (*domain.Rating, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	var (
		record    *domain.Rating
		developer string
		nudge     int
	)
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !policy.CanRate(principal, locked) {
			return apperrors.NewForbidden("only the ticket author may rate it")
		}
		if locked.FlagStatus != domain.FlagStatusClosed || locked.SolveStatus != domain.SolveStatusSolved {
			return conflict("only closed and solved tickets can be rated", locked)
		}

		record = &domain.Rating{
			TicketID: locked.ID,
			AuthorID: principal.ID,
			Rating:   rating,
			Comment:  comment,
		}
		dev, credited := locked.CreditedDeveloper()
		if credited {
			developer = dev
			record.DeveloperID = &dev
		}
		if err := s.ratings.Create(txCtx, record); err != nil {
			if errors.Is(err, repository.ErrRatingExists) {
				return apperrors.NewConflict("ticket already rated", map[string]any{"ticket_id": locked.ID})
			}
			return err
		}

		if credited {
			if nudge, err = s.scoring.ApplyRatingFeedback(txCtx, dev, rating); err != nil {
				return err
			}
		}
		return s.record(txCtx, principal, locked.ID, domain.ChangeTypeRated, nil, map[string]any{
			"rating":       rating,
			"developer_id": developer,
			"points":       nudge,
		})
	})
	if err != nil {
		return nil, s.fail("rate ticket", ticketID, err)
	}

	s.publishEvent(ctx, principal, events.EventTicketRated, ticketID, events.TicketRatedPayload{
		Rating:      rating,
		DeveloperID: developer,
		Points:      nudge,
	})
	return record, nil
}

func conflict(message string, ticket *domain.Ticket) error {
	return apperrors.NewConflict(message, map[string]any{
		"ticket_id":    ticket.ID,
		"flag_status":  ticket.FlagStatus,
		"solve_status": ticket.SolveStatus,
	})
}
