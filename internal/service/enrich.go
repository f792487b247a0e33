package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/policy"
)

// maxLookups bounds concurrent directory calls per response.
const maxLookups = 8

// TicketView is a ticket with participant identities attached.
type TicketView struct {
	domain.Ticket
	Author     domain.Identity
	Developer  *domain.Identity
	ResolvedBy *domain.Identity
}

func (s *TicketService) enrichOne(ctx context.Context, principal *domain.Principal, ticket *domain.Ticket) *TicketView {
	views := s.enrichMany(ctx, principal, []domain.Ticket{*ticket})
	return &views[0]
}

// enrichMany resolves every distinct participant once. Lookups never fail;
// degraded identities come back instead.
func (s *TicketService) enrichMany(ctx context.Context, principal *domain.Principal, tickets []domain.Ticket) []TicketView {
	ids := map[string]struct{}{}
	for i := range tickets {
		ids[tickets[i].RequestAuthorID] = struct{}{}
		if tickets[i].AssignedDeveloperID != nil {
			ids[*tickets[i].AssignedDeveloperID] = struct{}{}
		}
		if tickets[i].ResolvedByID != nil {
			ids[*tickets[i].ResolvedByID] = struct{}{}
		}
	}

	resolved := s.resolveIdentities(ctx, ids)

	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		ticket := tickets[i]
		view := TicketView{Ticket: ticket, Author: resolved[ticket.RequestAuthorID]}
		if ticket.AssignedDeveloperID != nil {
			dev := resolved[*ticket.AssignedDeveloperID]
			view.Developer = &dev
		}
		if ticket.ResolvedByID != nil {
			by := resolved[*ticket.ResolvedByID]
			view.ResolvedBy = &by
		}
		if !policy.SeesSensitive(principal, &ticket) {
			stripSensitive(&view)
		}
		views = append(views, view)
	}
	return views
}

// resolveIdentities looks up ids with at most maxLookups calls in flight.
func (s *TicketService) resolveIdentities(ctx context.Context, ids map[string]struct{}) map[string]domain.Identity {
	var mu sync.Mutex
	resolved := make(map[string]domain.Identity, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookups)
	for id := range ids {
		id := id
		g.Go(func() error {
			identity := s.identity.GetUser(gctx, id)
			mu.Lock()
			resolved[id] = identity
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return resolved
}

func stripSensitive(view *TicketView) {
	view.Author.Email = ""
	if view.Developer != nil {
		view.Developer.Email = ""
	}
	if view.ResolvedBy != nil {
		view.ResolvedBy.Email = ""
	}
}
