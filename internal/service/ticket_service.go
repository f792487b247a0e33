package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/events"
	"github.com/spec-kit/helpdesk-tickets/internal/identity"
	"github.com/spec-kit/helpdesk-tickets/internal/policy"
	"github.com/spec-kit/helpdesk-tickets/internal/repository"
	"github.com/spec-kit/helpdesk-tickets/internal/scoring"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// TicketService is the ticket lifecycle controller. It owns no storage; every
// multi-row write runs in one transaction and identity lookups never run
// inside one.
type TicketService struct {
	tx           repository.TxManager
	tickets      repository.TicketRepository
	comments     repository.CommentRepository
	ratings      repository.RatingRepository
	history      repository.TicketHistoryRepository
	scoring      *scoring.Engine
	identity     identity.Directory
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
	eventTimeout time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TxManager    repository.TxManager
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	RatingRepo   repository.RatingRepository
	HistoryRepo  repository.TicketHistoryRepository
	Scoring      *scoring.Engine
	Identity     identity.Directory
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        func() time.Time
	// EventTimeout bounds subscribers; zero means defaultEventTimeout.
	EventTimeout time.Duration
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title    string
	Request  string
	Category string
	Priority domain.TicketPriority
	Topics   []string
}

// TicketUpdate is a partial update; nil fields are left untouched. An empty
// AssignedDeveloperID unassigns the ticket.
type TicketUpdate struct {
	Title               *string
	Request             *string
	Category            *string
	Priority            *domain.TicketPriority
	Topics              *[]string
	AssignedDeveloperID *string
	FlagStatus          *domain.FlagStatus
	SolveStatus         *domain.SolveStatus
}

func (u TicketUpdate) touchesContent() bool {
	return u.Title != nil || u.Request != nil || u.Category != nil || u.Priority != nil || u.Topics != nil
}

// ListFilter describes list parameters.
type ListFilter struct {
	FlagStatus  *domain.FlagStatus
	SolveStatus *domain.SolveStatus
	Priority    *domain.TicketPriority
	Topic       *string
	AssigneeID  *string
	SortBy      string
	SortDesc    bool
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	eventTimeout := deps.EventTimeout
	if eventTimeout <= 0 {
		eventTimeout = defaultEventTimeout
	}
	return &TicketService{
		tx:           deps.TxManager,
		tickets:      deps.TicketRepo,
		comments:     deps.CommentRepo,
		ratings:      deps.RatingRepo,
		history:      deps.HistoryRepo,
		scoring:      deps.Scoring,
		identity:     deps.Identity,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		now:          clock,
		eventTimeout: eventTimeout,
	}
}

// CreateTicket opens a ticket owned by the principal.
func (s *TicketService) CreateTicket(ctx context.Context, principal *domain.Principal, input CreateTicketInput) (*TicketView, error) {
	if !policy.CanCreate(principal) {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	title := strings.TrimSpace(input.Title)
	request := strings.TrimSpace(input.Request)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if request == "" {
		details["request"] = "required"
	}
	if !input.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	exists, err := s.identity.UserExists(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NewForbidden("requesting user is not known to the user directory")
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		ID:              uuid.NewString(),
		Title:           title,
		Request:         request,
		Category:        strings.TrimSpace(input.Category),
		Priority:        input.Priority,
		FlagStatus:      domain.FlagStatusOpen,
		SolveStatus:     domain.SolveStatusNotSolved,
		RequestAuthorID: principal.ID,
		DeadlineDate:    domain.DeadlineFor(input.Priority, now),
		CreationDate:    now,
		Topics:          normalizeTopics(input.Topics),
	}

	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.tickets.Create(txCtx, ticket); err != nil {
			return err
		}
		return s.record(txCtx, principal, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
			"title":    ticket.Title,
			"priority": ticket.Priority,
			"topics":   ticket.Topics,
		})
	})
	if err != nil {
		return nil, s.fail("create ticket", ticket.ID, err)
	}

	view := s.enrichOne(ctx, principal, ticket)
	s.publishEvent(ctx, principal, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		Title:        ticket.Title,
		Priority:     ticket.Priority,
		DeadlineDate: ticket.DeadlineDate,
		Topics:       ticket.Topics,
	})
	return view, nil
}

// GetTicket returns the enriched ticket. Guests and outsiders get no emails.
func (s *TicketService) GetTicket(ctx context.Context, principal *domain.Principal, ticketID string) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.enrichOne(ctx, principal, ticket), nil
}

// ListTickets returns tickets visible to the principal.
func (s *TicketService) ListTickets(ctx context.Context, principal *domain.Principal, filter ListFilter) ([]TicketView, error) {
	if filter.SortBy != "" {
		if _, ok := repository.SortColumn(filter.SortBy); !ok {
			return nil, apperrors.NewValidationError("unsupported sort key", map[string]any{
				"sort":    filter.SortBy,
				"allowed": repository.SortKeys(),
			})
		}
	}
	if filter.Limit < 0 || filter.Limit > repository.MaxTicketLimit {
		return nil, apperrors.NewValidationError("limit must be between 1 and 100", map[string]any{"limit": filter.Limit})
	}
	if filter.Offset < 0 {
		return nil, apperrors.NewValidationError("offset must not be negative", map[string]any{"offset": filter.Offset})
	}

	tickets, err := s.tickets.Query(ctx, repository.TicketFilter{
		FlagStatus:  filter.FlagStatus,
		SolveStatus: filter.SolveStatus,
		Priority:    filter.Priority,
		Topic:       filter.Topic,
		AssigneeID:  filter.AssigneeID,
		VisibleTo:   policy.ListScope(principal),
		SortBy:      filter.SortBy,
		SortDesc:    filter.SortDesc,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, s.fail("list tickets", "", err)
	}
	return s.enrichMany(ctx, principal, tickets), nil
}

// UpdateTicket applies a role-gated partial update.
func (s *TicketService) UpdateTicket(ctx context.Context, principal *domain.Principal, ticketID string, update TicketUpdate) (*TicketView, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := validateUpdate(update); err != nil {
		return nil, err
	}

	current, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorizeUpdate(principal, current, update); err != nil {
		return nil, err
	}

	// existence checks happen before the write transaction starts
	if update.AssignedDeveloperID != nil && *update.AssignedDeveloperID != "" {
		exists, err := s.identity.UserExists(ctx, *update.AssignedDeveloperID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperrors.NewValidationError("assigned developer does not exist", map[string]any{
				"assigned_developer_id": *update.AssignedDeveloperID,
			})
		}
	}

	var (
		ticket  *domain.Ticket
		changed []string
	)
	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if err := authorizeUpdate(principal, locked, update); err != nil {
			return err
		}
		entries, err := s.applyUpdate(principal, locked, update)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			ticket = locked
			return nil
		}
		if err := s.tickets.Update(txCtx, locked); err != nil {
			return err
		}
		if update.Topics != nil {
			if err := s.tickets.ReplaceTopics(txCtx, locked.ID, locked.Topics); err != nil {
				return err
			}
		}
		for _, entry := range entries {
			changed = append(changed, entry.field)
			if err := s.record(txCtx, principal, locked.ID, entry.changeType, entry.oldValue, entry.newValue); err != nil {
				return err
			}
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, s.fail("update ticket", ticketID, err)
	}

	view := s.enrichOne(ctx, principal, ticket)
	if len(changed) > 0 {
		s.publishEvent(ctx, principal, events.EventTicketUpdated, ticket.ID, events.TicketUpdatedPayload{
			Fields:      changed,
			FlagStatus:  ticket.FlagStatus,
			SolveStatus: ticket.SolveStatus,
		})
	}
	return view, nil
}

// DeleteTicket removes the ticket with its comments, topic links, rating and history.
func (s *TicketService) DeleteTicket(ctx context.Context, principal *domain.Principal, ticketID string) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !policy.CanDelete(principal, ticket) {
		return apperrors.NewForbidden("only the author or a moderator may delete a ticket")
	}

	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		deleted, err := s.tickets.Delete(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !deleted {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return s.fail("delete ticket", ticketID, err)
	}

	s.publishEvent(ctx, principal, events.EventTicketDeleted, ticketID, nil)
	return nil
}

func validateUpdate(update TicketUpdate) error {
	details := map[string]any{}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		details["title"] = "must not be empty"
	}
	if update.Request != nil && strings.TrimSpace(*update.Request) == "" {
		details["request"] = "must not be empty"
	}
	if update.Priority != nil && !update.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high"
	}
	if update.FlagStatus != nil && !update.FlagStatus.Valid() {
		details["flag_status"] = "must be open or closed"
	}
	if update.SolveStatus != nil && !update.SolveStatus.Valid() {
		details["solve_status"] = "must be not_solved, pending_approval or solved"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket update", details)
	}
	return nil
}

func authorizeUpdate(principal *domain.Principal, ticket *domain.Ticket, update TicketUpdate) error {
	if !policy.CanUpdate(principal, ticket) {
		return apperrors.NewForbidden("not allowed to update this ticket")
	}
	if policy.CanModerate(principal) {
		return nil
	}
	if update.AssignedDeveloperID != nil || update.SolveStatus != nil {
		return apperrors.NewForbidden("only moderators may change assignment or solve status")
	}
	if update.FlagStatus != nil && *update.FlagStatus != domain.FlagStatusClosed {
		return apperrors.NewForbidden("only moderators may reopen a ticket")
	}
	if update.touchesContent() && !policy.CanEditContent(principal, ticket) {
		return apperrors.NewForbidden("closed tickets can no longer be edited")
	}
	return nil
}

type historyEntry struct {
	field      string
	changeType domain.TicketChangeType
	oldValue   map[string]any
	newValue   map[string]any
}

// applyUpdate mutates ticket in place. Solve status is applied before flag
// status so that closing can force not_solved on the final state.
func (s *TicketService) applyUpdate(principal *domain.Principal, ticket *domain.Ticket, update TicketUpdate) ([]historyEntry, error) {
	var entries []historyEntry
	now := s.now().UTC()

	fields := map[string]any{}
	previous := map[string]any{}
	if update.Title != nil {
		if v := strings.TrimSpace(*update.Title); v != ticket.Title {
			previous["title"], fields["title"] = ticket.Title, v
			ticket.Title = v
		}
	}
	if update.Request != nil {
		if v := strings.TrimSpace(*update.Request); v != ticket.Request {
			previous["request"], fields["request"] = ticket.Request, v
			ticket.Request = v
		}
	}
	if update.Category != nil {
		if v := strings.TrimSpace(*update.Category); v != ticket.Category {
			previous["category"], fields["category"] = ticket.Category, v
			ticket.Category = v
		}
	}
	if len(fields) > 0 {
		entries = append(entries, historyEntry{field: "content", changeType: domain.ChangeTypeFields, oldValue: previous, newValue: fields})
	}

	if update.Priority != nil && *update.Priority != ticket.Priority {
		entries = append(entries, historyEntry{
			field:      "priority",
			changeType: domain.ChangeTypePriority,
			oldValue:   map[string]any{"priority": ticket.Priority},
			newValue:   map[string]any{"priority": *update.Priority},
		})
		ticket.Priority = *update.Priority
	}

	if update.Topics != nil {
		topics := normalizeTopics(*update.Topics)
		if !sameTopics(ticket.Topics, topics) {
			entries = append(entries, historyEntry{
				field:      "topics",
				changeType: domain.ChangeTypeTopics,
				oldValue:   map[string]any{"topics": ticket.Topics},
				newValue:   map[string]any{"topics": topics},
			})
			ticket.Topics = topics
		}
	}

	if update.AssignedDeveloperID != nil {
		var next *string
		if *update.AssignedDeveloperID != "" {
			id := *update.AssignedDeveloperID
			next = &id
		}
		if derefString(next) != derefString(ticket.AssignedDeveloperID) {
			entries = append(entries, historyEntry{
				field:      "assigned_developer_id",
				changeType: domain.ChangeTypeAssignee,
				oldValue:   map[string]any{"assigned_developer_id": ticket.AssignedDeveloperID},
				newValue:   map[string]any{"assigned_developer_id": next},
			})
			ticket.AssignedDeveloperID = next
		}
	}

	if update.SolveStatus != nil && *update.SolveStatus != ticket.SolveStatus {
		if *update.SolveStatus != domain.SolveStatusNotSolved {
			return nil, apperrors.NewConflict("solve status can only advance through the resolution workflow", map[string]any{
				"current":   ticket.SolveStatus,
				"requested": *update.SolveStatus,
			})
		}
		entries = append(entries, solveStatusEntry(ticket.SolveStatus, domain.SolveStatusNotSolved))
		ticket.SolveStatus = domain.SolveStatusNotSolved
		ticket.ResolvedByID = nil
		ticket.ResolvedAt = nil
	}

	if update.FlagStatus != nil && *update.FlagStatus != ticket.FlagStatus {
		entries = append(entries, historyEntry{
			field:      "flag_status",
			changeType: domain.ChangeTypeFlagStatus,
			oldValue:   map[string]any{"flag_status": ticket.FlagStatus},
			newValue:   map[string]any{"flag_status": *update.FlagStatus},
		})
		ticket.FlagStatus = *update.FlagStatus
		if ticket.FlagStatus == domain.FlagStatusClosed {
			closedBy := principal.ID
			ticket.ClosedBy = &closedBy
			ticket.ClosedDate = &now
			// closing without an approved resolution is never solved
			if ticket.SolveStatus != domain.SolveStatusSolved {
				if ticket.SolveStatus != domain.SolveStatusNotSolved {
					entries = append(entries, solveStatusEntry(ticket.SolveStatus, domain.SolveStatusNotSolved))
				}
				ticket.SolveStatus = domain.SolveStatusNotSolved
				ticket.ResolvedByID = nil
				ticket.ResolvedAt = nil
			}
		} else {
			ticket.ClosedBy = nil
			ticket.ClosedDate = nil
		}
	}

	return entries, nil
}

func solveStatusEntry(from, to domain.SolveStatus) historyEntry {
	return historyEntry{
		field:      "solve_status",
		changeType: domain.ChangeTypeSolveStatus,
		oldValue:   map[string]any{"solve_status": from},
		newValue:   map[string]any{"solve_status": to},
	}
}

// loadTicket maps a malformed id to NotFound as well.
func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.fail("get ticket", ticketID, err)
	}
	return ticket, nil
}

func ticketNotFound(ticketID string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}

// fail passes domain errors through and logs store failures before hiding them.
func (s *TicketService) fail(op, ticketID string, err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ticketNotFound(ticketID)
	}
	s.logger.Error("store failure",
		zap.String("op", op),
		zap.String("ticket_id", ticketID),
		zap.Error(err))
	return apperrors.NewStoreFailure(op, err)
}

func (s *TicketService) record(ctx context.Context, principal *domain.Principal, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		ActorID:    principal.ID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	return s.history.Create(ctx, entry)
}

// defaultEventTimeout bounds how long subscribers may hold a request.
const defaultEventTimeout = 2 * time.Second

// publishEvent is best effort and runs after commit. Subscribers get a context
// detached from the request and bounded by the event timeout.
func (s *TicketService) publishEvent(ctx context.Context, principal *domain.Principal, eventType events.EventType, ticketID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
	defer cancel()
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorOf(principal),
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func normalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	return out
}

func sameTopics(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "..."
}
