package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-tickets/internal/api/dto"
	"github.com/spec-kit/helpdesk-tickets/internal/auth"
	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/service"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// TicketService is the lifecycle surface the HTTP layer depends on.
type TicketService interface {
	CreateTicket(ctx context.Context, principal *domain.Principal, input service.CreateTicketInput) (*service.TicketView, error)
	GetTicket(ctx context.Context, principal *domain.Principal, ticketID string) (*service.TicketView, error)
	ListTickets(ctx context.Context, principal *domain.Principal, filter service.ListFilter) ([]service.TicketView, error)
	UpdateTicket(ctx context.Context, principal *domain.Principal, ticketID string, update service.TicketUpdate) (*service.TicketView, error)
	DeleteTicket(ctx context.Context, principal *domain.Principal, ticketID string) error
	RequestResolution(ctx context.Context, principal *domain.Principal, ticketID string) (*service.TicketView, error)
	ApproveResolution(ctx context.Context, principal *domain.Principal, ticketID string) (*service.ApprovalResult, error)
	RejectResolution(ctx context.Context, principal *domain.Principal, ticketID, reason string) (*service.TicketView, error)
	RateTicket(ctx context.Context, principal *domain.Principal, ticketID string, rating int, comment *string) (*domain.Rating, error)
	GetRating(ctx context.Context, ticketID string) (*domain.Rating, error)
	AddComment(ctx context.Context, principal *domain.Principal, ticketID, text string) (*domain.Comment, error)
	ListComments(ctx context.Context, principal *domain.Principal, ticketID string) ([]domain.Comment, error)
	History(ctx context.Context, principal *domain.Principal, ticketID string) ([]domain.TicketHistory, error)
}

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service   TicketService
	validator *dto.Validator
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketService, validator *dto.Validator) *TicketsHandler {
	return &TicketsHandler{service: ticketService, validator: validator}
}

func principalOf(c *fiber.Ctx) *domain.Principal {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal
}

func (h *TicketsHandler) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.validator.Validate(out)
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.CreateTicket(c.UserContext(), principalOf(c), service.CreateTicketInput{
		Title:    req.Title,
		Request:  req.Request,
		Category: req.Category,
		Priority: domain.TicketPriority(req.Priority),
		Topics:   req.Topics,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(view)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseListQuery(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListTickets(c.UserContext(), principalOf(c), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		items = append(items, dto.NewTicketResponse(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	view, err := h.service.GetTicket(c.UserContext(), principalOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.UpdateTicket(c.UserContext(), principalOf(c), c.Params("id"), req.ToUpdate())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.service.DeleteTicket(c.UserContext(), principalOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RequestResolution POST /api/tickets/:id/resolution.
func (h *TicketsHandler) RequestResolution(c *fiber.Ctx) error {
	view, err := h.service.RequestResolution(c.UserContext(), principalOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view)})
}

// ApproveResolution POST /api/tickets/:id/resolution/approve.
func (h *TicketsHandler) ApproveResolution(c *fiber.Ctx) error {
	result, err := h.service.ApproveResolution(c.UserContext(), principalOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ApprovalResponse{
		Ticket:        dto.NewTicketResponse(result.Ticket),
		PointsAwarded: result.PointsAwarded,
		DeveloperID:   result.DeveloperID,
	}})
}

// RejectResolution POST /api/tickets/:id/resolution/reject.
func (h *TicketsHandler) RejectResolution(c *fiber.Ctx) error {
	var req dto.RejectResolutionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.RejectResolution(c.UserContext(), principalOf(c), c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view)})
}

// RateTicket POST /api/tickets/:id/rating.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	var req dto.RateTicketRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	rating, err := h.service.RateTicket(c.UserContext(), principalOf(c), c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRatingResponse(rating)})
}

// GetRating GET /api/tickets/:id/rating.
func (h *TicketsHandler) GetRating(c *fiber.Ctx) error {
	rating, err := h.service.GetRating(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRatingResponse(rating)})
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.CreateCommentRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), principalOf(c), c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// ListComments GET /api/tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	comments, err := h.service.ListComments(c.UserContext(), principalOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), principalOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseListQuery(c *fiber.Ctx) (service.ListFilter, error) {
	var filter service.ListFilter
	details := map[string]any{}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := domain.FlagStatus(strings.ToLower(raw))
		if !status.Valid() {
			details["status"] = "must be open or closed"
		}
		filter.FlagStatus = &status
	}
	if raw := strings.TrimSpace(c.Query("solve_status")); raw != "" {
		solve := domain.SolveStatus(strings.ToLower(raw))
		if !solve.Valid() {
			details["solve_status"] = "must be not_solved, pending_approval or solved"
		}
		filter.SolveStatus = &solve
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority := domain.TicketPriority(strings.ToLower(raw))
		if !priority.Valid() {
			details["priority"] = "must be one of low, medium, high"
		}
		filter.Priority = &priority
	}
	if raw := strings.TrimSpace(c.Query("topic")); raw != "" {
		filter.Topic = &raw
	}
	if raw := strings.TrimSpace(c.Query("assignee")); raw != "" {
		filter.AssigneeID = &raw
	}

	filter.SortBy = strings.TrimSpace(c.Query("sort"))
	switch strings.ToLower(c.Query("order", "asc")) {
	case "asc":
	case "desc":
		filter.SortDesc = true
	default:
		details["order"] = "must be asc or desc"
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			details["limit"] = "must be a positive integer"
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			details["offset"] = "must be a non-negative integer"
		}
		filter.Offset = offset
	}

	if len(details) > 0 {
		return filter, apperrors.NewValidationError("invalid query", details)
	}
	return filter, nil
}
