package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-tickets/internal/api/dto"
	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/service"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// ScoreService exposes the developer ledger.
type ScoreService interface {
	Leaderboard(ctx context.Context, limit int) ([]service.LeaderboardEntry, error)
	DeveloperScore(ctx context.Context, developerID string) (*domain.DeveloperScore, error)
}

// ScoresHandler serves the leaderboard.
type ScoresHandler struct {
	service      ScoreService
	defaultLimit int
}

// NewScoresHandler constructs handler.
func NewScoresHandler(scoreService ScoreService, defaultLimit int) *ScoresHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &ScoresHandler{service: scoreService, defaultLimit: defaultLimit}
}

// Leaderboard GET /api/leaderboard.
func (h *ScoresHandler) Leaderboard(c *fiber.Ctx) error {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.NewValidationError("limit must be an integer", map[string]any{"limit": raw})
		}
		limit = parsed
	}
	entries, err := h.service.Leaderboard(c.UserContext(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.LeaderboardEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewLeaderboardEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeveloperScore GET /api/developers/:id/score.
func (h *ScoresHandler) DeveloperScore(c *fiber.Ctx) error {
	score, err := h.service.DeveloperScore(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewScoreResponse(score)})
}
