package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// Leaderboard bounds.
const (
	MinLeaderboardLimit = 1
	MaxLeaderboardLimit = 100
)

// Engine owns the developer score ledger. Award and recompute calls join the
// transaction carried by ctx, if any.
type Engine struct {
	scores repository.ScoreRepository
	logger *zap.Logger
}

// NewEngine wires the engine.
func NewEngine(scores repository.ScoreRepository, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{scores: scores, logger: logger}
}

// AwardPoints adds an approval award and counts one more resolved ticket.
func (e *Engine) AwardPoints(ctx context.Context, developerID string, points int) (*domain.DeveloperScore, error) {
	if developerID == "" {
		return nil, apperrors.NewValidationError("developer id required", nil)
	}
	if points < 0 {
		return nil, apperrors.NewValidationError("points must not be negative", map[string]any{"points": points})
	}
	score, err := e.scores.AddPoints(ctx, developerID, points, 1)
	if err != nil {
		return nil, err
	}
	e.logger.Info("points awarded",
		zap.String("developer_id", developerID),
		zap.Int("points", points),
		zap.Int("total_points", score.TotalPoints))
	return score, nil
}

// ApplyRatingFeedback nudges the credited developer by the rating and refreshes
// the developer's average rating. It returns the points added.
func (e *Engine) ApplyRatingFeedback(ctx context.Context, developerID string, rating int) (int, error) {
	points := RatingFeedbackPoints(rating)
	if points == 0 {
		return 0, apperrors.NewValidationError("rating out of range", map[string]any{"rating": rating})
	}
	if _, err := e.scores.AddPoints(ctx, developerID, points, 0); err != nil {
		return 0, err
	}
	if err := e.RecomputeAverageRating(ctx, developerID); err != nil {
		return 0, err
	}
	return points, nil
}

// RecomputeAverageRating averages every rating credited to the developer when it was given.
func (e *Engine) RecomputeAverageRating(ctx context.Context, developerID string) error {
	avg, err := e.scores.AverageRating(ctx, developerID)
	if err != nil {
		return fmt.Errorf("average rating: %w", err)
	}
	if err := e.scores.SetAverageRating(ctx, developerID, avg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// no ledger row yet; create it so the average has a home
			if _, err := e.scores.AddPoints(ctx, developerID, 0, 0); err != nil {
				return err
			}
			return e.scores.SetAverageRating(ctx, developerID, avg)
		}
		return err
	}
	return nil
}

// Leaderboard lists developers by total points then resolved count.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]domain.DeveloperScore, error) {
	if limit < MinLeaderboardLimit || limit > MaxLeaderboardLimit {
		return nil, apperrors.NewValidationError("limit must be between 1 and 100", map[string]any{"limit": limit})
	}
	scores, err := e.scores.Leaderboard(ctx, limit)
	if err != nil {
		return nil, apperrors.NewStoreFailure("leaderboard", err)
	}
	if scores == nil {
		scores = []domain.DeveloperScore{}
	}
	return scores, nil
}

// DeveloperScore returns one ledger entry.
func (e *Engine) DeveloperScore(ctx context.Context, developerID string) (*domain.DeveloperScore, error) {
	score, err := e.scores.Get(ctx, developerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("developer score", map[string]any{"developer_id": developerID})
		}
		return nil, apperrors.NewStoreFailure("developer score", err)
	}
	return score, nil
}
