package scoring

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

type mockScoreRepo struct {
	mock.Mock
}

func (m *mockScoreRepo) AddPoints(ctx context.Context, developerID string, points, resolved int) (*domain.DeveloperScore, error) {
	args := m.Called(ctx, developerID, points, resolved)
	score, _ := args.Get(0).(*domain.DeveloperScore)
	return score, args.Error(1)
}

func (m *mockScoreRepo) AverageRating(ctx context.Context, developerID string) (*float64, error) {
	args := m.Called(ctx, developerID)
	avg, _ := args.Get(0).(*float64)
	return avg, args.Error(1)
}

func (m *mockScoreRepo) SetAverageRating(ctx context.Context, developerID string, avg *float64) error {
	return m.Called(ctx, developerID, avg).Error(0)
}

func (m *mockScoreRepo) Get(ctx context.Context, developerID string) (*domain.DeveloperScore, error) {
	args := m.Called(ctx, developerID)
	score, _ := args.Get(0).(*domain.DeveloperScore)
	return score, args.Error(1)
}

func (m *mockScoreRepo) Leaderboard(ctx context.Context, limit int) ([]domain.DeveloperScore, error) {
	args := m.Called(ctx, limit)
	scores, _ := args.Get(0).([]domain.DeveloperScore)
	return scores, args.Error(1)
}

func TestAwardPointsCountsResolution(t *testing.T) {
	repo := new(mockScoreRepo)
	ctx := context.Background()
	repo.On("AddPoints", ctx, "dev-1", 150, 1).
		Return(&domain.DeveloperScore{DeveloperID: "dev-1", TotalPoints: 150, TicketsResolved: 1}, nil)

	score, err := NewEngine(repo, nil).AwardPoints(ctx, "dev-1", 150)
	require.NoError(t, err)
	assert.Equal(t, 150, score.TotalPoints)
	repo.AssertExpectations(t)
}

func TestAwardPointsRejectsNegative(t *testing.T) {
	_, err := NewEngine(new(mockScoreRepo), nil).AwardPoints(context.Background(), "dev-1", -5)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestApplyRatingFeedbackCreatesLedgerOnDemand(t *testing.T) {
	repo := new(mockScoreRepo)
	ctx := context.Background()
	avg := 4.0

	repo.On("AddPoints", ctx, "dev-2", 8, 0).Return(&domain.DeveloperScore{DeveloperID: "dev-2", TotalPoints: 8}, nil).Once()
	repo.On("AverageRating", ctx, "dev-2").Return(&avg, nil)
	repo.On("SetAverageRating", ctx, "dev-2", &avg).Return(nil)

	points, err := NewEngine(repo, nil).ApplyRatingFeedback(ctx, "dev-2", 4)
	require.NoError(t, err)
	assert.Equal(t, 8, points)
	repo.AssertExpectations(t)
}

func TestRecomputeAverageRatingWithoutLedgerRow(t *testing.T) {
	repo := new(mockScoreRepo)
	ctx := context.Background()
	avg := 3.5

	repo.On("AverageRating", ctx, "dev-3").Return(&avg, nil)
	repo.On("SetAverageRating", ctx, "dev-3", &avg).Return(pgx.ErrNoRows).Once()
	repo.On("AddPoints", ctx, "dev-3", 0, 0).Return(&domain.DeveloperScore{DeveloperID: "dev-3"}, nil)
	repo.On("SetAverageRating", ctx, "dev-3", &avg).Return(nil).Once()

	require.NoError(t, NewEngine(repo, nil).RecomputeAverageRating(ctx, "dev-3"))
	repo.AssertExpectations(t)
}

func TestLeaderboardLimitBounds(t *testing.T) {
	repo := new(mockScoreRepo)
	ctx := context.Background()
	engine := NewEngine(repo, nil)

	for _, limit := range []int{0, -1, 101} {
		_, err := engine.Leaderboard(ctx, limit)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "limit %d", limit)
	}

	repo.On("Leaderboard", ctx, 100).Return(nil, nil)
	scores, err := engine.Leaderboard(ctx, 100)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

func TestDeveloperScoreNotFound(t *testing.T) {
	repo := new(mockScoreRepo)
	ctx := context.Background()
	repo.On("Get", ctx, "ghost").Return(nil, pgx.ErrNoRows)

	_, err := NewEngine(repo, nil).DeveloperScore(ctx, "ghost")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
