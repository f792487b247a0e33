package service

import (
	"context"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// LeaderboardEntry pairs a score with the developer's public identity.
type LeaderboardEntry struct {
	Rank      int
	Score     domain.DeveloperScore
	Developer domain.Identity
}

// Leaderboard ranks developers; emails are never exposed here.
func (s *TicketService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	scores, err := s.scoring.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(scores))
	for _, score := range scores {
		ids[score.DeveloperID] = struct{}{}
	}
	developers := s.resolveIdentities(ctx, ids)

	entries := make([]LeaderboardEntry, 0, len(scores))
	for i, score := range scores {
		dev := developers[score.DeveloperID]
		dev.Email = ""
		entries = append(entries, LeaderboardEntry{Rank: i + 1, Score: score, Developer: dev})
	}
	return entries, nil
}

// DeveloperScore returns one developer's ledger entry.
func (s *TicketService) DeveloperScore(ctx context.Context, developerID string) (*domain.DeveloperScore, error) {
	return s.scoring.DeveloperScore(ctx, developerID)
}
