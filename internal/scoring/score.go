package scoring

import (
	"math"
	"time"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// Base points per priority.
const (
	BasePointsHigh   = 100
	BasePointsMedium = 50
	BasePointsLow    = 25
)

// BasePoints returns the undiscounted award for a priority.
func BasePoints(priority domain.TicketPriority) int {
	switch priority {
	case domain.TicketPriorityHigh:
		return BasePointsHigh
	case domain.TicketPriorityMedium:
		return BasePointsMedium
	default:
		return BasePointsLow
	}
}

// TimeMultiplier grades how fast the ticket was resolved relative to its window.
func TimeMultiplier(openedAt, deadline, closedAt time.Time) float64 {
	window := deadline.Sub(openedAt)
	if window <= 0 {
		return 0.5
	}
	elapsed := closedAt.Sub(openedAt)
	switch {
	case elapsed <= window/2:
		return 1.5
	case elapsed <= window:
		return 1.0
	case elapsed <= window+window/2:
		return 0.75
	default:
		return 0.5
	}
}

// CalculateScore is deterministic in its inputs.
func CalculateScore(priority domain.TicketPriority, openedAt, deadline, closedAt time.Time) int {
	return int(math.Round(float64(BasePoints(priority)) * TimeMultiplier(openedAt, deadline, closedAt)))
}

// RatingFeedbackPoints is the nudge awarded when an author rates a solved ticket.
func RatingFeedbackPoints(rating int) int {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return 0
	}
	return 2 * rating
}
