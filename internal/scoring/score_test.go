package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

func TestCalculateScore(t *testing.T) {
	opened := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name     string
		priority domain.TicketPriority
		closed   time.Duration
		want     int
	}{
		{"high within first half", domain.TicketPriorityHigh, day, 150},
		{"high exactly at deadline", domain.TicketPriorityHigh, 2 * day, 100},
		{"high just late", domain.TicketPriorityHigh, 2*day + time.Minute, 75},
		{"high very late", domain.TicketPriorityHigh, 10 * day, 50},
		{"medium early", domain.TicketPriorityMedium, time.Hour, 75},
		{"medium at deadline", domain.TicketPriorityMedium, 7 * day, 50},
		{"low at one and a half windows", domain.TicketPriorityLow, 21 * day, 19},
		{"low beyond", domain.TicketPriorityLow, 30 * day, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deadline := domain.DeadlineFor(tt.priority, opened)
			got := CalculateScore(tt.priority, opened, deadline, opened.Add(tt.closed))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateScoreIsDeterministic(t *testing.T) {
	opened := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := opened.Add(48 * time.Hour)
	closed := opened.Add(30 * time.Hour)

	first := CalculateScore(domain.TicketPriorityHigh, opened, deadline, closed)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CalculateScore(domain.TicketPriorityHigh, opened, deadline, closed))
	}
}

func TestTimeMultiplierDegenerateWindow(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.5, TimeMultiplier(now, now, now))
	assert.Equal(t, 0.5, TimeMultiplier(now, now.Add(-time.Hour), now))
}

func TestRatingFeedbackPoints(t *testing.T) {
	assert.Equal(t, 2, RatingFeedbackPoints(1))
	assert.Equal(t, 10, RatingFeedbackPoints(5))
	assert.Zero(t, RatingFeedbackPoints(0))
	assert.Zero(t, RatingFeedbackPoints(6))
}
