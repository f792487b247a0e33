package domain

import "time"

// DeveloperScore is the cumulative ledger entry of a developer.
type DeveloperScore struct {
	DeveloperID     string
	TotalPoints     int
	TicketsResolved int
	AverageRating   *float64
	UpdatedAt       time.Time
}
