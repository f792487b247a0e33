package domain

import "time"

// Comment is an append-only message in a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}
