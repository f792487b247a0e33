package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// RatingRepository stores the single rating of a ticket.
type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error)
}

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository builds repository.
func NewRatingRepository(pool *pgxpool.Pool) RatingRepository {
	return &ratingRepository{pool: pool}
}

// Create returns ErrRatingExists when the ticket was already rated.
func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ticket_ratings (ticket_id, author_id, developer_id, rating, comment)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	err := executor(ctx, r.pool).QueryRow(ctx, query,
		rating.TicketID,
		rating.AuthorID,
		rating.DeveloperID,
		rating.Rating,
		rating.Comment,
	).Scan(&rating.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRatingExists
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	const query = `
        SELECT ticket_id::text, author_id, developer_id, rating, comment, created_at
        FROM ticket_ratings WHERE ticket_id=$1`
	var rating domain.Rating
	if err := executor(ctx, r.pool).QueryRow(ctx, query, ticketID).Scan(
		&rating.TicketID,
		&rating.AuthorID,
		&rating.DeveloperID,
		&rating.Rating,
		&rating.Comment,
		&rating.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rating, nil
}
