package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// ScoreRepository owns the developer score ledger.
type ScoreRepository interface {
	// AddPoints creates the record on first use and adds to its counters.
	AddPoints(ctx context.Context, developerID string, points, resolved int) (*domain.DeveloperScore, error)
	// AverageRating averages ratings of solved tickets credited to the developer.
	AverageRating(ctx context.Context, developerID string) (*float64, error)
	SetAverageRating(ctx context.Context, developerID string, avg *float64) error
	Get(ctx context.Context, developerID string) (*domain.DeveloperScore, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.DeveloperScore, error)
}

type scoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository builds repository.
func NewScoreRepository(pool *pgxpool.Pool) ScoreRepository {
	return &scoreRepository{pool: pool}
}

const scoreColumns = `developer_id, total_points, tickets_resolved, average_rating::float8, updated_at`

func (r *scoreRepository) AddPoints(ctx context.Context, developerID string, points, resolved int) (*domain.DeveloperScore, error) {
	query := `
        INSERT INTO developer_scores (developer_id, total_points, tickets_resolved)
        VALUES ($1, $2, $3)
        ON CONFLICT (developer_id) DO UPDATE
        SET total_points = developer_scores.total_points + EXCLUDED.total_points,
            tickets_resolved = developer_scores.tickets_resolved + EXCLUDED.tickets_resolved,
            updated_at = NOW()
        RETURNING ` + scoreColumns
	score, err := scanScore(executor(ctx, r.pool).QueryRow(ctx, query, developerID, points, resolved))
	if err != nil {
		return nil, fmt.Errorf("add points: %w", err)
	}
	return score, nil
}

func (r *scoreRepository) AverageRating(ctx context.Context, developerID string) (*float64, error) {
	const query = `
        SELECT AVG(rating)::float8
        FROM ticket_ratings
        WHERE developer_id = $1`
	var avg *float64
	if err := executor(ctx, r.pool).QueryRow(ctx, query, developerID).Scan(&avg); err != nil {
		return nil, err
	}
	return avg, nil
}

func (r *scoreRepository) SetAverageRating(ctx context.Context, developerID string, avg *float64) error {
	const query = `
        UPDATE developer_scores SET average_rating=$1, updated_at=NOW()
        WHERE developer_id=$2`
	cmd, err := executor(ctx, r.pool).Exec(ctx, query, avg, developerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *scoreRepository) Get(ctx context.Context, developerID string) (*domain.DeveloperScore, error) {
	return scanScore(executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+scoreColumns+` FROM developer_scores WHERE developer_id=$1`, developerID))
}

func (r *scoreRepository) Leaderboard(ctx context.Context, limit int) ([]domain.DeveloperScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM developer_scores
        ORDER BY total_points DESC, tickets_resolved DESC, developer_id ASC
        LIMIT $1`
	rows, err := executor(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeveloperScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *score)
	}
	return result, rows.Err()
}

func scanScore(row pgx.Row) (*domain.DeveloperScore, error) {
	var score domain.DeveloperScore
	if err := row.Scan(
		&score.DeveloperID,
		&score.TotalPoints,
		&score.TicketsResolved,
		&score.AverageRating,
		&score.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &score, nil
}
