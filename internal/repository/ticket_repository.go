package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// Default and maximum page sizes for ticket queries.
const (
	DefaultTicketLimit = 20
	MaxTicketLimit     = 100
)

// sortColumns maps logical sort keys to physical columns. Nothing outside this
// map ever reaches an ORDER BY clause.
var sortColumns = map[string]string{
	"id":           "t.id",
	"title":        "t.title",
	"priority":     "CASE t.priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END",
	"deadline":     "t.deadline_date",
	"status":       "t.flag_status",
	"solve_status": "t.solve_status",
	"created":      "t.creation_date",
	"updated":      "t.updated_at",
}

// SortColumn resolves a logical sort key.
func SortColumn(key string) (string, bool) {
	col, ok := sortColumns[key]
	return col, ok
}

// SortKeys lists accepted logical sort keys.
func SortKeys() []string {
	keys := make([]string, 0, len(sortColumns))
	for k := range sortColumns {
		keys = append(keys, k)
	}
	return keys
}

// TicketFilter captures query parameters for ticket listing.
type TicketFilter struct {
	FlagStatus  *domain.FlagStatus
	SolveStatus *domain.SolveStatus
	Priority    *domain.TicketPriority
	Topic       *string
	AssigneeID  *string
	AuthorID    *string
	// VisibleTo restricts results to tickets the user authored or is assigned to.
	VisibleTo *string
	SortBy    string
	SortDesc  bool
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence. Multi-row writes must run
// inside TxManager.RunInTransaction.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	ReplaceTopics(ctx context.Context, ticketID string, topics []string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	Query(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id::text, t.title, t.request, t.category, t.priority, t.flag_status, t.solve_status,
               t.request_author_id, t.assigned_developer_id, t.resolved_by_id, t.resolved_at,
               t.deadline_date, t.creation_date, t.closed_by, t.closed_date, t.rejection_reason, t.updated_at,
               COALESCE(array_agg(tp.name ORDER BY tp.name) FILTER (WHERE tp.name IS NOT NULL), '{}') AS topics
        FROM tickets t
        LEFT JOIN ticket_topics tt ON tt.ticket_id = t.id
        LEFT JOIN topics tp ON tp.id = tt.topic_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	q := executor(ctx, r.pool)
	const query = `
        INSERT INTO tickets (id, title, request, category, priority, flag_status, solve_status,
            request_author_id, assigned_developer_id, deadline_date, creation_date, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
        RETURNING updated_at`
	if err := q.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Request,
		ticket.Category,
		ticket.Priority,
		ticket.FlagStatus,
		ticket.SolveStatus,
		ticket.RequestAuthorID,
		ticket.AssignedDeveloperID,
		ticket.DeadlineDate,
		ticket.CreationDate,
	).Scan(&ticket.UpdatedAt); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return linkTopics(ctx, q, ticket.ID, ticket.Topics)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, request=$2, category=$3, priority=$4, flag_status=$5, solve_status=$6,
            assigned_developer_id=$7, resolved_by_id=$8, resolved_at=$9, closed_by=$10, closed_date=$11,
            rejection_reason=$12, updated_at=NOW()
        WHERE id=$13
        RETURNING updated_at`
	err := executor(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		ticket.Request,
		ticket.Category,
		ticket.Priority,
		ticket.FlagStatus,
		ticket.SolveStatus,
		ticket.AssignedDeveloperID,
		ticket.ResolvedByID,
		ticket.ResolvedAt,
		ticket.ClosedBy,
		ticket.ClosedDate,
		ticket.RejectionReason,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (r *ticketRepository) ReplaceTopics(ctx context.Context, ticketID string, topics []string) error {
	q := executor(ctx, r.pool)
	if _, err := q.Exec(ctx, `DELETE FROM ticket_topics WHERE ticket_id=$1`, ticketID); err != nil {
		return fmt.Errorf("clear topics: %w", err)
	}
	return linkTopics(ctx, q, ticketID, topics)
}

func linkTopics(ctx context.Context, q DBTX, ticketID string, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO topics (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`,
		topics,
	); err != nil {
		return fmt.Errorf("upsert topics: %w", err)
	}
	if _, err := q.Exec(ctx, `
        INSERT INTO ticket_topics (ticket_id, topic_id)
        SELECT $1, id FROM topics WHERE name = ANY($2::text[])
        ON CONFLICT DO NOTHING`,
		ticketID, topics,
	); err != nil {
		return fmt.Errorf("link topics: %w", err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, executor(ctx, r.pool), id)
}

// GetForUpdate locks the ticket row until the surrounding transaction ends.
func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	q := executor(ctx, r.pool)
	var locked string
	if err := q.QueryRow(ctx, `SELECT id::text FROM tickets WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return nil, err
	}
	return r.fetchSingle(ctx, q, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, q DBTX, id string) (*domain.Ticket, error) {
	rows, err := q.Query(ctx, ticketSelect+` WHERE t.id=$1 GROUP BY t.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) Query(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args, err := buildTicketQuery(filter)
	if err != nil {
		return nil, err
	}
	rows, err := executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func buildTicketQuery(filter TicketFilter) (string, []any, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.FlagStatus != nil {
		args = append(args, *filter.FlagStatus)
		clauses = append(clauses, fmt.Sprintf("t.flag_status=$%d", len(args)))
	}
	if filter.SolveStatus != nil {
		args = append(args, *filter.SolveStatus)
		clauses = append(clauses, fmt.Sprintf("t.solve_status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_developer_id=$%d", len(args)))
	}
	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		clauses = append(clauses, fmt.Sprintf("t.request_author_id=$%d", len(args)))
	}
	if filter.VisibleTo != nil {
		args = append(args, *filter.VisibleTo)
		clauses = append(clauses, fmt.Sprintf("(t.request_author_id=$%d OR t.assigned_developer_id=$%d)", len(args), len(args)))
	}
	if filter.Topic != nil && strings.TrimSpace(*filter.Topic) != "" {
		args = append(args, strings.TrimSpace(*filter.Topic))
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM ticket_topics ftt JOIN topics ftp ON ftp.id = ftt.topic_id
            WHERE ftt.ticket_id = t.id AND ftp.name = $%d)`, len(args)))
	}

	orderBy := "t.creation_date"
	if filter.SortBy != "" {
		col, ok := SortColumn(filter.SortBy)
		if !ok {
			return "", nil, fmt.Errorf("unsupported sort key %q", filter.SortBy)
		}
		orderBy = col
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultTicketLimit
	}
	if limit > MaxTicketLimit {
		limit = MaxTicketLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s GROUP BY t.id ORDER BY %s %s, t.id ASC LIMIT %d OFFSET %d`,
		ticketSelect, strings.Join(clauses, " AND "), orderBy, direction, limit, offset)
	return query, args, nil
}

// Delete removes the ticket and every dependent row. Call it inside a transaction.
func (r *ticketRepository) Delete(ctx context.Context, id string) (bool, error) {
	q := executor(ctx, r.pool)
	for _, stmt := range []string{
		`DELETE FROM ticket_topics WHERE ticket_id=$1`,
		`DELETE FROM ticket_comments WHERE ticket_id=$1`,
		`DELETE FROM ticket_ratings WHERE ticket_id=$1`,
		`DELETE FROM ticket_history WHERE ticket_id=$1`,
	} {
		if _, err := q.Exec(ctx, stmt, id); err != nil {
			return false, fmt.Errorf("delete dependents: %w", err)
		}
	}
	cmd, err := q.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete ticket: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Request,
			&ticket.Category,
			&ticket.Priority,
			&ticket.FlagStatus,
			&ticket.SolveStatus,
			&ticket.RequestAuthorID,
			&ticket.AssignedDeveloperID,
			&ticket.ResolvedByID,
			&ticket.ResolvedAt,
			&ticket.DeadlineDate,
			&ticket.CreationDate,
			&ticket.ClosedBy,
			&ticket.ClosedDate,
			&ticket.RejectionReason,
			&ticket.UpdatedAt,
			&ticket.Topics,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
