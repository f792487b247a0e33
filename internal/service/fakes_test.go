package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/repository"
)

type txKey struct{}

// memoryStore is a transactional in-memory stand-in for every repository. One
// transaction runs at a time and a failed one restores the prior snapshot.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	tickets  map[string]domain.Ticket
	comments []domain.Comment
	ratings  map[string]domain.Rating
	history  []domain.TicketHistory
	scores   map[string]domain.DeveloperScore

	failUpdate error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tickets: map[string]domain.Ticket{},
		ratings: map[string]domain.Rating{},
		scores:  map[string]domain.DeveloperScore{},
	}
}

type storeSnapshot struct {
	tickets  map[string]domain.Ticket
	comments []domain.Comment
	ratings  map[string]domain.Rating
	history  []domain.TicketHistory
	scores   map[string]domain.DeveloperScore
}

func (m *memoryStore) snapshot() storeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := storeSnapshot{
		tickets:  make(map[string]domain.Ticket, len(m.tickets)),
		comments: append([]domain.Comment(nil), m.comments...),
		ratings:  make(map[string]domain.Rating, len(m.ratings)),
		history:  append([]domain.TicketHistory(nil), m.history...),
		scores:   make(map[string]domain.DeveloperScore, len(m.scores)),
	}
	for k, v := range m.tickets {
		snap.tickets[k] = cloneTicket(v)
	}
	for k, v := range m.ratings {
		snap.ratings[k] = v
	}
	for k, v := range m.scores {
		snap.scores[k] = v
	}
	return snap
}

func (m *memoryStore) restore(snap storeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets = snap.tickets
	m.comments = snap.comments
	m.ratings = snap.ratings
	m.history = snap.history
	m.scores = snap.scores
}

func (m *memoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Topics = append([]string{}, t.Topics...)
	return t
}

// tickets

type ticketRepo struct{ *memoryStore }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.UpdatedAt = ticket.CreationDate
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r ticketRepo) ReplaceTopics(_ context.Context, ticketID string, topics []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tickets[ticketID]
	t.Topics = append([]string{}, topics...)
	r.tickets[ticketID] = t
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := cloneTicket(t)
	return &clone, nil
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	if ctx.Value(txKey{}) == nil {
		panic("GetForUpdate outside transaction")
	}
	return r.GetByID(ctx, id)
}

func (r ticketRepo) Query(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if filter.VisibleTo != nil && !t.IsAuthor(*filter.VisibleTo) && !t.IsAssignee(*filter.VisibleTo) {
			continue
		}
		if filter.FlagStatus != nil && t.FlagStatus != *filter.FlagStatus {
			continue
		}
		if filter.SolveStatus != nil && t.SolveStatus != *filter.SolveStatus {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationDate.Before(out[j].CreationDate) })
	return out, nil
}

func (r ticketRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return false, nil
	}
	delete(r.tickets, id)
	delete(r.ratings, id)
	kept := r.comments[:0]
	for _, c := range r.comments {
		if c.TicketID != id {
			kept = append(kept, c)
		}
	}
	r.comments = kept
	keptHistory := r.history[:0]
	for _, h := range r.history {
		if h.TicketID != id {
			keptHistory = append(keptHistory, h)
		}
	}
	r.history = keptHistory
	return true, nil
}

// comments

type commentRepo struct{ *memoryStore }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ratings

type ratingRepo struct{ *memoryStore }

func (r ratingRepo) Create(_ context.Context, rating *domain.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ratings[rating.TicketID]; exists {
		return repository.ErrRatingExists
	}
	rating.CreatedAt = time.Now()
	r.ratings[rating.TicketID] = *rating
	return nil
}

func (r ratingRepo) GetByTicket(_ context.Context, ticketID string) (*domain.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rating, ok := r.ratings[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &rating, nil
}

// history

type historyRepo struct{ *memoryStore }

func (r historyRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.CreatedAt = time.Now()
	r.history = append(r.history, *entry)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

// scores

type scoreRepo struct{ *memoryStore }

func (r scoreRepo) AddPoints(_ context.Context, developerID string, points, resolved int) (*domain.DeveloperScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	score := r.scores[developerID]
	score.DeveloperID = developerID
	score.TotalPoints += points
	score.TicketsResolved += resolved
	score.UpdatedAt = time.Now()
	r.scores[developerID] = score
	return &score, nil
}

func (r scoreRepo) AverageRating(_ context.Context, developerID string) (*float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum, n int
	for _, rating := range r.ratings {
		if rating.DeveloperID != nil && *rating.DeveloperID == developerID {
			sum += rating.Rating
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := float64(sum) / float64(n)
	return &avg, nil
}

func (r scoreRepo) SetAverageRating(_ context.Context, developerID string, avg *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	score, ok := r.scores[developerID]
	if !ok {
		return pgx.ErrNoRows
	}
	score.AverageRating = avg
	r.scores[developerID] = score
	return nil
}

func (r scoreRepo) Get(_ context.Context, developerID string) (*domain.DeveloperScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	score, ok := r.scores[developerID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &score, nil
}

func (r scoreRepo) Leaderboard(_ context.Context, limit int) ([]domain.DeveloperScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DeveloperScore, 0, len(r.scores))
	for _, s := range r.scores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].TicketsResolved > out[j].TicketsResolved
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// directoryMock is a testify mock of identity.Directory. GetUser answers from
// the people map and degrades once the caller's context is done.
type directoryMock struct {
	mock.Mock
	mu     sync.Mutex
	people map[string]domain.Identity
	calls  int
	delay  time.Duration

	inFlight    int
	maxInFlight int
}

func newDirectory(people ...domain.Identity) *directoryMock {
	d := &directoryMock{people: map[string]domain.Identity{}}
	for _, p := range people {
		d.people[p.ID] = p
	}
	return d
}

func (d *directoryMock) GetUser(ctx context.Context, userID string) domain.Identity {
	d.mu.Lock()
	d.calls++
	d.inFlight++
	if d.inFlight > d.maxInFlight {
		d.maxInFlight = d.inFlight
	}
	delay := d.delay
	d.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	if ctx.Err() != nil {
		return domain.UnavailableIdentity(userID)
	}
	if identity, ok := d.people[userID]; ok {
		return identity
	}
	return domain.UnavailableIdentity(userID)
}

func (d *directoryMock) UserExists(ctx context.Context, userID string) (bool, error) {
	args := d.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func person(id, name string) domain.Identity {
	return domain.Identity{ID: id, Name: name, Surname: "Doe", Email: name + "@example.com", Status: domain.IdentityResolved}
}

// clock is a controllable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
