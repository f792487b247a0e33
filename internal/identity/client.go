package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-tickets/internal/config"
	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	"github.com/spec-kit/helpdesk-tickets/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

const serviceName = "user directory"

// Directory resolves user ids against the external user directory.
type Directory interface {
	// GetUser never fails; degraded snapshots are returned instead.
	GetUser(ctx context.Context, userID string) domain.Identity
	// UserExists surfaces directory failures as UpstreamUnavailable.
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Client calls GET {base}/users/internal/{id} through a circuit breaker.
type Client struct {
	baseURL     string
	http        *http.Client
	breaker     *gobreaker.CircuitBreaker
	cache       Cache
	callTimeout time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithCache enables the read-through cache.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithMetrics counts fallbacks.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a directory client. The breaker trips once at least
// MinRequests calls were made in the current window and the failure ratio
// reaches FailureRatio; it then rejects calls for CoolDown.
func NewClient(cfg config.IdentityConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        &http.Client{},
		cache:       noopCache{},
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "user-directory",
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.CoolDown,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// State exposes the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

type directoryResponse struct {
	User *struct {
		Name    string `json:"name"`
		Surname string `json:"surname"`
		Email   string `json:"email"`
		Role    string `json:"role"`
	} `json:"user"`
}

var (
	errUnexpectedStatus = errors.New("unexpected directory status")
	// errCallerGone marks calls aborted by the caller's own context. The
	// breaker does not count them against the directory.
	errCallerGone = errors.New("caller context done")
)

// lookup performs one guarded call. A 404 is a successful answer. A caller
// whose context is already done never reaches the breaker.
func (c *Client) lookup(ctx context.Context, userID string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", errCallerGone, err)
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		identity, err := c.fetch(ctx, userID)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
		}
		return identity, err
	})
	if err != nil {
		return domain.Identity{}, err
	}
	return result.(domain.Identity), nil
}

func (c *Client) fetch(ctx context.Context, userID string) (domain.Identity, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/users/internal/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Identity{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.MissingIdentity(userID), nil
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.Identity{}, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var body directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Identity{}, fmt.Errorf("decode directory response: %w", err)
	}
	if body.User == nil {
		return domain.MissingIdentity(userID), nil
	}
	return domain.Identity{
		ID:      userID,
		Name:    body.User.Name,
		Surname: body.User.Surname,
		Email:   body.User.Email,
		Role:    body.User.Role,
		Status:  domain.IdentityResolved,
	}, nil
}

// GetUser resolves from cache, then the directory, then a placeholder.
func (c *Client) GetUser(ctx context.Context, userID string) domain.Identity {
	if identity, ok := c.cache.Get(ctx, userID); ok {
		return identity
	}
	identity, err := c.lookup(ctx, userID)
	if errors.Is(err, errCallerGone) {
		return domain.UnavailableIdentity(userID)
	}
	if err != nil {
		c.metrics.RecordIdentityFallback()
		c.logger.Warn("identity lookup degraded",
			zap.String("user_id", userID),
			zap.String("breaker_state", c.breaker.State().String()),
			zap.Error(err))
		return domain.UnavailableIdentity(userID)
	}
	if identity.Status == domain.IdentityResolved {
		c.cache.Set(ctx, identity)
	}
	return identity
}

// UserExists bypasses the cache so that deleted users are noticed.
func (c *Client) UserExists(ctx context.Context, userID string) (bool, error) {
	identity, err := c.lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, errCallerGone) {
			return false, err
		}
		c.logger.Warn("identity existence check failed", zap.String("user_id", userID), zap.Error(err))
		return false, apperrors.NewUpstreamUnavailable(serviceName, err)
	}
	return identity.Status == domain.IdentityResolved, nil
}
