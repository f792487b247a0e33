package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Headers set by the API gateway after it validated the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// AuthMiddleware turns request credentials into a domain.Principal.
type AuthMiddleware struct {
	tokens       *TokenManager
	trustGateway bool
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, trustGateway bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, trustGateway: trustGateway}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	if principal == nil {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional admits guests. Credentials that are present must still be valid.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	if principal != nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx) (*domain.Principal, error) {
	if m.trustGateway {
		if id := strings.TrimSpace(c.Get(HeaderUserID)); id != "" {
			role := domain.Role(strings.ToLower(strings.TrimSpace(c.Get(HeaderUserRole))))
			if !role.Valid() {
				return nil, apperrors.NewUnauthorized("invalid role header")
			}
			return &domain.Principal{ID: id, Role: role}, nil
		}
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return principal, nil
}

// PrincipalFromContext returns nil for guests.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
