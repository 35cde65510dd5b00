package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const principalKey = "auth_principal"

// AdminMarker is the role requirement accepted by ParseRequiredRole.
const AdminMarker = "role:admin"

// Principal represents the authenticated caller.
type Principal struct {
	Claims     *Claims
	Credential *domain.Credential
}

// Subject returns the credential id tokens were issued for.
func (p *Principal) Subject() string {
	return p.Claims.Subject
}

// Guard validates bearer tokens against the access secret and the live
// credential record.
type Guard struct {
	tokens      *TokenManager
	credentials repository.CredentialRepository
}

// NewGuard constructs a guard.
func NewGuard(tokens *TokenManager, credentials repository.CredentialRepository) *Guard {
	return &Guard{tokens: tokens, credentials: credentials}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate verifies the access token in header and loads its credential.
// Missing and banned credentials are rejected even when the token is valid.
func (g *Guard) Authenticate(ctx context.Context, header string) (*Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}

	claims, err := g.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	cred, err := g.credentials.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if cred.IsBanned {
		return nil, apperrors.NewUnauthorized("user is banned")
	}

	return &Principal{Claims: claims, Credential: cred}, nil
}

// Authorize authenticates header and, when required is set, checks the role.
// ADMIN needs both the signed claim and the current stored role.
func (g *Guard) Authorize(ctx context.Context, header string, required *domain.Role) (*Principal, error) {
	principal, err := g.Authenticate(ctx, header)
	if err != nil {
		return nil, err
	}
	if required == nil {
		return principal, nil
	}
	if err := RequireRole(principal.Claims, *required); err != nil {
		return nil, err
	}
	if *required == domain.RoleAdmin && !principal.Credential.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return principal, nil
}

// Handle enforces authentication for protected routes.
func (g *Guard) Handle(c *fiber.Ctx) error {
	principal, err := g.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.MapError(err)
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// RequireRole checks the signed claims against role.
func RequireRole(claims *Claims, role domain.Role) error {
	if claims == nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if role == domain.RoleAdmin && !claims.IsAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// ParseRequiredRole reads a forward-auth requirement. Anything that does not
// ask for the admin role means authentication only.
func ParseRequiredRole(marker string) *domain.Role {
	if strings.Contains(strings.ToLower(marker), AdminMarker) {
		role := domain.RoleAdmin
		return &role
	}
	return nil
}
