package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

type guardFixture struct {
	tokens *TokenManager
	repo   repository.CredentialRepository
	guard  *Guard
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	tm := newTestTokenManager(t)
	repo := repository.NewMemoryCredentialRepository()
	return &guardFixture{tokens: tm, repo: repo, guard: NewGuard(tm, repo)}
}

func (f *guardFixture) create(t *testing.T, username string, role domain.Role) *domain.Credential {
	t.Helper()
	cred := &domain.Credential{
		Email:        username + "@x.com",
		Username:     username,
		PasswordHash: "unused",
		Role:         role,
	}
	require.NoError(t, f.repo.Create(context.Background(), cred))
	return cred
}

func (f *guardFixture) bearer(t *testing.T, identity domain.Identity) string {
	t.Helper()
	token, _, err := f.tokens.IssueAccessToken(identity)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	token, err = BearerToken("bearer   abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "abc", "Basic abc", "Bearer ", "Bearer"} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized, header)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newGuardFixture(t)
	cred := f.create(t, "carol", domain.RoleUser)

	principal, err := f.guard.Authenticate(context.Background(), f.bearer(t, cred.Identity()))
	require.NoError(t, err)
	assert.Equal(t, cred.ID, principal.Subject())
	assert.Equal(t, cred.Username, principal.Credential.Username)
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	f := newGuardFixture(t)
	cred := f.create(t, "carol", domain.RoleUser)
	refresh, _, err := f.tokens.IssueRefreshToken(cred.Identity())
	require.NoError(t, err)

	_, err = f.guard.Authenticate(context.Background(), "Bearer "+refresh)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthenticateUnknownSubject(t *testing.T) {
	f := newGuardFixture(t)

	_, err := f.guard.Authenticate(context.Background(), f.bearer(t, domain.Identity{Subject: "ghost"}))
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthenticateBannedWithValidToken(t *testing.T) {
	f := newGuardFixture(t)
	cred := f.create(t, "dave", domain.RoleUser)
	header := f.bearer(t, cred.Identity())

	cred.IsBanned = true
	require.NoError(t, f.repo.Update(context.Background(), cred))

	_, err := f.guard.Authenticate(context.Background(), header)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthorizeAdmin(t *testing.T) {
	f := newGuardFixture(t)
	admin := f.create(t, "root", domain.RoleAdmin)
	user := f.create(t, "erin", domain.RoleUser)
	required := ParseRequiredRole(AdminMarker)
	require.NotNil(t, required)

	_, err := f.guard.Authorize(context.Background(), f.bearer(t, admin.Identity()), required)
	require.NoError(t, err)

	_, err = f.guard.Authorize(context.Background(), f.bearer(t, user.Identity()), required)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.guard.Authorize(context.Background(), f.bearer(t, user.Identity()), nil)
	require.NoError(t, err)
}

func TestAuthorizeAdminDemoted(t *testing.T) {
	f := newGuardFixture(t)
	admin := f.create(t, "root", domain.RoleAdmin)
	header := f.bearer(t, admin.Identity())

	admin.Role = domain.RoleUser
	require.NoError(t, f.repo.Update(context.Background(), admin))

	_, err := f.guard.Authorize(context.Background(), header, ParseRequiredRole(AdminMarker))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRequireRole(t *testing.T) {
	assert.NoError(t, RequireRole(&Claims{IsAdmin: true}, domain.RoleAdmin))
	assert.NoError(t, RequireRole(&Claims{}, domain.RoleUser))
	assert.ErrorIs(t, RequireRole(&Claims{}, domain.RoleAdmin), apperrors.ErrForbidden)
	assert.ErrorIs(t, RequireRole(nil, domain.RoleUser), apperrors.ErrUnauthorized)
}

func TestParseRequiredRole(t *testing.T) {
	assert.Nil(t, ParseRequiredRole(""))
	assert.Nil(t, ParseRequiredRole("role:user"))
	role := ParseRequiredRole("scope=role:admin")
	require.NotNil(t, role)
	assert.Equal(t, domain.RoleAdmin, *role)
}

func newGuardApp(f *guardFixture) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			derr := apperrors.ToDomainError(err)
			return c.Status(derr.HTTPStatus).SendString(derr.Code)
		},
	})
	app.Get("/me", f.guard.Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(principal.Credential.Username)
	})
	app.Get("/admin", f.guard.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func TestGuardHandle(t *testing.T) {
	f := newGuardFixture(t)
	user := f.create(t, "frank", domain.RoleUser)
	admin := f.create(t, "root", domain.RoleAdmin)
	app := newGuardApp(f)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"user", "/me", f.bearer(t, user.Identity()), http.StatusOK},
		{"user on admin route", "/admin", f.bearer(t, user.Identity()), http.StatusForbidden},
		{"admin on admin route", "/admin", f.bearer(t, admin.Identity()), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireAdminWithoutPrincipal(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/admin", RequireAdmin(), func(c *fiber.Ctx) error { return nil })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type unreachableCredentials struct {
	repository.CredentialRepository
}

func (unreachableCredentials) GetByID(context.Context, string) (*domain.Credential, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestGuardHandleStoreFailure(t *testing.T) {
	f := newGuardFixture(t)
	user := f.create(t, "frank", domain.RoleUser)
	f.guard = NewGuard(f.tokens, unreachableCredentials{CredentialRepository: f.repo})
	app := newGuardApp(f)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, f.bearer(t, user.Identity()))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, apperrors.CodeInternal, string(body))
}
