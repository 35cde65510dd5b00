package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	}
	// Self-registering as ADMIN is refused before any field is looked at.
	if input.Role != domain.RoleAdmin {
		if err := req.Validate(); err != nil {
			return apperrors.MapError(err)
		}
	}

	msg, err := h.auth.Signup(c.UserContext(), input)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MessageResponse{Message: msg})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.MapError(err)
	}

	pair, err := h.auth.Login(c.UserContext(), req.Identifier, req.Password)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(pair)
}

// Refresh handles POST /auth/refresh-token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewAccessDenied()
	}

	pair, err := h.auth.RefreshToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(pair)
}

// Logout handles POST /auth/logout for the bearer's own session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	msg, err := h.auth.Logout(c.UserContext(), principal.Subject())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.MessageResponse{Message: msg})
}

// Verify handles GET /auth/verify, the reverse proxy forward-auth check.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	if _, err := h.auth.ForwardVerify(c.UserContext(), c.Get(fiber.HeaderAuthorization), c.Query("require")); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VerifyEmail handles GET /auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	msg, err := h.auth.VerifyEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.MessageResponse{Message: msg})
}
