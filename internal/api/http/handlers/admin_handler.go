package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const maxPageSize = 200

// AdminHandler exposes credential administration.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// List handles GET /auth/admin.
func (h *AdminHandler) List(c *fiber.Ctx) error {
	filter := repository.CredentialFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	creds, err := h.auth.ListCredentials(c.UserContext(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}

	resp := make([]dto.CredentialResponse, 0, len(creds))
	for i := range creds {
		resp = append(resp, dto.NewCredentialResponse(&creds[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Get handles GET /auth/admin/:id.
func (h *AdminHandler) Get(c *fiber.Ctx) error {
	cred, err := h.auth.GetCredential(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewCredentialResponse(cred)})
}

// Update handles PUT /auth/admin/:id.
func (h *AdminHandler) Update(c *fiber.Ctx) error {
	var req dto.AdminUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.MapError(err)
	}

	upd := service.CredentialUpdate{
		Email:    req.Email,
		Username: req.Username,
		IsBanned: req.IsBanned,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		upd.Role = &role
	}

	cred, err := h.auth.UpdateCredential(c.UserContext(), c.Params("id"), upd)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewCredentialResponse(cred)})
}
