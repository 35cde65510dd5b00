package dto

import (
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const (
	minUsernameLength = 4
	minPasswordLength = 6
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate checks field shapes. Uniqueness and role policy are enforced
// by the service.
func (r SignupRequest) Validate() error {
	details := map[string]any{}
	if len(strings.TrimSpace(r.Username)) < minUsernameLength {
		details["username"] = "must be at least 4 characters"
	}
	if !validEmail(r.Email) {
		details["email"] = "must be a valid email address"
	}
	if len(r.Password) < minPasswordLength {
		details["password"] = "must be at least 6 characters"
	}
	if !domain.Role(r.Role).Valid() {
		details["role"] = "must be USER or ADMIN"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid signup payload", details)
	}
	return nil
}

// LoginRequest payload for login. Identifier is an email or a username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate checks required fields.
func (r LoginRequest) Validate() error {
	details := map[string]any{}
	if strings.TrimSpace(r.Identifier) == "" {
		details["identifier"] = "required"
	}
	if r.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid login payload", details)
	}
	return nil
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// MessageResponse is returned by operations without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AdminUpdateRequest is a partial credential update.
type AdminUpdateRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Role     *string `json:"role"`
	IsBanned *bool   `json:"isBanned"`
}

// Validate checks the fields that are present.
func (r AdminUpdateRequest) Validate() error {
	details := map[string]any{}
	if r.Username != nil && len(strings.TrimSpace(*r.Username)) < minUsernameLength {
		details["username"] = "must be at least 4 characters"
	}
	if r.Email != nil && !validEmail(*r.Email) {
		details["email"] = "must be a valid email address"
	}
	if r.Role != nil && !domain.Role(*r.Role).Valid() {
		details["role"] = "must be USER or ADMIN"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid update payload", details)
	}
	return nil
}

// CredentialResponse renders a credential without its password hash.
type CredentialResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	IsBanned        bool      `json:"isBanned"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewCredentialResponse maps a domain credential.
func NewCredentialResponse(c *domain.Credential) CredentialResponse {
	return CredentialResponse{
		ID:              c.ID,
		Email:           c.Email,
		Username:        c.Username,
		Role:            string(c.Role),
		IsBanned:        c.IsBanned,
		IsEmailVerified: c.IsEmailVerified,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func validEmail(value string) bool {
	value = strings.TrimSpace(value)
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}
