package domain

import "time"

// Role is the authorization level of a credential.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Credential is the stored identity record for an account.
type Credential struct {
	ID              string
	Email           string
	Username        string
	PasswordHash    string
	Role            Role
	IsBanned        bool
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAdmin reports whether the credential currently holds the ADMIN role.
func (c *Credential) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Identity returns the claim set tokens carry for this credential.
func (c *Credential) Identity() Identity {
	return Identity{
		Subject:         c.ID,
		Email:           c.Email,
		Username:        c.Username,
		IsAdmin:         c.IsAdmin(),
		IsEmailVerified: c.IsEmailVerified,
	}
}
