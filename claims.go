package tours

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the decoded session token
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	HasRole(roles ...UserRole) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole string `json:"role,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, stored as the subject
func (c *JWTClaims) UserID() string {
	return c.Subject()
}

// Role returns the role at the time the token was issued. Authorization
// decisions use the stored user's role, not this value.
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// HasRole checks the claim role against roles
func (c *JWTClaims) HasRole(roles ...UserRole) bool {
	return UserRole(c.UserRole).In(roles...)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
