package tours

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging contract used across the module. Args are
// key value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	// GetTokenExpiration is the session token lifetime
	GetTokenExpiration() time.Duration
	// GetCookieExpiration is the jwt cookie lifetime
	GetCookieExpiration() time.Duration
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	IsProduction() bool
}

// Authenticator issues and verifies session tokens
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*User, string, error)
	IssueToken(user *User) (string, error)
	Protect(ctx context.Context, raw string) (*User, error)
	Verify(ctx context.Context, raw string) (*User, bool)
	Check(ctx context.Context, raw string, roles ...UserRole) *AuthCheck
}

// Identity is the minimal view of a resolved user
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type identity struct {
	user *User
}

// IdentityOf wraps a user record
func IdentityOf(user *User) Identity {
	return identity{user: user}
}

func (i identity) ID() string {
	if i.user == nil || i.user.ID == uuid.Nil {
		return ""
	}
	return i.user.ID.String()
}

func (i identity) Email() string {
	if i.user == nil {
		return ""
	}
	return i.user.Email
}

func (i identity) Role() string {
	if i.user == nil {
		return ""
	}
	return string(i.user.Role)
}

type defLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a slog logger to Logger
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return defLogger{l: l}
}

func (d defLogger) logger() *slog.Logger {
	if d.l == nil {
		return slog.Default().With("module", "tours")
	}
	return d.l
}

func (d defLogger) Debug(msg string, args ...any) {
	d.logger().Debug(msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	d.logger().Info(msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.logger().Warn(msg, args...)
}

func (d defLogger) Error(msg string, args ...any) {
	d.logger().Error(msg, args...)
}
