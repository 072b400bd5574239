package tours

import "context"

// AccountNotifier delivers account emails
type AccountNotifier interface {
	SendWelcome(ctx context.Context, user *User, accountURL string) error
	SendPasswordReset(ctx context.Context, user *User, resetURL string) error
}

// TokenIssuer mints session tokens
type TokenIssuer interface {
	IssueToken(user *User) (string, error)
}

type noopNotifier struct{}

func (noopNotifier) SendWelcome(context.Context, *User, string) error       { return nil }
func (noopNotifier) SendPasswordReset(context.Context, *User, string) error { return nil }

// ResetPasswordPath is the API path a reset token is presented on
const ResetPasswordPath = "/api/v1/users/resetPassword/"

// ResetURL joins base and the plain token
func ResetURL(base, token string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + ResetPasswordPath + token
}
