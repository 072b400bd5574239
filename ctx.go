package tours

import (
	"context"
)

type authCheckKey struct{}

// WithAuthCheck stores a passed check so handlers can read the resolved user
// and the claims it was verified with. Rejected checks are not stored.
func WithAuthCheck(ctx context.Context, check *AuthCheck) context.Context {
	if check == nil || check.Rejected() || check.User == nil {
		return ctx
	}
	return context.WithValue(ctx, authCheckKey{}, check)
}

// FromContext returns the user resolved for this request, if any
func FromContext(ctx context.Context) (*User, bool) {
	check, ok := ctx.Value(authCheckKey{}).(*AuthCheck)
	if !ok {
		return nil, false
	}
	return check.User, true
}

// GetClaims returns the verified token claims for this request, if any
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	check, ok := ctx.Value(authCheckKey{}).(*AuthCheck)
	if !ok || check.Claims == nil {
		return nil, false
	}
	return check.Claims, true
}
