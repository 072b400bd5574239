package tours

import (
	"context"
)

// AuthState is the position of a request in the authentication pipeline
type AuthState int

const (
	StateAnonymous AuthState = iota
	StateTokenPresented
	StateTokenVerified
	StateUserResolved
	StateAuthorized
	StateRejected
)

func (s AuthState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateTokenPresented:
		return "token_presented"
	case StateTokenVerified:
		return "token_verified"
	case StateUserResolved:
		return "user_resolved"
	case StateAuthorized:
		return "authorized"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// AuthCheck is the result carried through the pipeline. When State is
// StateRejected, Err holds the reason.
type AuthCheck struct {
	State  AuthState
	Raw    string
	Claims AuthClaims
	User   *User
	Err    error
}

// Rejected reports whether a step rejected the check
func (c *AuthCheck) Rejected() bool {
	return c.State == StateRejected
}

// Step advances a check by one state or returns the rejection reason
type Step func(ctx context.Context, check *AuthCheck) error

// Pipeline is an ordered list of steps. The first failing step rejects
// the check and the remaining steps are skipped.
type Pipeline []Step

// Run executes the steps in order against a fresh check for raw
func (p Pipeline) Run(ctx context.Context, raw string) *AuthCheck {
	check := &AuthCheck{State: StateAnonymous, Raw: raw}
	for _, step := range p {
		if err := ctx.Err(); err != nil {
			check.State, check.Err = StateRejected, err
			return check
		}
		if err := step(ctx, check); err != nil {
			check.State, check.Err = StateRejected, err
			return check
		}
	}
	return check
}

// Then returns a copy of p with steps appended
func (p Pipeline) Then(steps ...Step) Pipeline {
	out := make(Pipeline, 0, len(p)+len(steps))
	out = append(out, p...)
	return append(out, steps...)
}

// PresentToken requires a non empty raw token
func PresentToken() Step {
	return func(_ context.Context, check *AuthCheck) error {
		if check.Raw == "" {
			return ErrUnauthenticated
		}
		check.State = StateTokenPresented
		return nil
	}
}

// VerifyToken checks signature and expiry
func VerifyToken(tokens TokenService) Step {
	return func(_ context.Context, check *AuthCheck) error {
		claims, err := tokens.Validate(check.Raw)
		if err != nil {
			return err
		}
		check.Claims = claims
		check.State = StateTokenVerified
		return nil
	}
}

// ResolveUser loads the active user named by the token subject
func ResolveUser(users *UserProvider) Step {
	return func(ctx context.Context, check *AuthCheck) error {
		user, err := users.FindActiveUser(ctx, check.Claims.Subject())
		if err != nil {
			return err
		}
		check.User = user
		check.State = StateUserResolved
		return nil
	}
}

// RejectStaleCredential rejects tokens issued before the last password change
func RejectStaleCredential() Step {
	return func(_ context.Context, check *AuthCheck) error {
		if check.User.ChangedPasswordAfter(check.Claims.IssuedAt()) {
			return ErrStaleCredential
		}
		return nil
	}
}

// Authorize marks the check as authorized. With no roles any resolved user
// passes, otherwise the stored role must be one of roles.
func Authorize(roles ...UserRole) Step {
	return func(_ context.Context, check *AuthCheck) error {
		if err := RestrictTo(check.User, roles...); err != nil {
			return err
		}
		check.State = StateAuthorized
		return nil
	}
}

// RestrictTo returns ErrForbidden unless user's role is in roles.
// An empty roles list allows any authenticated user.
func RestrictTo(user *User, roles ...UserRole) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	if !user.Role.In(roles...) {
		return ErrForbidden
	}
	return nil
}
