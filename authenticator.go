package tours

import (
	"context"
	"time"
)

// LoggedOutCookieValue replaces the session cookie on logout
const LoggedOutCookieValue = "loggedout"

type Auther struct {
	provider        *UserProvider
	signingKey      []byte
	tokenExpiration time.Duration
	issuer          string
	logger          Logger
	tokenService    TokenService
	activitySink    ActivitySink
	pipeline        Pipeline
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider *UserProvider, opts Config) *Auther {
	a := &Auther{
		provider:        provider,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		activitySink:    noopActivitySink{},
	}
	a.tokenService = NewTokenService(a.signingKey, a.tokenExpiration, a.issuer, a.logger)
	a.pipeline = a.defaultPipeline()
	return a
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.tokenService = NewTokenService(s.signingKey, s.tokenExpiration, s.issuer, logger)
	s.pipeline = s.defaultPipeline()
	return s
}

// WithTokenService replaces the token service, the pipeline is rebuilt
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts == nil {
		return s
	}
	s.tokenService = ts
	s.pipeline = s.defaultPipeline()
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Pipeline returns the steps Protect runs before role checks
func (s *Auther) Pipeline() Pipeline {
	return s.pipeline
}

func (s *Auther) defaultPipeline() Pipeline {
	return Pipeline{
		PresentToken(),
		VerifyToken(s.tokenService),
		ResolveUser(s.provider),
		RejectStaleCredential(),
	}
}

// Login verifies credentials and issues a session token
func (s *Auther) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login verify identity error", "error", err)
		recordActivity(ctx, s.activitySink, s.logger, ActivityEventLoginFailure, "", map[string]any{
			"email": NormalizeEmail(email),
		})
		return nil, "", err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEventLoginSuccess, user.ID.String(), nil)

	return user, token, nil
}

// IssueToken mints a session token for user
func (s *Auther) IssueToken(user *User) (string, error) {
	token, err := s.tokenService.Generate(IdentityOf(user))
	if err != nil {
		s.logger.Error("IssueToken failed", "error", err)
		return "", err
	}
	return token, nil
}

// Check runs the pipeline and, if it passes, the role check
func (s *Auther) Check(ctx context.Context, raw string, roles ...UserRole) *AuthCheck {
	return s.pipeline.Then(Authorize(roles...)).Run(ctx, raw)
}

// Protect is the hard gate: the request continues only with a resolved user
func (s *Auther) Protect(ctx context.Context, raw string) (*User, error) {
	check := s.Check(ctx, raw)
	if check.Rejected() {
		s.logger.Debug("Protect rejected request", "reason", check.Err)
		return nil, check.Err
	}
	return check.User, nil
}

// Verify is the soft gate: any failure degrades to anonymous
func (s *Auther) Verify(ctx context.Context, raw string) (*User, bool) {
	if raw == "" || raw == LoggedOutCookieValue {
		return nil, false
	}
	check := s.Check(ctx, raw)
	if check.Rejected() {
		return nil, false
	}
	return check.User, true
}
