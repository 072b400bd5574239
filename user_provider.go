package tours

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// UserFinder is the store the auth flows resolve users from. Both lookups
// must ignore inactive users.
type UserFinder interface {
	GetActiveByEmail(ctx context.Context, email string) (*User, error)
	GetActiveByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// UserProvider handles users
type UserProvider struct {
	store     UserFinder
	hasher    PasswordHasher
	Validator func(*User) error
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserFinder) *UserProvider {
	return &UserProvider{
		store:     store,
		hasher:    NewBcryptHasher(),
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// WithHasher overrides the password hasher
func (u *UserProvider) WithHasher(h PasswordHasher) *UserProvider {
	if h != nil {
		u.hasher = h
	}
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user by email and compare the password.
// Unknown email and wrong password fail the same way.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := u.store.GetActiveByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIncorrectCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		u.logger.Debug("password mismatch", "user_id", user.ID.String())
		return nil, ErrIncorrectCredentials
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user, nil
}

// FindActiveUser resolves a token subject to an active user
func (u *UserProvider) FindActiveUser(ctx context.Context, subject string) (*User, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrUserGone
	}

	user, err := u.store.GetActiveByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserGone
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve token subject")
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user, nil
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func defaultValidator(u *User) error {
	if u == nil {
		return ErrUserGone
	}
	if !u.Role.IsValid() {
		return goerrors.New("user has an unknown or invalid role", goerrors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
	}
	return nil
}
