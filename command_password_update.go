package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdatePasswordMessage changes the password of a logged in user
type UpdatePasswordMessage struct {
	command.BaseMessage
	UserID          uuid.UUID                      `json:"-"`
	PasswordCurrent string                         `json:"passwordCurrent"`
	Password        string                         `json:"password"`
	PasswordConfirm string                         `json:"passwordConfirm"`
	OnResponse      func(user *User, token string) `json:"-"`
}

func (e UpdatePasswordMessage) Type() string { return "password.update" }

var _ command.Commander[UpdatePasswordMessage] = (*UpdatePasswordHandler)(nil)

type UpdatePasswordHandler struct {
	repo     RepositoryManager
	issuer   TokenIssuer
	hasher   PasswordHasher
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewUpdatePasswordHandler(repo RepositoryManager, issuer TokenIssuer) *UpdatePasswordHandler {
	return &UpdatePasswordHandler{
		repo:     repo,
		issuer:   issuer,
		hasher:   NewBcryptHasher(),
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *UpdatePasswordHandler) WithHasher(hasher PasswordHasher) *UpdatePasswordHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *UpdatePasswordHandler) WithActivitySink(sink ActivitySink) *UpdatePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdatePasswordHandler) WithLogger(logger Logger) *UpdatePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdatePasswordHandler) WithClock(now func() time.Time) *UpdatePasswordHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetActiveByID(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrUserGone
		}
		return richOrWrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if err := h.hasher.ComparePasswordAndHash(event.PasswordCurrent, user.PasswordHash); err != nil {
		return ErrIncorrectPassword
	}

	if err := ValidatePasswordPair(event.Password, event.PasswordConfirm); err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := h.now()
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash, now)
	})
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "password update failed")
	}
	user.PasswordHash = hash

	token, err := h.issuer.IssueToken(user)
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "failed to issue token")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventPasswordUpdateSuccess, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(user, token)
	}
	return nil
}
