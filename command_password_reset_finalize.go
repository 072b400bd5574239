package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage sets a new password with a reset token
type FinalizePasswordResetMessage struct {
	command.BaseMessage
	Token           string                         `json:"-"`
	Password        string                         `json:"password"`
	PasswordConfirm string                         `json:"passwordConfirm"`
	OnResponse      func(user *User, token string) `json:"-"`
}

func (e FinalizePasswordResetMessage) Type() string { return "password.reset.finalize" }

var _ command.Commander[FinalizePasswordResetMessage] = (*FinalizePasswordResetHandler)(nil)

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	issuer   TokenIssuer
	hasher   PasswordHasher
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, issuer TokenIssuer) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		issuer:   issuer,
		hasher:   NewBcryptHasher(),
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *FinalizePasswordResetHandler) WithHasher(hasher PasswordHasher) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithClock(now func() time.Time) *FinalizePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrInvalidOrExpiredToken
	}

	user, err := h.repo.Users().GetByResetTokenHash(ctx, HashResetToken(event.Token))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return richOrWrap(err, goerrors.CategoryInternal, "failed to look up reset token")
	}

	now := h.now()
	if user.PasswordResetExpires == nil || !user.PasswordResetExpires.After(now) {
		if err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return h.repo.Users().ClearPasswordResetTx(ctx, tx, user.ID)
		}); err != nil {
			h.logger.Warn("failed to clear expired reset token", "user_id", user.ID.String(), "error", err)
		}
		return ErrInvalidOrExpiredToken
	}

	if err := ValidatePasswordPair(event.Password, event.PasswordConfirm); err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().ConsumeResetTokenTx(ctx, tx, user.ID, user.PasswordResetToken, hash, now)
	})
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "password reset finalization failed")
	}

	user.PasswordHash = hash
	user.ClearPasswordReset()

	token, err := h.issuer.IssueToken(user)
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "failed to issue token")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventPasswordResetSuccess, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(user, token)
	}
	return nil
}
