package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const clearResetTimeout = 5 * time.Second

// InitializePasswordResetMessage starts the forgot password flow
type InitializePasswordResetMessage struct {
	command.BaseMessage
	Email string `json:"email"`
	// BaseURL is the scheme and host the reset link points at
	BaseURL string `json:"-"`
}

func (e InitializePasswordResetMessage) Type() string { return "password.reset.init" }

var _ command.Commander[InitializePasswordResetMessage] = (*InitializePasswordResetHandler)(nil)

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier AccountNotifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewInitializePasswordResetHandler(repo RepositoryManager, notifier AccountNotifier) *InitializePasswordResetHandler {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) WithClock(now func() time.Time) *InitializePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetActiveByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrUserNotFound
		}
		return richOrWrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	token, err := NewResetToken(h.now())
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().SetPasswordResetTx(ctx, tx, user.ID, token.Hash, token.Expires)
	})
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "password reset initialization failed")
	}

	if err := h.notifier.SendPasswordReset(ctx, user, ResetURL(event.BaseURL, token.Plain)); err != nil {
		h.logger.Error("password reset email failed", "user_id", user.ID.String(), "error", err)
		// the request context may be the reason delivery failed
		clearCtx, clearCancel := context.WithTimeout(context.WithoutCancel(ctx), clearResetTimeout)
		defer clearCancel()
		clearErr := h.repo.RunInTx(clearCtx, nil, func(ctx context.Context, tx bun.Tx) error {
			return h.repo.Users().ClearPasswordResetTx(ctx, tx, user.ID)
		})
		if clearErr != nil {
			h.logger.Error("failed to clear reset token", "user_id", user.ID.String(), "error", clearErr)
		}
		return ErrDeliveryFailure
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventPasswordResetRequest, user.ID.String(), nil)
	return nil
}
