package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	command.BaseMessage
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	// AccountURL is linked from the welcome email
	AccountURL string           `json:"-"`
	OnResponse func(user *User) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

type RegisterUserHandler struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	notifier AccountNotifier
	activity ActivitySink
	logger   Logger
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		hasher:   NewBcryptHasher(),
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *RegisterUserHandler) WithHasher(hasher PasswordHasher) *RegisterUserHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *RegisterUserHandler) WithNotifier(n AccountNotifier) *RegisterUserHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	phone, err := NormalizePhone(event.Phone)
	if err != nil {
		return err
	}

	user := &User{
		Name:  event.Name,
		Email: NormalizeEmail(event.Email),
		Phone: phone,
		Role:  RoleUser,
	}

	if err := ValidateUser(user); err != nil {
		return err
	}

	if err := ValidatePasswordPair(event.Password, event.PasswordConfirm); err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		user.PasswordHash = hash

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if err := h.notifier.SendWelcome(ctx, user, event.AccountURL); err != nil {
		h.logger.Warn("welcome email failed", "user_id", user.ID.String(), "error", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventSignup, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
