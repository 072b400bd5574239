package tours_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	notifier := &fakeNotifier{}
	sink := &MockActivitySink{}

	handler := tours.NewRegisterUserHandler(repo).
		WithHasher(testHasher).
		WithNotifier(notifier).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt tours.ActivityEvent) bool {
		return evt.EventType == tours.ActivityEventSignup
	})).Return(nil).Once()

	var created *tours.User
	err := handler.Execute(ctx, tours.RegisterUserMessage{
		Name:            "Jane Doe",
		Email:           " JANE@example.com",
		Password:        testPassword,
		PasswordConfirm: testPassword,
		OnResponse:      func(u *tours.User) { created = u },
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, tours.RoleUser, created.Role)
	assert.True(t, created.Active)
	assert.Equal(t, tours.DefaultUserPhoto, created.Photo)
	assert.NotEqual(t, testPassword, created.PasswordHash)
	assert.NoError(t, testHasher.ComparePasswordAndHash(testPassword, created.PasswordHash))
	assert.Equal(t, []string{"jane@example.com"}, notifier.welcomes)
	sink.AssertExpectations(t)

	t.Run("duplicate email", func(t *testing.T) {
		err := handler.Execute(ctx, tours.RegisterUserMessage{
			Name:            "Jane Again",
			Email:           "jane@example.com",
			Password:        testPassword,
			PasswordConfirm: testPassword,
		})
		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
	})

	t.Run("password mismatch", func(t *testing.T) {
		err := handler.Execute(ctx, tours.RegisterUserMessage{
			Name:            "Bob",
			Email:           "bob@example.com",
			Password:        testPassword,
			PasswordConfirm: "something-else",
		})
		require.Error(t, err)
		_, lookupErr := repo.Users().GetActiveByEmail(ctx, "bob@example.com")
		assert.True(t, goerrors.IsNotFound(lookupErr))
	})

	t.Run("short password", func(t *testing.T) {
		err := handler.Execute(ctx, tours.RegisterUserMessage{
			Name:            "Bob",
			Email:           "bob@example.com",
			Password:        "short",
			PasswordConfirm: "short",
		})
		assert.Error(t, err)
	})

	t.Run("invalid email", func(t *testing.T) {
		err := handler.Execute(ctx, tours.RegisterUserMessage{
			Name:            "Bob",
			Email:           "not-an-email",
			Password:        testPassword,
			PasswordConfirm: testPassword,
		})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := handler.Execute(cancelled, tours.RegisterUserMessage{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)

	clk := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	auther := newAuther(repo, clk, testConfig{expiration: 24 * time.Hour})
	notifier := &fakeNotifier{}

	initialize := tours.NewInitializePasswordResetHandler(repo, notifier).
		WithLogger(testLogger{}).
		WithClock(clk.Now)
	finalize := tours.NewFinalizePasswordResetHandler(repo, auther).
		WithHasher(testHasher).
		WithLogger(testLogger{}).
		WithClock(clk.Now)

	t.Run("unknown email", func(t *testing.T) {
		err := initialize.Execute(ctx, tours.InitializePasswordResetMessage{Email: "nobody@example.com"})
		assert.ErrorIs(t, err, tours.ErrUserNotFound)
	})

	err := initialize.Execute(ctx, tours.InitializePasswordResetMessage{
		Email:   "jane@example.com",
		BaseURL: "http://tours.test/",
	})
	require.NoError(t, err)
	plain := notifier.lastToken(t)
	assert.Len(t, plain, tours.ResetTokenBytes*2)

	stored, err := repo.Users().GetActiveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, tours.HashResetToken(plain), stored.PasswordResetToken)
	assert.NotEqual(t, plain, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.True(t, stored.PasswordResetExpires.Equal(clk.Now().Add(tours.ResetTokenTTL)))

	oldToken, err := auther.IssueToken(stored)
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)

	var (
		resetUser  *tours.User
		resetToken string
	)
	err = finalize.Execute(ctx, tours.FinalizePasswordResetMessage{
		Token:           plain,
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
		OnResponse: func(u *tours.User, token string) {
			resetUser, resetToken = u, token
		},
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resetUser.ID)
	assert.NotEmpty(t, resetToken)

	t.Run("token is single use", func(t *testing.T) {
		err := finalize.Execute(ctx, tours.FinalizePasswordResetMessage{
			Token:           plain,
			Password:        "another123",
			PasswordConfirm: "another123",
		})
		assert.ErrorIs(t, err, tours.ErrInvalidOrExpiredToken)
	})

	t.Run("new password works", func(t *testing.T) {
		_, _, err := auther.Login(ctx, "jane@example.com", "newpass123")
		assert.NoError(t, err)
		_, _, err = auther.Login(ctx, "jane@example.com", testPassword)
		assert.ErrorIs(t, err, tours.ErrIncorrectCredentials)
	})

	t.Run("earlier sessions are stale", func(t *testing.T) {
		check := auther.Check(ctx, oldToken)
		assert.ErrorIs(t, check.Err, tours.ErrStaleCredential)

		check = auther.Check(ctx, resetToken)
		assert.False(t, check.Rejected(), check.Err)
	})
}

func TestPasswordReset_Expired(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)

	clk := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	notifier := &fakeNotifier{}

	initialize := tours.NewInitializePasswordResetHandler(repo, notifier).WithClock(clk.Now)
	finalize := tours.NewFinalizePasswordResetHandler(repo, newAuther(repo, clk, testConfig{})).
		WithHasher(testHasher).
		WithClock(clk.Now)

	require.NoError(t, initialize.Execute(ctx, tours.InitializePasswordResetMessage{
		Email:   "jane@example.com",
		BaseURL: "http://tours.test",
	}))
	plain := notifier.lastToken(t)

	clk.Advance(tours.ResetTokenTTL)

	err := finalize.Execute(ctx, tours.FinalizePasswordResetMessage{
		Token:           plain,
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
	})
	assert.ErrorIs(t, err, tours.ErrInvalidOrExpiredToken)

	stored, err := repo.Users().GetActiveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
	assert.NoError(t, testHasher.ComparePasswordAndHash(testPassword, stored.PasswordHash))
}

func TestPasswordReset_DeliveryFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)

	notifier := &fakeNotifier{err: errors.New("smtp: connection refused")}
	initialize := tours.NewInitializePasswordResetHandler(repo, notifier).WithLogger(testLogger{})

	err := initialize.Execute(ctx, tours.InitializePasswordResetMessage{
		Email:   "jane@example.com",
		BaseURL: "http://tours.test",
	})
	assert.ErrorIs(t, err, tours.ErrDeliveryFailure)

	stored, err := repo.Users().GetActiveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
}

func TestUpdatePasswordHandler(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)

	clk := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	auther := newAuther(repo, clk, testConfig{expiration: 24 * time.Hour})
	sink := &MockActivitySink{}

	handler := tours.NewUpdatePasswordHandler(repo, auther).
		WithHasher(testHasher).
		WithActivitySink(sink).
		WithClock(clk.Now)

	t.Run("wrong current password", func(t *testing.T) {
		err := handler.Execute(ctx, tours.UpdatePasswordMessage{
			UserID:          user.ID,
			PasswordCurrent: "not-it-at-all",
			Password:        "newpass123",
			PasswordConfirm: "newpass123",
		})
		assert.ErrorIs(t, err, tours.ErrIncorrectPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := handler.Execute(ctx, tours.UpdatePasswordMessage{
			UserID:          uuid.New(),
			PasswordCurrent: testPassword,
			Password:        "newpass123",
			PasswordConfirm: "newpass123",
		})
		assert.ErrorIs(t, err, tours.ErrUserGone)
	})

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt tours.ActivityEvent) bool {
		return evt.EventType == tours.ActivityEventPasswordUpdateSuccess && evt.UserID == user.ID.String()
	})).Return(nil).Once()

	clk.Advance(time.Minute)

	var token string
	err := handler.Execute(ctx, tours.UpdatePasswordMessage{
		UserID:          user.ID,
		PasswordCurrent: testPassword,
		Password:        "newpass123",
		PasswordConfirm: "newpass123",
		OnResponse:      func(_ *tours.User, tok string) { token = tok },
	})
	require.NoError(t, err)
	assert.False(t, auther.Check(ctx, token).Rejected())
	sink.AssertExpectations(t)

	stored, err := repo.Users().GetActiveByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.True(t, stored.PasswordChangedAt.Equal(clk.Now().Add(-time.Second)))
}

func TestCompleteCheckoutHandler(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)
	tour := createTour(t, repo, &tours.Tour{Name: "The Forest Hiker"})

	sink := &MockActivitySink{}
	handler := tours.NewCompleteCheckoutHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt tours.ActivityEvent) bool {
		return evt.EventType == tours.ActivityEventBookingCreated && evt.Metadata["session_id"] == "cs_1"
	})).Return(nil).Once()

	msg := tours.CompleteCheckoutMessage{
		SessionID:     "cs_1",
		TourID:        tour.ID,
		CustomerEmail: "JANE@example.com",
		Amount:        497,
	}

	var first *tours.Booking
	msg.OnResponse = func(b *tours.Booking, created bool) {
		assert.True(t, created)
		first = b
	}
	require.NoError(t, handler.Execute(ctx, msg))
	require.NotNil(t, first)

	msg.OnResponse = func(_ *tours.Booking, created bool) {
		assert.False(t, created)
	}
	require.NoError(t, handler.Execute(ctx, msg))

	bookings, err := repo.Bookings().ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, first.ID, bookings[0].ID)
	assert.True(t, bookings[0].Paid)
	sink.AssertExpectations(t)

	t.Run("unknown customer", func(t *testing.T) {
		err := handler.Execute(ctx, tours.CompleteCheckoutMessage{
			SessionID:     "cs_2",
			TourID:        tour.ID,
			CustomerEmail: "nobody@example.com",
		})
		assert.ErrorIs(t, err, tours.ErrUserNotFound)
	})

	t.Run("unknown tour", func(t *testing.T) {
		err := handler.Execute(ctx, tours.CompleteCheckoutMessage{
			SessionID:     "cs_3",
			TourID:        uuid.New(),
			CustomerEmail: "jane@example.com",
		})
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("missing session", func(t *testing.T) {
		err := handler.Execute(ctx, tours.CompleteCheckoutMessage{TourID: tour.ID})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "session"))
	})
}

func TestResetURL(t *testing.T) {
	assert.Equal(t, "http://tours.test"+tours.ResetPasswordPath+"abc", tours.ResetURL("http://tours.test/", "abc"))
	assert.Equal(t, "http://tours.test"+tours.ResetPasswordPath+"abc", tours.ResetURL("http://tours.test", "abc"))
}

// blockingNotifier holds delivery until the caller gives up
type blockingNotifier struct{}

func (blockingNotifier) SendWelcome(ctx context.Context, _ *tours.User, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingNotifier) SendPasswordReset(ctx context.Context, _ *tours.User, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPasswordReset_DeliveryTimeoutClearsToken(t *testing.T) {
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)

	initialize := tours.NewInitializePasswordResetHandler(repo, blockingNotifier{}).WithLogger(testLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := initialize.Execute(ctx, tours.InitializePasswordResetMessage{
		Email:   "jane@example.com",
		BaseURL: "http://tours.test",
	})
	assert.ErrorIs(t, err, tours.ErrDeliveryFailure)

	stored, err := repo.Users().GetActiveByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestPasswordReset_ConcurrentFinalizeAcceptsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	createUser(t, repo, "jane@example.com", tours.RoleUser)

	clk := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	notifier := &fakeNotifier{}

	initialize := tours.NewInitializePasswordResetHandler(repo, notifier).WithClock(clk.Now)
	finalize := tours.NewFinalizePasswordResetHandler(repo, newAuther(repo, clk, testConfig{})).
		WithHasher(testHasher).
		WithClock(clk.Now)

	require.NoError(t, initialize.Execute(ctx, tours.InitializePasswordResetMessage{
		Email:   "jane@example.com",
		BaseURL: "http://tours.test",
	}))
	plain := notifier.lastToken(t)

	const attempts = 4
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- finalize.Execute(ctx, tours.FinalizePasswordResetMessage{
				Token:           plain,
				Password:        "newpass123",
				PasswordConfirm: "newpass123",
			})
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, tours.ErrInvalidOrExpiredToken)
	}
	assert.Equal(t, 1, accepted)
}

func TestConsumeResetTokenTx(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "jane@example.com", tours.RoleUser)

	hash := tours.HashResetToken("plain-token")
	require.NoError(t, repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Users().SetPasswordResetTx(ctx, tx, user.ID, hash, time.Now().Add(time.Hour))
	}))

	consume := func(resetHash string) error {
		return repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return repo.Users().ConsumeResetTokenTx(ctx, tx, user.ID, resetHash, "new-hash", time.Now())
		})
	}

	assert.ErrorIs(t, consume(tours.HashResetToken("other-token")), tours.ErrInvalidOrExpiredToken)
	require.NoError(t, consume(hash))
	assert.ErrorIs(t, consume(hash), tours.ErrInvalidOrExpiredToken)

	stored, err := repo.Users().GetActiveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.Empty(t, stored.PasswordResetToken)
}
