package tours_test

import (
	"context"
	"sync"
	"testing"
	"time"

	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "pass1234"

var testHasher = tours.BcryptHasher{Cost: bcrypt.MinCost}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type testConfig struct {
	expiration time.Duration
}

func (c testConfig) GetSigningKey() string { return "test-signing-key-test-signing-key" }
func (c testConfig) GetIssuer() string     { return "test-issuer" }
func (c testConfig) GetTokenExpiration() time.Duration {
	if c.expiration == 0 {
		return time.Hour
	}
	return c.expiration
}
func (c testConfig) GetCookieExpiration() time.Duration { return 24 * time.Hour }
func (c testConfig) GetContextKey() string              { return "user" }
func (c testConfig) GetTokenLookup() string             { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string              { return "Bearer" }
func (c testConfig) IsProduction() bool                 { return false }

type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event tours.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fakeNotifier struct {
	mu       sync.Mutex
	welcomes []string
	resets   []string
	err      error
}

func (n *fakeNotifier) SendWelcome(_ context.Context, user *tours.User, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, user.Email)
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, _ *tours.User, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets = append(n.resets, resetURL)
	return nil
}

func (n *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets)
	last := n.resets[len(n.resets)-1]
	prefix := "http://tours.test" + tours.ResetPasswordPath
	require.Greater(t, len(last), len(prefix))
	return last[len(prefix):]
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock {
	return &clock{now: t}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRepo(t *testing.T) tours.RepositoryManager {
	t.Helper()
	db, err := storage.OpenAndMigrate(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    storage.MemoryDSN,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return tours.NewRepositoryManager(db)
}

func createUser(t *testing.T, repo tours.RepositoryManager, email string, role tours.UserRole) *tours.User {
	t.Helper()
	hash, err := testHasher.HashPassword(testPassword)
	require.NoError(t, err)
	user, err := repo.Users().Register(context.Background(), &tours.User{
		Name:         "Test User",
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func createTour(t *testing.T, repo tours.RepositoryManager, tour *tours.Tour) *tours.Tour {
	t.Helper()
	if tour.Duration == 0 {
		tour.Duration = 5
	}
	if tour.MaxGroupSize == 0 {
		tour.MaxGroupSize = 10
	}
	if tour.Difficulty == "" {
		tour.Difficulty = tours.DifficultyEasy
	}
	if tour.Price == 0 {
		tour.Price = 497
	}
	if tour.Summary == "" {
		tour.Summary = "A tour"
	}
	if tour.ImageCover == "" {
		tour.ImageCover = "cover.jpg"
	}
	created, err := repo.Tours().Create(context.Background(), tour)
	require.NoError(t, err)
	return created
}

func newAuther(repo tours.RepositoryManager, clk *clock, cfg testConfig) *tours.Auther {
	provider := tours.NewUserProvider(repo.Users()).WithHasher(testHasher)
	ts := tours.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), testLogger{}).
		WithClock(clk.Now)
	return tours.NewAuthenticator(provider, cfg).
		WithLogger(testLogger{}).
		WithTokenService(ts)
}
