package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/config"
	"github.com/goliatone/go-tours/payments"
	"github.com/goliatone/go-tours/storage"
	"github.com/goliatone/go-tours/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const webhookSignature = "sig_test"

type recordingNotifier struct {
	mu       sync.Mutex
	welcomes []string
	resets   []string
	err      error
}

func (n *recordingNotifier) SendWelcome(_ context.Context, user *tours.User, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, user.Email)
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ *tours.User, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets = append(n.resets, resetURL)
	return nil
}

func (n *recordingNotifier) lastResetToken(t *testing.T) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets, "no reset email sent")
	last := n.resets[len(n.resets)-1]
	return last[strings.LastIndex(last, "/")+1:]
}

type harness struct {
	app      *fiber.App
	repo     tours.RepositoryManager
	hasher   tours.PasswordHasher
	notifier *recordingNotifier
	checkout *payments.Fake
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenAndMigrate(ctx, storage.Options{Driver: storage.DriverSQLite, DSN: storage.MemoryDSN})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Env: config.EnvDevelopment,
		JWT: config.JWT{
			Secret:          "test-secret-test-secret-test-secret",
			ExpiresIn:       time.Hour,
			CookieExpiresIn: 1,
			Issuer:          "test",
		},
	}

	repo := tours.NewRepositoryManager(db)
	hasher := tours.BcryptHasher{Cost: bcrypt.MinCost}
	provider := tours.NewUserProvider(repo.Users()).WithHasher(hasher)
	auther := tours.NewAuthenticator(provider, cfg)

	h := &harness{
		repo:     repo,
		hasher:   hasher,
		notifier: &recordingNotifier{},
		checkout: &payments.Fake{Signature: webhookSignature},
	}

	h.app = web.NewApp(web.Deps{
		Config:    cfg,
		Repo:      repo,
		Auth:      auther,
		Notifier:  h.notifier,
		Checkout:  h.checkout,
		Hasher:    hasher,
		PublicURL: "http://tours.test",
		RateLimit: -1,
	})
	return h
}

type result struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (h *harness) do(t *testing.T, method, path string, payload any, token string, headers ...string) result {
	t.Helper()

	var body io.Reader
	switch p := payload.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(p)
	default:
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func (h *harness) signup(t *testing.T, name, email string) string {
	t.Helper()
	res := h.do(t, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"name":            name,
		"email":           email,
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
	}, "")
	require.Equal(t, http.StatusCreated, res.status, res.body)
	return res.body["token"].(string)
}

func (h *harness) createUser(t *testing.T, email string, role tours.UserRole) string {
	t.Helper()
	hash, err := h.hasher.HashPassword("pass1234")
	require.NoError(t, err)
	_, err = h.repo.Users().Register(context.Background(), &tours.User{
		Name:         "Staff Member",
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
	require.NoError(t, err)

	res := h.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"email":    email,
		"password": "pass1234",
	}, "")
	require.Equal(t, http.StatusOK, res.status, res.body)
	return res.body["token"].(string)
}

func (h *harness) createTour(t *testing.T, name string, price float64, rating float64) *tours.Tour {
	t.Helper()
	tour, err := h.repo.Tours().Create(context.Background(), &tours.Tour{
		Name:           name,
		Duration:       5,
		MaxGroupSize:   10,
		Difficulty:     tours.DifficultyEasy,
		Price:          price,
		RatingsAverage: rating,
		Summary:        "A tour",
		ImageCover:     "cover.jpg",
	})
	require.NoError(t, err)
	return tour
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignup(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"name":            "Jane Doe",
		"email":           "Jane@Example.com",
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
		"role":            "admin",
	}, "")

	require.Equal(t, http.StatusCreated, res.status, res.body)
	assert.Equal(t, "success", res.body["status"])
	assert.NotEmpty(t, res.body["token"])

	user := res.body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "jane@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	jwtCookie := cookieNamed(res.cookies, "jwt")
	require.NotNil(t, jwtCookie)
	assert.Equal(t, res.body["token"], jwtCookie.Value)
	assert.True(t, jwtCookie.HttpOnly)

	assert.Equal(t, []string{"jane@example.com"}, h.notifier.welcomes)
}

func TestSignup_PasswordMismatch(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"name":            "Jane Doe",
		"email":           "jane@example.com",
		"password":        "pass1234",
		"passwordConfirm": "pass12345",
	}, "")

	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "fail", res.body["status"])
}

func TestSignup_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "Jane Doe", "jane@example.com")

	res := h.do(t, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"name":            "Jane Again",
		"email":           "jane@example.com",
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
	}, "")

	assert.Equal(t, http.StatusConflict, res.status, res.body)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "Jane Doe", "jane@example.com")

	t.Run("success", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
			"email":    "jane@example.com",
			"password": "pass1234",
		}, "")
		assert.Equal(t, http.StatusOK, res.status)
		assert.NotEmpty(t, res.body["token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
			"email":    "jane@example.com",
			"password": "wrong-password",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "Incorrect email or password", res.body["message"])
	})

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
			"email":    "nobody@example.com",
			"password": "pass1234",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "Incorrect email or password", res.body["message"])
	})

	t.Run("missing fields", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{}, "")
		assert.Equal(t, http.StatusBadRequest, res.status)
	})
}

func TestProtect(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "Jane Doe", "jane@example.com")

	t.Run("no token", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/users/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("garbage token", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/users/me", nil, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("bearer token", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
		require.Equal(t, http.StatusOK, res.status)
		doc := res.body["data"].(map[string]any)["data"].(map[string]any)
		assert.Equal(t, "jane@example.com", doc["email"])
	})

	t.Run("cookie token", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/users/me", nil, "", fiber.HeaderCookie, "jwt="+token)
		assert.Equal(t, http.StatusOK, res.status)
	})

	t.Run("deactivated user", func(t *testing.T) {
		other := h.signup(t, "Gone User", "gone@example.com")
		res := h.do(t, http.MethodDelete, "/api/v1/users/deleteMe", nil, other)
		require.Equal(t, http.StatusNoContent, res.status)

		res = h.do(t, http.MethodGet, "/api/v1/users/me", nil, other)
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})
}

func TestRestrictTo(t *testing.T) {
	h := newHarness(t)
	userToken := h.signup(t, "Jane Doe", "jane@example.com")
	adminToken := h.createUser(t, "admin@example.com", tours.RoleAdmin)

	res := h.do(t, http.MethodGet, "/api/v1/users", nil, userToken)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "You do not have permission to perform this action", res.body["message"])

	res = h.do(t, http.MethodGet, "/api/v1/users", nil, adminToken)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 2, res.body["results"])

	res = h.do(t, http.MethodPost, "/api/v1/users", map[string]string{"name": "x"}, adminToken)
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.Equal(t, "This route is not defined! Please use /signup instead", res.body["message"])
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "Jane Doe", "jane@example.com")

	t.Run("unknown email", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]string{
			"email": "nobody@example.com",
		}, "")
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	res := h.do(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]string{
		"email": "jane@example.com",
	}, "")
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "Token sent to email!", res.body["message"])

	resetURL := h.notifier.resets[len(h.notifier.resets)-1]
	assert.True(t, strings.HasPrefix(resetURL, "http://tours.test"+tours.ResetPasswordPath), resetURL)
	token := h.notifier.lastResetToken(t)

	payload := map[string]string{"password": "newpass123", "passwordConfirm": "newpass123"}

	res = h.do(t, http.MethodPatch, "/api/v1/users/resetPassword/"+token, payload, "")
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.NotEmpty(t, res.body["token"])

	res = h.do(t, http.MethodPatch, "/api/v1/users/resetPassword/"+token, payload, "")
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Token is invalid or has expired", res.body["message"])

	res = h.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"email":    "jane@example.com",
		"password": "newpass123",
	}, "")
	assert.Equal(t, http.StatusOK, res.status)
}

func TestForgotPassword_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "Jane Doe", "jane@example.com")
	h.notifier.err = errors.New("smtp down")

	res := h.do(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]string{
		"email": "jane@example.com",
	}, "")
	assert.Equal(t, http.StatusInternalServerError, res.status)

	user, err := h.repo.Users().GetActiveByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Empty(t, user.PasswordResetToken)
	assert.Nil(t, user.PasswordResetExpires)
}

func TestUpdateMyPassword(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "Jane Doe", "jane@example.com")

	res := h.do(t, http.MethodPatch, "/api/v1/users/updateMyPassword", map[string]string{
		"passwordCurrent": "wrong-password",
		"password":        "newpass123",
		"passwordConfirm": "newpass123",
	}, token)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = h.do(t, http.MethodPatch, "/api/v1/users/updateMyPassword", map[string]string{
		"passwordCurrent": "pass1234",
		"password":        "newpass123",
		"passwordConfirm": "newpass123",
	}, token)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.NotEmpty(t, res.body["token"])
	assert.NotNil(t, cookieNamed(res.cookies, "jwt"))
}

func TestUpdateMe(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "Jane Doe", "jane@example.com")

	res := h.do(t, http.MethodPatch, "/api/v1/users/updateMe", map[string]string{
		"password": "sneaky123",
	}, token)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = h.do(t, http.MethodPatch, "/api/v1/users/updateMe", map[string]string{
		"name": "Jane Smith",
	}, token)
	require.Equal(t, http.StatusOK, res.status, res.body)
	doc := res.body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "Jane Smith", doc["name"])
}

func TestLogout(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodGet, "/api/v1/users/logout", nil, "")
	require.Equal(t, http.StatusOK, res.status)

	jwtCookie := cookieNamed(res.cookies, "jwt")
	require.NotNil(t, jwtCookie)
	assert.Equal(t, tours.LoggedOutCookieValue, jwtCookie.Value)

	res = h.do(t, http.MethodGet, "/", nil, "", fiber.HeaderCookie, "jwt="+tours.LoggedOutCookieValue)
	assert.Equal(t, http.StatusOK, res.status)
}

func TestTours(t *testing.T) {
	h := newHarness(t)
	h.createTour(t, "The Forest Hiker", 397, 4.7)
	h.createTour(t, "The Sea Explorer", 497, 4.8)
	h.createTour(t, "The Snow Adventurer", 997, 4.5)

	t.Run("list with filter and sort", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/tours?price[lt]=900&sort=-price", nil, "")
		require.Equal(t, http.StatusOK, res.status, res.body)
		assert.EqualValues(t, 2, res.body["results"])

		docs := res.body["data"].(map[string]any)["data"].([]any)
		assert.Equal(t, "The Sea Explorer", docs[0].(map[string]any)["name"])
	})

	t.Run("top 5 cheap alias", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/tours/top-5-cheap", nil, "")
		require.Equal(t, http.StatusOK, res.status, res.body)

		docs := res.body["data"].(map[string]any)["data"].([]any)
		require.Len(t, docs, 3)
		first := docs[0].(map[string]any)
		assert.Equal(t, "The Sea Explorer", first["name"])
		assert.NotEmpty(t, first["summary"])
	})

	t.Run("field projection", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/tours?sort=-ratingsAverage,price&limit=5&fields=name,price", nil, "")
		require.Equal(t, http.StatusOK, res.status, res.body)

		docs := res.body["data"].(map[string]any)["data"].([]any)
		require.Len(t, docs, 3)
		first := docs[0].(map[string]any)
		assert.Equal(t, "The Sea Explorer", first["name"])
		assert.EqualValues(t, 497, first["price"])
		for _, doc := range docs {
			keys := make([]string, 0)
			for key := range doc.(map[string]any) {
				keys = append(keys, key)
			}
			assert.ElementsMatch(t, []string{"id", "name", "price"}, keys)
		}
	})

	t.Run("field exclusion", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/tours?fields=-summary,-price", nil, "")
		require.Equal(t, http.StatusOK, res.status, res.body)

		doc := res.body["data"].(map[string]any)["data"].([]any)[0].(map[string]any)
		assert.NotContains(t, doc, "summary")
		assert.NotContains(t, doc, "price")
		assert.Contains(t, doc, "name")
		assert.Contains(t, doc, "id")
	})

	t.Run("invalid id", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/tours/not-an-id", nil, "")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Contains(t, res.body["message"], "Invalid")
	})

	t.Run("create requires a role", func(t *testing.T) {
		token := h.signup(t, "Jane Doe", "jane@example.com")
		res := h.do(t, http.MethodPost, "/api/v1/tours", map[string]any{"name": "Another Great Tour"}, token)
		assert.Equal(t, http.StatusForbidden, res.status)
	})

	t.Run("create as lead guide", func(t *testing.T) {
		token := h.createUser(t, "lead@example.com", tours.RoleLeadGuide)
		res := h.do(t, http.MethodPost, "/api/v1/tours", map[string]any{
			"name":         "The Park Camper Tour",
			"duration":     10,
			"maxGroupSize": 15,
			"difficulty":   "medium",
			"price":        1497,
			"summary":      "Breathing in nature",
			"imageCover":   "tour-5-cover.jpg",
		}, token)
		require.Equal(t, http.StatusCreated, res.status, res.body)
		doc := res.body["data"].(map[string]any)["data"].(map[string]any)
		assert.Equal(t, "the-park-camper-tour", doc["slug"])
	})
}

func TestReviews(t *testing.T) {
	h := newHarness(t)
	tour := h.createTour(t, "The Forest Hiker", 397, 4.5)
	token := h.signup(t, "Jane Doe", "jane@example.com")

	path := "/api/v1/tours/" + tour.ID.String() + "/reviews"
	res := h.do(t, http.MethodPost, path, map[string]any{"review": "Loved it", "rating": 4}, token)
	require.Equal(t, http.StatusCreated, res.status, res.body)

	res = h.do(t, http.MethodPost, path, map[string]any{"review": "Again", "rating": 5}, token)
	assert.Equal(t, http.StatusConflict, res.status)

	updated, err := h.repo.Tours().GetByID(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.RatingsQuantity)
	assert.InDelta(t, 4.0, updated.RatingsAverage, 0.001)

	res = h.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = h.do(t, http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 1, res.body["results"])
}

func TestWebhookCheckout(t *testing.T) {
	h := newHarness(t)
	tour := h.createTour(t, "The Forest Hiker", 397, 4.5)
	h.signup(t, "Jane Doe", "jane@example.com")

	payload, err := json.Marshal(payments.Completed{
		SessionID:     "cs_test_1",
		TourID:        tour.ID,
		CustomerEmail: "jane@example.com",
		Amount:        397,
	})
	require.NoError(t, err)

	res := h.do(t, http.MethodPost, "/api/v1/bookings/webhook-checkout", payload, "", web.StripeSignatureHeader, "bad")
	assert.Equal(t, http.StatusBadRequest, res.status)

	for range 2 {
		res = h.do(t, http.MethodPost, "/api/v1/bookings/webhook-checkout", payload, "", web.StripeSignatureHeader, webhookSignature)
		require.Equal(t, http.StatusOK, res.status, res.body)
		assert.Equal(t, true, res.body["received"])
	}

	user, err := h.repo.Users().GetActiveByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	bookings, err := h.repo.Bookings().ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.True(t, bookings[0].Paid)
	assert.Equal(t, 397.0, bookings[0].Price)
}

func TestCheckoutSession(t *testing.T) {
	h := newHarness(t)
	tour := h.createTour(t, "The Forest Hiker", 397, 4.5)
	token := h.signup(t, "Jane Doe", "jane@example.com")

	res := h.do(t, http.MethodGet, "/api/v1/bookings/checkout-session/"+tour.ID.String(), nil, token)
	require.Equal(t, http.StatusOK, res.status, res.body)

	require.Len(t, h.checkout.Requests, 1)
	req := h.checkout.Requests[0]
	assert.Equal(t, "jane@example.com", req.User.Email)
	assert.Equal(t, "http://tours.test/my-tours?alert=booking", req.SuccessURL)
	assert.Equal(t, "http://tours.test/tour/the-forest-hiker", req.CancelURL)
}

func TestNotFound(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodGet, "/api/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "fail", res.body["status"])
	assert.Contains(t, res.body["message"], "/api/v1/nothing-here")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodGet, "/api/v1/health", nil, "")
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "success", res.body["status"])
	assert.Equal(t, map[string]any{"database": "up"}, res.body["data"])

	require.NoError(t, h.repo.DB().Close())
	res = h.do(t, http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
}

func TestViews(t *testing.T) {
	h := newHarness(t)
	h.createTour(t, "The Forest Hiker", 397, 4.5)

	res := h.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, res.status)

	res = h.do(t, http.MethodGet, "/tour/the-forest-hiker", nil, "")
	assert.Equal(t, http.StatusOK, res.status)

	res = h.do(t, http.MethodGet, "/tour/missing-tour", nil, "")
	assert.Equal(t, http.StatusNotFound, res.status)

	res = h.do(t, http.MethodGet, "/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestViews_SubmitUserData(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "Jane Doe", "jane@example.com")

	form := []byte("name=Jane+Smith&email=jane.smith%40example.com")
	res := h.do(t, http.MethodPost, "/submit-user-data", form, token,
		fiber.HeaderContentType, fiber.MIMEApplicationForm)
	require.Equal(t, http.StatusOK, res.status)

	user, err := h.repo.Users().GetActiveByEmail(context.Background(), "jane.smith@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", user.Name)

	res = h.do(t, http.MethodPost, "/submit-user-data", []byte("name=Nobody"), "",
		fiber.HeaderContentType, fiber.MIMEApplicationForm)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = h.do(t, http.MethodPost, "/submit-user-data", []byte("email=not-an-email"), token,
		fiber.HeaderContentType, fiber.MIMEApplicationForm)
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestErrorHandler_Production(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: web.ErrorHandler(tours.NewSlogLogger(nil), true),
	})
	app.Get("/api/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: connection refused to 10.0.0.3")
	})
	app.Get("/api/gone", func(c *fiber.Ctx) error {
		return tours.ErrUserGone
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, web.GenericErrorMessage, body["message"])
	assert.NotContains(t, body, "stack")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/gone", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "fail", body["status"])
	assert.NotEqual(t, web.GenericErrorMessage, body["message"])
}
