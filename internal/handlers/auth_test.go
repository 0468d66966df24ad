// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/config"
	"codeberg.org/oliverandrich/authkit/internal/handlers"
	"codeberg.org/oliverandrich/authkit/internal/i18n"
	"codeberg.org/oliverandrich/authkit/internal/models"
	"codeberg.org/oliverandrich/authkit/internal/repository"
	"codeberg.org/oliverandrich/authkit/internal/services/auth"
	"codeberg.org/oliverandrich/authkit/internal/services/onboarding"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"codeberg.org/oliverandrich/authkit/internal/services/token"
	"codeberg.org/oliverandrich/authkit/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Str0ng-Password"

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// stubMailer records sent tokens and can be told to fail.
type stubMailer struct {
	tokens []string
	err    error
}

func (m *stubMailer) SendVerification(_ context.Context, _ *models.User, rawToken string) error {
	if m.err != nil {
		return m.err
	}
	m.tokens = append(m.tokens, rawToken)
	return nil
}

type testApp struct {
	e      *echo.Echo
	h      *handlers.Handlers
	repo   *repository.Repository
	auth   *auth.Service
	mailer *stubMailer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	cfg := &config.AuthConfig{
		EmailTokenSecret: "email-secret",
		EmailTokenExpiry: 15 * time.Minute,
		SessionSecret:    "session-secret",
		SessionExpiry:    15 * time.Minute,
		RefreshSecret:    "refresh-secret",
		RefreshExpiry:    7 * 24 * time.Hour,
	}

	hasher := password.NewHasher(password.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	codec := token.NewCodec(nil)
	tokens := token.NewService(codec, token.NewLedger(repo), nil)
	authService := auth.NewService(repo, hasher, codec, cfg)
	mailer := &stubMailer{}
	orch := onboarding.New(repo, tokens, mailer, hasher, cfg, nil)

	e := echo.New()
	e.Validator = handlers.NewValidator()

	return &testApp{
		e:      e,
		h:      handlers.New(orch, authService),
		repo:   repo,
		auth:   authService,
		mailer: mailer,
	}
}

func (a *testApp) register(t *testing.T) map[string]any {
	t.Helper()
	body := `{"email":"alice@example.com","password":"` + testPassword + `","username":"alice","display_name":"Alice"}`
	c, rec := testutil.NewEchoContext(a.e, http.MethodPost, "/auth/register", strings.NewReader(body))
	require.NoError(t, a.h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody(t, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegister(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t)

	assert.NotEmpty(t, body["userId"])
	assert.Equal(t, true, body["emailVerificationRequired"])
	assert.Len(t, app.mailer.tokens, 1)
}

func TestRegister_DuplicateConflict(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	body := `{"email":"alice@example.com","password":"` + testPassword + `","username":"alice","display_name":"Alice"}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/register", strings.NewReader(body))
	require.NoError(t, app.h.Register(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "REGISTRATION_FAILED", got["error"])
	assert.Equal(t, "DUPLICATE_USER", got["errorCode"])
}

func TestRegister_InvalidEmail(t *testing.T) {
	app := newTestApp(t)

	body := `{"email":"not-an-email","password":"` + testPassword + `","username":"alice","display_name":"Alice"}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/register", strings.NewReader(body))
	require.NoError(t, app.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "INVALID_EMAIL", got["errorCode"])
	assert.Equal(t, "email", got["field"])
}

func TestRegister_WeakPassword(t *testing.T) {
	app := newTestApp(t)

	body := `{"email":"alice@example.com","password":"weakpassword","username":"alice","display_name":"Alice"}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/register", strings.NewReader(body))
	require.NoError(t, app.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "INVALID_PASSWORD", got["errorCode"])
	assert.Equal(t, "password", got["field"])
}

func TestRegister_MissingFields(t *testing.T) {
	app := newTestApp(t)

	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/register", strings.NewReader(`{}`))
	require.NoError(t, app.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "REGISTRATION_FAILED", got["error"])
}

func TestRegister_MailFailureStillCreated(t *testing.T) {
	app := newTestApp(t)
	app.mailer.err = assert.AnError

	body := app.register(t)

	assert.NotEmpty(t, body["userId"])

	_, err := app.repo.GetUserByUsername(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestVerify(t *testing.T) {
	app := newTestApp(t)
	app.register(t)
	require.Len(t, app.mailer.tokens, 1)

	c, rec := testutil.NewEchoContext(app.e, http.MethodGet, "/auth/verify?token="+app.mailer.tokens[0], nil)
	require.NoError(t, app.h.Verify(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	user, err := app.repo.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, user.Verified)
}

func TestVerify_ReuseRejected(t *testing.T) {
	app := newTestApp(t)
	app.register(t)
	raw := app.mailer.tokens[0]

	c, rec := testutil.NewEchoContext(app.e, http.MethodGet, "/auth/verify?token="+raw, nil)
	require.NoError(t, app.h.Verify(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = testutil.NewEchoContext(app.e, http.MethodGet, "/auth/verify?token="+raw, nil)
	require.NoError(t, app.h.Verify(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_MissingToken(t *testing.T) {
	app := newTestApp(t)

	c, rec := testutil.NewEchoContext(app.e, http.MethodGet, "/auth/verify", nil)
	require.NoError(t, app.h.Verify(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_GarbageToken(t *testing.T) {
	app := newTestApp(t)

	c, rec := testutil.NewEchoContext(app.e, http.MethodGet, "/auth/verify?token=garbage", nil)
	require.NoError(t, app.h.Verify(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendVerification_AlwaysAccepted(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	// Known and unknown identifiers get the same acknowledgment.
	for _, identifier := range []string{"alice", "nobody@example.com"} {
		c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/resend",
			strings.NewReader(`{"identifier":"`+identifier+`"}`))
		require.NoError(t, app.h.ResendVerification(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}

	// Only the known account got a new token.
	assert.Len(t, app.mailer.tokens, 2)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	body := `{"identifier":"alice","password":"` + testPassword + `"}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/login", strings.NewReader(body))
	require.NoError(t, app.h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.NotEmpty(t, got["sessionToken"])
	assert.EqualValues(t, 900, got["expiresIn"])
	assert.NotContains(t, got, "refreshToken")
}

func TestLogin_RememberMe(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	body := `{"identifier":"alice@example.com","password":"` + testPassword + `","remember_me":true}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/login", strings.NewReader(body))
	require.NoError(t, app.h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.NotEmpty(t, got["refreshToken"])
	assert.EqualValues(t, 7*24*3600, got["refreshTokenExpiresIn"])
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	body := `{"identifier":"alice","password":"Wrong-Password-1"}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/login", strings.NewReader(body))
	require.NoError(t, app.h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownUser(t *testing.T) {
	app := newTestApp(t)

	body := `{"identifier":"nobody","password":"` + testPassword + `"}`
	c, rec := testutil.NewEchoContext(app.e, http.MethodPost, "/auth/login", strings.NewReader(body))
	require.NoError(t, app.h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_WithSession(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	result, err := app.auth.Login(context.Background(), "alice", testPassword, false)
	require.NoError(t, err)

	c, rec := testutil.NewEchoContextWithHeaders(app.e, http.MethodGet, "/auth/me", nil, map[string]string{
		echo.HeaderAuthorization: "Bearer " + result.SessionToken,
	})
	mw := handlers.RequireSession(app.auth)
	require.NoError(t, mw(app.h.Me)(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "alice", got["username"])
	assert.NotContains(t, rec.Body.String(), "password_hash")
}

func TestMe_NoToken(t *testing.T) {
	app := newTestApp(t)

	c, rec := testutil.NewEchoContext(app.e, http.MethodGet, "/auth/me", nil)
	mw := handlers.RequireSession(app.auth)
	require.NoError(t, mw(app.h.Me)(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_BadToken(t *testing.T) {
	app := newTestApp(t)

	c, rec := testutil.NewEchoContextWithHeaders(app.e, http.MethodGet, "/auth/me", nil, map[string]string{
		echo.HeaderAuthorization: "Bearer garbage",
	})
	mw := handlers.RequireSession(app.auth)
	require.NoError(t, mw(app.h.Me)(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	c, rec := testutil.NewEchoContext(app.e, http.MethodGet, "/health", nil)
	require.NoError(t, app.h.Health(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
