package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"famrecipes/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

// mailCapture stands in for the SMTP mailer and records the last reset email.
type mailCapture struct {
	to, username, callback, token string
	fail                          bool
}

func (m *mailCapture) SendPasswordReset(to, username, callback, token string) error {
	if m.fail {
		return fmt.Errorf("smtp unavailable")
	}
	m.to, m.username, m.callback, m.token = to, username, callback, token
	return nil
}

func newTestApp(t *testing.T) (*gin.Engine, *app, *mailCapture, *fakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	migrate(db)
	require.NoError(t, seedLabels(db, "static/labels.json"))

	cfg := &Config{
		SecretKey:          "integration-secret",
		RegisterKey:        "family-key",
		AccessTokenMinutes: 15,
		RefreshTokenDays:   7,
		ResetTokenMinutes:  10,
		Testing:            true,
		UploadBase:         t.TempDir(),
		MaxContentLength:   8 << 20,
	}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mail := &mailCapture{}
	a := &app{
		db:    db,
		cfg:   cfg,
		clock: clock,
		auth:  auth.NewService(db, cfg.authConfig(), clock),
		mail:  mail,
	}
	r := gin.New()
	setupRoutes(r, a)
	return r, a, mail, clock
}

// performRequest runs one request with an optional bearer token.
func performRequest(r http.Handler, method, path string, body io.Reader, token, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func registerUserReq(t *testing.T, r http.Handler, username, email, password, key string) *httptest.ResponseRecorder {
	t.Helper()
	body := jsonBody(t, map[string]string{
		"username":     username,
		"email":        email,
		"password":     password,
		"register_key": key,
	})
	return performRequest(r, http.MethodPost, "/api/register_user", body, "", "application/json")
}

// loginReq authenticates with HTTP Basic; mobile requests both secrets in
// the body instead of the refresh cookie.
func loginReq(r http.Handler, username, password string, mobile bool) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/api/tokens", nil)
	req.SetBasicAuth(username, password)
	if mobile {
		req.Header.Set("X-Is-Mobile", "true")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	r, _, _, _ := newTestApp(t)

	resp := registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = loginReq(r, "alice", "pw1", false)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	out := decodeJSON(t, resp)
	access, _ := out["access_token"].(string)
	require.NotEmpty(t, access)
	assert.Nil(t, out["refresh_token"])

	data, ok := out["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
	assert.NotContains(t, data, "email")
	assert.NotContains(t, data, "password")

	var refreshCookie *http.Cookie
	for _, c := range resp.Result().Cookies() {
		if c.Name == "refresh_token" {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie)
	assert.Equal(t, "/api/tokens", refreshCookie.Path)
	assert.True(t, refreshCookie.HttpOnly)
	assert.True(t, refreshCookie.Secure)
	assert.NotEmpty(t, refreshCookie.Value)

	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, access, "")
	require.Equal(t, http.StatusOK, resp.Code)
	me := decodeJSON(t, resp)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, me, "email")
	assert.NotContains(t, me, "password")

	resp = performRequest(r, http.MethodDelete, "/api/tokens", nil, access, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, access, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegisterValidation(t *testing.T) {
	r, a, _, _ := newTestApp(t)

	resp := registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")
	require.Equal(t, http.StatusNoContent, resp.Code)

	// wrong deployment key
	resp = registerUserReq(t, r, "bob", "bob@x.com", "pw2", "wrong-key")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// duplicate username
	resp = registerUserReq(t, r, "alice", "other@x.com", "pw2", "family-key")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// duplicate email
	resp = registerUserReq(t, r, "alice2", "alice@x.com", "pw2", "family-key")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// missing field
	body := jsonBody(t, map[string]string{"username": "carol", "password": "pw3", "register_key": "family-key"})
	resp = performRequest(r, http.MethodPost, "/api/register_user", body, "", "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var n int64
	require.NoError(t, a.db.Table("users").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestForgedBearerToken(t *testing.T) {
	r, _, _, _ := newTestApp(t)
	registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")
	resp := loginReq(r, "alice", "pw1", true)
	require.Equal(t, http.StatusOK, resp.Code)
	access := decodeJSON(t, resp)["access_token"].(string)

	forged := make([]byte, len(access))
	for i := range forged {
		forged[i] = 'A'
	}
	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, string(forged), "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestWrongPasswordLogin(t *testing.T) {
	r, _, _, _ := newTestApp(t)
	registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")

	resp := loginReq(r, "alice", "nope", false)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Form", resp.Header().Get("WWW-Authenticate"))

	req, _ := http.NewRequest(http.MethodPost, "/api/tokens", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func refreshReq(r http.Handler, accessToken, refreshToken string) *httptest.ResponseRecorder {
	body := bytes.NewBufferString(fmt.Sprintf(`{"access_token":%q}`, accessToken))
	req, _ := http.NewRequest(http.MethodPut, "/api/tokens", body)
	req.Header.Set("Content-Type", "application/json")
	if refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRefreshRotationFlow(t *testing.T) {
	r, _, _, _ := newTestApp(t)
	registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")

	resp := loginReq(r, "alice", "pw1", true)
	require.Equal(t, http.StatusOK, resp.Code)
	out := decodeJSON(t, resp)
	access := out["access_token"].(string)
	refresh := out["refresh_token"].(string)
	require.NotEmpty(t, refresh)

	// missing cookie
	resp = refreshReq(r, access, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// rotation
	req, _ := http.NewRequest(http.MethodPut, "/api/tokens", jsonBody(t, map[string]string{"access_token": access}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Is-Mobile", "true")
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decodeJSON(t, rec)
	newAccess := rotated["access_token"].(string)
	newRefresh := rotated["refresh_token"].(string)
	assert.NotEqual(t, access, newAccess)

	// the rotated-out access token is dead, the new one works
	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, access, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, newAccess, "")
	assert.Equal(t, http.StatusOK, resp.Code)

	// replaying the consumed pair revokes everything, including the new pair
	resp = refreshReq(r, access, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = performRequest(r, http.MethodGet, "/api/current_user", nil, newAccess, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = refreshReq(r, newAccess, newRefresh)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	r, _, mail, clock := newTestApp(t)
	registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")

	// unknown email never gets a token
	body := jsonBody(t, map[string]string{"email": "ghost@x.com", "callback": "https://app.example/reset"})
	resp := performRequest(r, http.MethodPost, "/api/tokens/reset_password_token", body, "", "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	body = jsonBody(t, map[string]string{"email": "alice@x.com", "callback": "https://app.example/reset"})
	resp = performRequest(r, http.MethodPost, "/api/tokens/reset_password_token", body, "", "application/json")
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())
	require.NotEmpty(t, mail.token)
	assert.Equal(t, "alice@x.com", mail.to)
	assert.Equal(t, "alice", mail.username)

	// expired token is rejected
	expired := mail.token
	clock.advance(11 * time.Minute)
	body = jsonBody(t, map[string]string{"token": expired, "new_password": "pw2"})
	resp = performRequest(r, http.MethodPost, "/api/tokens/reset_password", body, "", "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// fresh token applies the new password
	body = jsonBody(t, map[string]string{"email": "alice@x.com", "callback": "https://app.example/reset"})
	resp = performRequest(r, http.MethodPost, "/api/tokens/reset_password_token", body, "", "application/json")
	require.Equal(t, http.StatusNoContent, resp.Code)

	body = jsonBody(t, map[string]string{"token": mail.token, "new_password": "pw2"})
	resp = performRequest(r, http.MethodPost, "/api/tokens/reset_password", body, "", "application/json")
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	assert.Equal(t, http.StatusUnauthorized, loginReq(r, "alice", "pw1", false).Code)
	assert.Equal(t, http.StatusOK, loginReq(r, "alice", "pw2", false).Code)
}

func TestPasswordResetMailFailure(t *testing.T) {
	r, _, mail, _ := newTestApp(t)
	registerUserReq(t, r, "alice", "alice@x.com", "pw1", "family-key")

	mail.fail = true
	body := jsonBody(t, map[string]string{"email": "alice@x.com", "callback": "https://app.example/reset"})
	resp := performRequest(r, http.MethodPost, "/api/tokens/reset_password_token", body, "", "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
