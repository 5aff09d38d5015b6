package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkasar/healthdash-be/internal/auth"
	"github.com/gkasar/healthdash-be/internal/database"
	"github.com/gkasar/healthdash-be/internal/models"
	"github.com/gkasar/healthdash-be/internal/services"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.New("file::memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	svc := services.NewIdentityService(db, 24*time.Hour)
	srv := httptest.NewServer(NewRouter(svc, 24*time.Hour))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func register(t *testing.T, srv *httptest.Server, username, email, password string) *http.Response {
	t.Helper()
	return postJSON(t, srv.URL+"/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

func login(t *testing.T, srv *httptest.Server, identifier, password string) *http.Response {
	t.Helper()
	return postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
}

func loginToken(t *testing.T, srv *httptest.Server, identifier, password string) string {
	t.Helper()
	resp := login(t, srv, identifier, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string          `json:"token"`
		User  models.Identity `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func doAuthed(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRegisterEndpoint(t *testing.T) {
	srv := setupServer(t)

	resp := register(t, srv, "alice", "a@x.com", "pw1")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var user models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)

	// Same username again is a conflict.
	resp = register(t, srv, "alice", "b@x.com", "pw2")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Missing fields are rejected outright.
	resp = register(t, srv, "", "c@x.com", "pw3")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	srv := setupServer(t)
	register(t, srv, "alice", "a@x.com", "pw1")

	resp := login(t, srv, "alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, srv, "nobody", "pw1")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, srv, "a@x.com", "pw1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "login must set the session cookie")
	assert.True(t, sessionCookie.HttpOnly)
}

func TestMeEndpoint_BearerAndCookie(t *testing.T) {
	srv := setupServer(t)
	register(t, srv, "alice", "a@x.com", "pw1")
	token := loginToken(t, srv, "alice", "pw1")

	resp := doAuthed(t, srv, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var identity models.Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&identity))
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "a@x.com", identity.Email)

	// Cookie transport works too.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	cookieResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer cookieResp.Body.Close()
	assert.Equal(t, http.StatusOK, cookieResp.StatusCode)

	// No token at all.
	noneResp, err := http.Get(srv.URL + "/api/v1/auth/me")
	require.NoError(t, err)
	defer noneResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, noneResp.StatusCode)
}

func TestLogoutEndpoint(t *testing.T) {
	srv := setupServer(t)
	register(t, srv, "alice", "a@x.com", "pw1")
	token := loginToken(t, srv, "alice", "pw1")

	resp := doAuthed(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doAuthed(t, srv, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logging out the same token again still succeeds.
	resp = doAuthed(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAccountEndpoints(t *testing.T) {
	srv := setupServer(t)
	register(t, srv, "alice", "a@x.com", "pw1")
	register(t, srv, "bob", "b@x.com", "pw2")
	token := loginToken(t, srv, "alice", "pw1")

	// Email change to a taken address conflicts.
	resp := doAuthed(t, srv, http.MethodPut, "/api/v1/account/email", token, map[string]string{"email": "b@x.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doAuthed(t, srv, http.MethodPut, "/api/v1/account/email", token, map[string]string{"email": "alice@x.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doAuthed(t, srv, http.MethodPut, "/api/v1/account/password", token, map[string]string{"newPassword": "pw9"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password no longer works, new one does, against the new email.
	assert.Equal(t, http.StatusUnauthorized, login(t, srv, "alice@x.com", "pw1").StatusCode)
	loginToken(t, srv, "alice@x.com", "pw9")

	// Deleting the account revokes its sessions and frees the identifier.
	resp = doAuthed(t, srv, http.MethodDelete, "/api/v1/account/", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doAuthed(t, srv, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusUnauthorized, login(t, srv, "alice", "pw9").StatusCode)
	assert.Equal(t, http.StatusCreated, register(t, srv, "alice", "alice2@x.com", "pw1").StatusCode)
}
