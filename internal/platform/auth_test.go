package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	logins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"gcipApiKey": "test-key"})
	})
	mux.HandleFunc("/v1/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
		logins++
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body["email"])
		assert.Equal(t, "tenant-x", body["tenantId"])
		json.NewEncoder(w).Encode(map[string]string{
			"idToken":      "id-token-1",
			"refreshToken": "refresh-1",
			"email":        "user@example.com",
		})
	})
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"csrf": "csrf-abc"})
	})
	return httptest.NewServer(mux), &logins
}

func newTestAuth(t *testing.T, srv *httptest.Server, sessionFile string) *Auth {
	t.Helper()
	a, err := NewAuth(Config{
		Email:       "user@example.com",
		Password:    "secret",
		LoginURL:    srv.URL,
		AppURL:      srv.URL,
		TenantID:    "tenant-x",
		SessionFile: sessionFile,
	}, testLogger())
	require.NoError(t, err)
	a.identityURL = srv.URL + "/v1/accounts:signInWithPassword"
	return a
}

func TestEnsureAuthenticatedFullFlow(t *testing.T) {
	srv, logins := newLoginServer(t)
	defer srv.Close()

	a := newTestAuth(t, srv, "")
	require.NoError(t, a.EnsureAuthenticated(context.Background()))

	assert.Equal(t, 1, *logins)
	assert.Equal(t, "id-token-1", a.IDToken())
	require.NotNil(t, a.session)
	assert.Equal(t, "csrf-abc", a.session.CSRFToken)
	assert.True(t, a.session.ExpiresAt.After(time.Now()))

	// Second call reuses the live session.
	require.NoError(t, a.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, *logins)
}

func TestEnsureAuthenticatedUsesSessionFile(t *testing.T) {
	srv, logins := newLoginServer(t)
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "session.json")
	a := newTestAuth(t, srv, file)
	require.NoError(t, a.EnsureAuthenticated(context.Background()))
	require.Equal(t, 1, *logins)

	_, err := os.Stat(file)
	require.NoError(t, err)

	// A fresh Auth picks the cached session up without logging in.
	b := newTestAuth(t, srv, file)
	require.NoError(t, b.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, *logins)
	assert.Equal(t, "id-token-1", b.IDToken())
}

func TestEnsureAuthenticatedIgnoresExpiredSessionFile(t *testing.T) {
	srv, logins := newLoginServer(t)
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "session.json")
	stale := session{
		IDToken:   "stale",
		CSRFToken: "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	data, _ := json.Marshal(stale)
	require.NoError(t, os.WriteFile(file, data, 0o600))

	a := newTestAuth(t, srv, file)
	require.NoError(t, a.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, *logins)
	assert.Equal(t, "id-token-1", a.IDToken())
}

func TestDoSendsCSRFHeaders(t *testing.T) {
	var gotCSRF string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"gcipApiKey": "k"})
	})
	mux.HandleFunc("/v1/accounts:signInWithPassword", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"idToken": "tok", "refreshToken": "r", "email": "e"})
	})
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"csrf": "csrf-1"})
	})
	mux.HandleFunc("/api/agent/test", func(w http.ResponseWriter, r *http.Request) {
		gotCSRF = r.Header.Get("X-CSRF-Token")
		w.Write([]byte(`{"ok": true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newTestAuth(t, srv, "")
	raw, err := a.Do(context.Background(), "POST", srv.URL+"/api/agent/test", map[string]string{"x": "y"}, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(raw))
	assert.Equal(t, "csrf-1", gotCSRF)
}
