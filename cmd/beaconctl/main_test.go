package main

import (
	"bytes"
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

const testToken = "tok-123"

func newForumServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "Invalid credentials", "code": "INVALID_CREDENTIALS"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      testToken,
			"expires_at": time.Now().Add(time.Hour),
			"user":       map[string]any{"id": 4, "username": body["username"], "role": "member"},
		})
	})
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 4, "username": "quinn", "role": "member"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestRun_LoginWhoamiLogout(t *testing.T) {
	srv := newForumServer(t)
	file := filepath.Join(t.TempDir(), "beacon", "session.yaml")
	ctx := context.Background()
	flags := []string{"-server", srv.URL, "-session", file}

	var out bytes.Buffer
	err := run(ctx, append(flags, "login", "quinn"), env(map[string]string{passwordEnv: "hunter2"}), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "logged in as quinn (member)")
	assert.FileExists(t, file)

	// a second invocation picks the session up from disk
	out.Reset()
	require.NoError(t, run(ctx, append(flags, "whoami"), env(nil), &out))
	assert.Contains(t, out.String(), "quinn id=4 role=member source=authoritative")

	out.Reset()
	require.NoError(t, run(ctx, append(flags, "logout"), env(nil), &out))
	_, statErr := os.Stat(file)
	assert.True(t, os.IsNotExist(statErr))

	err = run(ctx, append(flags, "whoami"), env(nil), &out)
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestRun_Errors(t *testing.T) {
	srv := newForumServer(t)
	file := filepath.Join(t.TempDir(), "session.yaml")
	ctx := context.Background()
	flags := []string{"-server", srv.URL, "-session", file}
	var out bytes.Buffer

	assert.Error(t, run(ctx, flags, env(nil), &out), "no command")
	assert.Error(t, run(ctx, append(flags, "login"), env(nil), &out), "no username")
	assert.Error(t, run(ctx, append(flags, "login", "quinn"), env(nil), &out), "no password")
	assert.Error(t, run(ctx, append(flags, "login", "quinn"), env(map[string]string{passwordEnv: "wrong"}), &out))
	assert.Error(t, run(ctx, append(flags, "dance"), env(nil), &out))
	assert.NoFileExists(t, file)
}
