package principal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureHandler(got *Principal, seen *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	resolver := NewLocalResolver([]LocalUser{
		{Username: "admin", PasswordDigest: SaltedDigest("", "admin"), Groups: []string{"ns4kafka-admins"}},
	})
	roles := NewRoleComputer("ns4kafka-admins")

	t.Run("valid basic credentials", func(t *testing.T) {
		var p Principal
		var seen bool
		h := Authenticate(resolver, roles, nil)(captureHandler(&p, &seen))

		req := httptest.NewRequest(http.MethodGet, "/api/namespaces", nil)
		req.SetBasicAuth("admin", "admin")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.True(t, seen)
		assert.Equal(t, "admin", p.Username())
		assert.True(t, p.IsAdmin())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		var p Principal
		var seen bool
		h := Authenticate(resolver, roles, nil)(captureHandler(&p, &seen))

		req := httptest.NewRequest(http.MethodGet, "/api/namespaces", nil)
		req.SetBasicAuth("admin", "nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, seen)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "unauthorized", body["error"])
	})

	t.Run("no credentials stays anonymous", func(t *testing.T) {
		var p Principal
		var seen bool
		h := Authenticate(resolver, roles, nil)(captureHandler(&p, &seen))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, seen)
	})
}

func TestTrustedHeaders(t *testing.T) {
	roles := NewRoleComputer("ns4kafka-admins")

	var p Principal
	var seen bool
	h := TrustedHeaders(roles)(captureHandler(&p, &seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Remote-User", "alice")
	req.Header.Set("X-Remote-Group", "team-a, ns4kafka-admins,,")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, seen)
	assert.Equal(t, "alice", p.Username())
	assert.Equal(t, []string{"ns4kafka-admins", "team-a"}, p.Groups())
	assert.True(t, p.IsAdmin())

	seen = false
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, seen)
}
