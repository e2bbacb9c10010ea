package principal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, token string) *httptest.Server {
	t.Helper()
	pages := map[string][]map[string]any{
		"1": {{"full_path": "team-a"}, {"full_path": "team-b"}},
		"2": {{"full_path": "ns4kafka-admins"}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"username": "alice"})
	})
	mux.HandleFunc("/api/v4/groups", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "1" {
			w.Header().Set("X-Next-Page", "2")
		}
		_ = json.NewEncoder(w).Encode(pages[page])
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthResolver_PagesThroughGroups(t *testing.T) {
	srv := newProvider(t, "good-token")
	r := NewOAuthResolver(OAuthConfig{BaseURL: srv.URL + "/api/v4/"}, srv.Client())

	id, err := r.Resolve(context.Background(), Credentials{Token: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, []string{"team-a", "team-b", "ns4kafka-admins"}, id.Groups)
}

func TestOAuthResolver_Failures(t *testing.T) {
	srv := newProvider(t, "good-token")
	r := NewOAuthResolver(OAuthConfig{BaseURL: srv.URL + "/api/v4"}, srv.Client())
	ctx := context.Background()

	_, err := r.Resolve(ctx, Credentials{Token: "bad-token"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = r.Resolve(ctx, Credentials{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrNotApplicable)

	unconfigured := NewOAuthResolver(OAuthConfig{}, nil)
	_, err = unconfigured.Resolve(ctx, Credentials{Token: "good-token"})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestOAuthResolver_MissingUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := NewOAuthResolver(OAuthConfig{BaseURL: srv.URL}, srv.Client())
	_, err := r.Resolve(context.Background(), Credentials{Token: "t"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestOAuthResolver_RefusesTruncatedGroups(t *testing.T) {
	srv := newProvider(t, "good-token")
	ctx := context.Background()

	limited := NewOAuthResolver(OAuthConfig{BaseURL: srv.URL + "/api/v4", MaxPages: 1}, srv.Client())
	_, err := limited.Resolve(ctx, Credentials{Token: "good-token"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	exact := NewOAuthResolver(OAuthConfig{BaseURL: srv.URL + "/api/v4", MaxPages: 2}, srv.Client())
	id, err := exact.Resolve(ctx, Credentials{Token: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, []string{"team-a", "team-b", "ns4kafka-admins"}, id.Groups)
}
