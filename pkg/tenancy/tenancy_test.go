package tenancy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/michelin/ns4kafka-go/pkg/principal"
)

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"team-a", false},
		{"a", false},
		{"a1-b2", false},
		{"Team-A", true},
		{"-team", true},
		{"team-", true},
		{"team_a", true},
		{"team.a", true},
		{"", true},
		{strings.Repeat("a", MaxNamespaceLength), false},
		{strings.Repeat("a", MaxNamespaceLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamespace(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNamespace(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	var got Tenant
	var seen bool
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Test-User") != "" {
				p := principal.New(req.Header.Get("X-Test-User"), []string{"team-a"}, false)
				req = req.WithContext(principal.WithPrincipal(req.Context(), p))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/namespaces/{namespace}", func(r chi.Router) {
		r.Use(Middleware(PathResolver{}))
		r.Get("/topics", func(w http.ResponseWriter, req *http.Request) {
			got, seen = FromContext(req.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	tests := []struct {
		name   string
		path   string
		user   string
		status int
		want   Tenant
	}{
		{
			name:   "valid namespace with caller",
			path:   "/api/namespaces/team-a/topics",
			user:   "alice",
			status: http.StatusOK,
			want:   Tenant{Namespace: "team-a", User: "alice", Groups: []string{"team-a"}},
		},
		{
			name:   "anonymous caller",
			path:   "/api/namespaces/team-b/topics",
			status: http.StatusOK,
			want:   Tenant{Namespace: "team-b"},
		},
		{
			name:   "invalid namespace",
			path:   "/api/namespaces/Team_B/topics",
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, seen = Tenant{}, false
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.user != "" {
				req.Header.Set("X-Test-User", tt.user)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				var body map[string]string
				if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
					t.Fatal(err)
				}
				if body["error"] != "bad_request" {
					t.Errorf("error = %q", body["error"])
				}
				if seen {
					t.Error("handler must not run")
				}
				return
			}
			if got.Namespace != tt.want.Namespace || got.User != tt.want.User || len(got.Groups) != len(tt.want.Groups) {
				t.Errorf("tenant = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPathResolver_Missing(t *testing.T) {
	_, err := PathResolver{}.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != ErrMissingNamespace {
		t.Errorf("err = %v, want ErrMissingNamespace", err)
	}
}

func TestNamespaceFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ns := NamespaceFromContext(req.Context()); ns != "" {
		t.Errorf("ns = %q, want empty", ns)
	}
	ctx := WithTenant(req.Context(), Tenant{Namespace: "team-a"})
	if ns := NamespaceFromContext(ctx); ns != "team-a" {
		t.Errorf("ns = %q", ns)
	}
}
