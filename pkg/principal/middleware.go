package principal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Authenticate returns HTTP middleware that resolves the Authorization
// header into a Principal stored in the request context. Requests without
// credentials continue anonymously; invalid credentials get a 401.
func Authenticate(resolver Resolver, roles *RoleComputer, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := credentialsFromRequest(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.Resolve(r.Context(), creds)
			if err != nil {
				logger.Info("authentication rejected", "path", r.URL.Path, "bearer", creds.IsBearer())
				WriteUnauthorized(w)
				return
			}

			p := roles.Compute(id)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// TrustedHeaders returns HTTP middleware that builds the Principal from
// X-Remote-User and X-Remote-Group headers set by an authenticating proxy.
// X-Remote-Group is comma-separated. Without X-Remote-User the request
// stays anonymous.
func TrustedHeaders(roles *RoleComputer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get("X-Remote-User"))
			if user == "" {
				next.ServeHTTP(w, r)
				return
			}

			var groups []string
			groupHeader := strings.TrimSpace(r.Header.Get("X-Remote-Group"))
			if groupHeader != "" {
				for _, g := range strings.Split(groupHeader, ",") {
					g = strings.TrimSpace(g)
					if g != "" {
						groups = append(groups, g)
					}
				}
			}

			p := roles.Compute(Identity{Username: user, Groups: groups})
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WriteUnauthorized writes the 401 body shared by every authentication failure.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="ns4kafka"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "authentication required",
	})
}

func credentialsFromRequest(r *http.Request) (Credentials, bool) {
	if user, pass, ok := r.BasicAuth(); ok {
		return Credentials{Username: user, Password: pass}, true
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return Credentials{}, false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Credentials{}, false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return Credentials{}, false
	}
	return Credentials{Token: token}, true
}
