package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/michelin/ns4kafka-go/pkg/principal"
)

// DecisionRecorder receives every gate decision. *metrics.Metrics satisfies it.
type DecisionRecorder interface {
	AuthzDecision(decision string)
}

// Gate returns middleware enforcing deny-by-default: only Allow passes.
// Anonymous callers get 401, everyone else 403.
func Gate(authorizer Authorizer, recorder DecisionRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req = Request{Path: r.URL.Path, Method: r.Method}
			p, authenticated := principal.FromContext(r.Context())
			if authenticated {
				req.Principal = &p
			}

			decision := authorizer.Authorize(r.Context(), req)
			if recorder != nil {
				recorder.AuthzDecision(decision.String())
			}
			if decision == Allow {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("request denied",
				"user", p.Username(),
				"method", r.Method,
				"path", r.URL.Path,
				"decision", decision.String(),
			)
			if !authenticated {
				principal.WriteUnauthorized(w)
				return
			}
			writeForbidden(w, "insufficient permissions for "+r.Method+" "+r.URL.Path)
		})
	}
}

// RequireAdmin returns middleware restricting a route to admins.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok {
				principal.WriteUnauthorized(w)
				return
			}
			if !p.IsAdmin() {
				writeForbidden(w, "admin privileges required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
