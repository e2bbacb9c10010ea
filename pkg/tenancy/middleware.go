package tenancy

import (
	"encoding/json"
	"net/http"

	"github.com/michelin/ns4kafka-go/pkg/principal"
)

// Middleware resolves the namespace with resolver and stores the Tenant in
// the request context. Unresolvable namespaces get a 400.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ns, err := resolver.Resolve(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "bad_request",
					"message": err.Error(),
				})
				return
			}

			t := Tenant{Namespace: ns}
			if p, ok := principal.FromContext(r.Context()); ok {
				t.User = p.Username()
				t.Groups = p.Groups()
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}
