package quota

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UsageHandler serves GET /api/namespaces/{namespace}/resource-quotas/_usage.
func UsageHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns := chi.URLParam(r, "namespace")
		usage, err := s.Usage(r.Context(), ns)
		if err != nil {
			s.logger.Error("failed to compute quota usage", "namespace", ns, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "internal_error",
				"message": "failed to compute quota usage",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(usage)
	}
}
