package acl

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// NamespaceFinder loads a namespace by name.
type NamespaceFinder interface {
	FindByName(ctx context.Context, name string) (*resource.Resource, error)
}

// BrokerHandler serves the broker ACLs that the entries granted to a
// namespace translate to.
type BrokerHandler struct {
	entries    EntryLookup
	namespaces NamespaceFinder
	logger     *slog.Logger
}

// NewBrokerHandler creates a BrokerHandler.
func NewBrokerHandler(entries EntryLookup, namespaces NamespaceFinder, logger *slog.Logger) *BrokerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerHandler{entries: entries, namespaces: namespaces, logger: logger}
}

// ServeHTTP handles GET /api/namespaces/{namespace}/acls/_broker.
func (h *BrokerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "namespace")
	ns, err := h.namespaces.FindByName(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to load namespace", "namespace", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load namespace")
		return
	}
	if ns == nil {
		writeError(w, http.StatusNotFound, "not_found", "namespace "+name+" not found")
		return
	}
	spec, err := resource.DecodeSpec[resource.NamespaceSpec](ns)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "invalid namespace spec")
		return
	}

	entries, err := h.entries.FindAllGrantedTo(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to list access control entries", "namespace", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list access control entries")
		return
	}

	bindings := make([]BrokerBinding, 0, len(entries))
	for _, c := range BrokerBindings(entries, spec.KafkaUser) {
		bindings = append(bindings, toBrokerBinding(c))
	}
	writeJSON(w, http.StatusOK, bindings)
}

var _ EntryLookup = (*store.AccessControlEntries)(nil)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
