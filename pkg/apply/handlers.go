package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/proxy"
	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// ResultHeader carries the apply outcome on every mutating response.
const ResultHeader = "X-Ns4kafka-Result"

const maxBodyBytes = 1 << 20

// ConnectorClient reaches the Connect clusters through the internal proxy.
type ConnectorClient interface {
	RestartConnector(ctx context.Context, cluster, connect, name string) error
	GetConnectorStatus(ctx context.Context, cluster, connect, name string) (*proxy.ConnectorStatus, error)
}

// Handler exposes the Controller over HTTP.
type Handler struct {
	ctrl       *Controller
	connectors ConnectorClient
	logger     *slog.Logger
}

// NewHandler creates a Handler. connectors may be nil, in which case the
// connector sub-actions answer 503.
func NewHandler(ctrl *Controller, connectors ConnectorClient, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ctrl: ctrl, connectors: connectors, logger: logger}
}

// MountResources registers the namespaced routes on r, which must be
// routed under /api/namespaces/{namespace}.
func (h *Handler) MountResources(r chi.Router) {
	r.Post("/connectors/{name}/restart", h.RestartConnector)
	r.Get("/connectors/{name}/status", h.ConnectorStatus)
	r.Get("/{resourceType}", h.List)
	r.Post("/{resourceType}", h.Apply)
	r.Get("/{resourceType}/{name}", h.Get)
	r.Delete("/{resourceType}/{name}", h.Delete)
}

// adminOnlyKinds can be read by namespace members but only changed by admins.
var adminOnlyKinds = map[resource.Kind]bool{
	resource.KindResourceQuota: true,
}

func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (resource.Kind, bool) {
	t := chi.URLParam(r, "resourceType")
	k, ok := resource.KindForType(t)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource type "+t)
	}
	return k, ok
}

// List handles GET /api/namespaces/{namespace}/{resourceType}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	ns := chi.URLParam(r, "namespace")
	items, err := h.ctrl.List(r.Context(), kind, ns)
	if err != nil {
		h.fail(w, err)
		return
	}
	if items == nil {
		items = []*resource.Resource{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/namespaces/{namespace}/{resourceType}/{name}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	item, err := h.ctrl.Get(r.Context(), kind, chi.URLParam(r, "namespace"), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Apply handles POST /api/namespaces/{namespace}/{resourceType}?dryrun=.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	if !h.allowMutation(w, r, kind) {
		return
	}
	dryRun, ok := parseDryRun(w, r)
	if !ok {
		return
	}
	body, err := decodeResource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if body.Kind == "" {
		body.Kind = kind
	}
	if body.Kind != kind {
		writeRejected(w, &RejectedError{Stage: StageValidation, Reasons: []string{
			fmt.Sprintf("invalid value %q for field kind: expected %s", body.Kind, kind),
		}})
		return
	}

	res, err := h.ctrl.Apply(r.Context(), chi.URLParam(r, "namespace"), body, dryRun)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set(ResultHeader, string(res.Status))
	status := http.StatusOK
	if res.Status == resource.StatusCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res.Resource)
}

// Delete handles DELETE /api/namespaces/{namespace}/{resourceType}/{name}?dryrun=.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	if !h.allowMutation(w, r, kind) {
		return
	}
	dryRun, ok := parseDryRun(w, r)
	if !ok {
		return
	}
	res, err := h.ctrl.Delete(r.Context(), kind, chi.URLParam(r, "namespace"), chi.URLParam(r, "name"), dryRun)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set(ResultHeader, string(res.Status))
	w.WriteHeader(http.StatusNoContent)
}

// ListNamespaces handles GET /api/namespaces.
func (h *Handler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	items, err := h.ctrl.namespacesList(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetNamespace handles GET /api/namespaces/{namespace}.
func (h *Handler) GetNamespace(w http.ResponseWriter, r *http.Request) {
	item, err := h.ctrl.Get(r.Context(), resource.KindNamespace, "", chi.URLParam(r, "namespace"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ApplyNamespace handles POST /api/namespaces.
func (h *Handler) ApplyNamespace(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := parseDryRun(w, r)
	if !ok {
		return
	}
	body, err := decodeResource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if body.Kind != "" && body.Kind != resource.KindNamespace {
		writeRejected(w, &RejectedError{Stage: StageValidation, Reasons: []string{
			fmt.Sprintf("invalid value %q for field kind: expected Namespace", body.Kind),
		}})
		return
	}
	res, err := h.ctrl.ApplyNamespace(r.Context(), body, dryRun)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set(ResultHeader, string(res.Status))
	status := http.StatusOK
	if res.Status == resource.StatusCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res.Resource)
}

// DeleteNamespace handles DELETE /api/namespaces/{namespace}.
func (h *Handler) DeleteNamespace(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := parseDryRun(w, r)
	if !ok {
		return
	}
	res, err := h.ctrl.DeleteNamespace(r.Context(), chi.URLParam(r, "namespace"), dryRun)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set(ResultHeader, string(res.Status))
	w.WriteHeader(http.StatusNoContent)
}

// RestartConnector handles POST /api/namespaces/{namespace}/connectors/{name}/restart.
func (h *Handler) RestartConnector(w http.ResponseWriter, r *http.Request) {
	cluster, connect, ok := h.connectorTarget(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.connectors.RestartConnector(r.Context(), cluster, connect, name); err != nil {
		h.logger.Error("connector restart failed", "connector", name, "connect", connect, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConnectorStatus handles GET /api/namespaces/{namespace}/connectors/{name}/status.
func (h *Handler) ConnectorStatus(w http.ResponseWriter, r *http.Request) {
	cluster, connect, ok := h.connectorTarget(w, r)
	if !ok {
		return
	}
	status, err := h.connectors.GetConnectorStatus(r.Context(), cluster, connect, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) connectorTarget(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if h.connectors == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "connect proxy is not configured")
		return "", "", false
	}
	c, err := h.ctrl.Get(r.Context(), resource.KindConnector, chi.URLParam(r, "namespace"), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, err)
		return "", "", false
	}
	spec, err := resource.DecodeSpec[resource.ConnectorSpec](c)
	if err != nil {
		h.fail(w, err)
		return "", "", false
	}
	return c.Metadata.Cluster, spec.ConnectCluster, true
}

func (h *Handler) allowMutation(w http.ResponseWriter, r *http.Request, kind resource.Kind) bool {
	if !adminOnlyKinds[kind] {
		return true
	}
	if p, ok := principal.FromContext(r.Context()); ok && p.IsAdmin() {
		return true
	}
	writeError(w, http.StatusForbidden, "forbidden", "admin privileges required to modify "+string(kind))
	return false
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if rej, ok := AsRejected(err); ok {
		writeRejected(w, rej)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, ErrNamespaceNotFound):
		writeError(w, http.StatusNotFound, "not_found", "namespace not found")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func parseDryRun(w http.ResponseWriter, r *http.Request) (bool, bool) {
	v := r.URL.Query().Get("dryrun")
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid value %q for parameter dryrun", v))
		return false, false
	}
	return b, true
}

func decodeResource(r *http.Request) (*resource.Resource, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	var res resource.Resource
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return &res, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeRejected(w http.ResponseWriter, rej *RejectedError) {
	code := "validation_failed"
	if rej.Stage == StageQuota {
		code = "quota_exceeded"
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   code,
		"message": rej.Error(),
		"reasons": rej.Reasons,
	})
}
