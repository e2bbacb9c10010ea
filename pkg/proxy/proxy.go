// Package proxy implements the internal gateway that forwards requests to
// the Schema Registry or Kafka Connect endpoint of a named cluster. Only
// call sites holding the process secret can reach it.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SchemaRegistryPrefix = "/schema-registry-proxy"
	ConnectPrefix        = "/connect-proxy"

	HeaderSecret         = "X-Proxy-Secret"
	HeaderKafkaCluster   = "X-Kafka-Cluster"
	HeaderConnectCluster = "X-Connect-Cluster"

	// DefaultTimeout bounds one upstream call.
	DefaultTimeout = 30 * time.Second
)

// Target names the kind of upstream a request is routed to.
type Target string

const (
	TargetSchemaRegistry Target = "schema-registry"
	TargetConnect        Target = "connect"
)

// NewSecret returns a fresh random secret. It is generated once per
// process and never stored.
func NewSecret() string {
	return uuid.NewString()
}

// RequestRecorder counts forwarded and rejected requests.
type RequestRecorder interface {
	ProxyRequest(target string, code int)
}

// Option configures a Handler.
type Option func(*Handler)

// WithTransport sets the transport used for upstream calls.
func WithTransport(rt http.RoundTripper) Option {
	return func(h *Handler) { h.proxy.Transport = rt }
}

// WithTimeout bounds each upstream call.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRecorder reports request outcomes.
func WithRecorder(r RequestRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// Handler serves both proxy prefixes.
type Handler struct {
	clusters *Registry
	secret   string
	timeout  time.Duration
	logger   *slog.Logger
	recorder RequestRecorder
	proxy    *httputil.ReverseProxy
}

type routeKey struct{}

type route struct {
	target   Target
	endpoint Endpoint
	path     string
}

// NewHandler creates a Handler accepting requests signed with secret.
func NewHandler(clusters *Registry, secret string, opts ...Option) *Handler {
	h := &Handler{
		clusters: clusters,
		secret:   secret,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	h.proxy = &httputil.ReverseProxy{
		Rewrite:      h.rewrite,
		ErrorHandler: h.upstreamError,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, stripped, ok := splitPrefix(r.URL.Path)
	if !ok {
		writeErrors(w, http.StatusNotFound, "Unknown proxy path "+r.URL.Path)
		return
	}
	rec := &responseCapture{ResponseWriter: w}
	defer func() {
		if h.recorder != nil {
			h.recorder.ProxyRequest(string(target), rec.status())
		}
	}()

	ep, status, reasons := h.resolve(r, target)
	if len(reasons) > 0 {
		h.logger.Warn("proxy request rejected", "target", target, "path", r.URL.Path, "reasons", reasons)
		writeErrors(rec, status, reasons...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, routeKey{}, route{target: target, endpoint: ep, path: stripped})
	h.proxy.ServeHTTP(rec, r.WithContext(ctx))
}

// resolve runs the header checks and the cluster lookup. Header problems
// are reported together; the lookup runs only once the headers are sound.
func (h *Handler) resolve(r *http.Request, target Target) (Endpoint, int, []string) {
	var reasons []string
	status := http.StatusBadRequest

	switch secret := r.Header.Get(HeaderSecret); {
	case secret == "":
		reasons = append(reasons, "Missing required header "+HeaderSecret)
		status = http.StatusForbidden
	case secret != h.secret:
		reasons = append(reasons, "Invalid value for header "+HeaderSecret)
		status = http.StatusForbidden
	}
	cluster := r.Header.Get(HeaderKafkaCluster)
	if cluster == "" {
		reasons = append(reasons, "Missing required header "+HeaderKafkaCluster)
	}
	connect := r.Header.Get(HeaderConnectCluster)
	if target == TargetConnect && connect == "" {
		reasons = append(reasons, "Missing required header "+HeaderConnectCluster)
	}
	if len(reasons) > 0 {
		return Endpoint{}, status, reasons
	}

	cfg, ok := h.clusters.Get(cluster)
	if !ok {
		return Endpoint{}, http.StatusBadRequest, []string{"Kafka cluster " + cluster + " not found"}
	}
	switch target {
	case TargetSchemaRegistry:
		if !cfg.SchemaRegistry.configured() {
			return Endpoint{}, http.StatusBadRequest, []string{"Kafka cluster " + cluster + " has no schema registry"}
		}
		return *cfg.SchemaRegistry, 0, nil
	default:
		ep, ok := h.clusters.Connect(cluster, connect)
		if !ok || !ep.configured() {
			return Endpoint{}, http.StatusBadRequest, []string{"Connect cluster " + connect + " not found for Kafka cluster " + cluster}
		}
		return ep, 0, nil
	}
}

func (h *Handler) rewrite(pr *httputil.ProxyRequest) {
	rt := pr.In.Context().Value(routeKey{}).(route)
	base, _ := url.Parse(rt.endpoint.URL)

	pr.Out.URL.Scheme = base.Scheme
	pr.Out.URL.Host = base.Host
	pr.Out.URL.Path = strings.TrimSuffix(base.Path, "/") + rt.path
	pr.Out.URL.RawPath = ""
	pr.Out.Host = ""

	pr.Out.Header.Del(HeaderSecret)
	pr.Out.Header.Del(HeaderKafkaCluster)
	pr.Out.Header.Del(HeaderConnectCluster)
	pr.Out.Header.Del("Authorization")
	if rt.endpoint.BasicAuthUser != "" {
		pr.Out.SetBasicAuth(rt.endpoint.BasicAuthUser, rt.endpoint.BasicAuthPass)
	}
}

func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		status = http.StatusGatewayTimeout
	}
	if errors.Is(r.Context().Err(), context.Canceled) {
		h.logger.Debug("proxy request cancelled by client", "path", r.URL.Path)
	} else {
		h.logger.Error("proxy upstream failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeErrors(w, status, "Upstream unavailable: "+err.Error())
}

func splitPrefix(path string) (Target, string, bool) {
	for prefix, target := range map[string]Target{
		SchemaRegistryPrefix: TargetSchemaRegistry,
		ConnectPrefix:        TargetConnect,
	} {
		if path == prefix {
			return target, "/", true
		}
		if rest, ok := strings.CutPrefix(path, prefix+"/"); ok {
			return target, "/" + rest, true
		}
	}
	return "", "", false
}

type responseCapture struct {
	http.ResponseWriter
	code int
}

func (rc *responseCapture) WriteHeader(code int) {
	if rc.code == 0 {
		rc.code = code
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if rc.code == 0 {
		rc.code = http.StatusOK
	}
	return rc.ResponseWriter.Write(b)
}

func (rc *responseCapture) Unwrap() http.ResponseWriter { return rc.ResponseWriter }

func (rc *responseCapture) status() int {
	if rc.code == 0 {
		return http.StatusOK
	}
	return rc.code
}

func writeErrors(w http.ResponseWriter, status int, reasons ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string][]string{"errors": reasons})
}
