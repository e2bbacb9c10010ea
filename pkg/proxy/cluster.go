package proxy

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values when cluster settings are logged.
const RedactedValue = "***REDACTED***"

var sensitiveKeyPatterns = []string{"password", "token", "secret", "jaas", "apikey", "api_key", "credential"}

// IsSensitiveKey reports whether a property key names a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// RedactProperties returns a copy of props with sensitive values replaced.
func RedactProperties(props map[string]string) map[string]string {
	if props == nil {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		if IsSensitiveKey(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}

// Endpoint is an upstream HTTP service of a cluster.
type Endpoint struct {
	URL           string `json:"url" mapstructure:"url" yaml:"url"`
	BasicAuthUser string `json:"basicAuthUsername,omitempty" mapstructure:"basic-auth-username" yaml:"basicAuthUsername,omitempty"`
	BasicAuthPass string `json:"-" mapstructure:"basic-auth-password" yaml:"basicAuthPassword,omitempty"`
}

func (e *Endpoint) configured() bool {
	return e != nil && e.URL != ""
}

// ClusterConfig describes one managed Kafka cluster and the services
// attached to it.
type ClusterConfig struct {
	Name             string              `json:"name" mapstructure:"name" yaml:"name"`
	KafkaAdminProps  map[string]string   `json:"config,omitempty" mapstructure:"config" yaml:"config,omitempty"`
	ConnectEndpoints map[string]Endpoint `json:"connects,omitempty" mapstructure:"connects" yaml:"connects,omitempty"`
	SchemaRegistry   *Endpoint           `json:"schemaRegistry,omitempty" mapstructure:"schema-registry" yaml:"schemaRegistry,omitempty"`
}

// LogValue keeps credentials out of logs.
func (c ClusterConfig) LogValue() slog.Value {
	connects := make([]string, 0, len(c.ConnectEndpoints))
	for name := range c.ConnectEndpoints {
		connects = append(connects, name)
	}
	sort.Strings(connects)
	attrs := []slog.Attr{
		slog.String("name", c.Name),
		slog.Any("config", RedactProperties(c.KafkaAdminProps)),
		slog.Any("connects", connects),
	}
	if c.SchemaRegistry.configured() {
		attrs = append(attrs, slog.String("schemaRegistry", c.SchemaRegistry.URL))
	}
	return slog.GroupValue(attrs...)
}

// Registry is the read-only catalog of clusters loaded at startup.
type Registry struct {
	clusters map[string]ClusterConfig
}

// NewRegistry validates configs and indexes them by name.
func NewRegistry(configs []ClusterConfig) (*Registry, error) {
	r := &Registry{clusters: make(map[string]ClusterConfig, len(configs))}
	for _, c := range configs {
		if c.Name == "" {
			return nil, fmt.Errorf("cluster config: missing name")
		}
		if _, dup := r.clusters[c.Name]; dup {
			return nil, fmt.Errorf("cluster config: duplicate cluster %q", c.Name)
		}
		if c.SchemaRegistry.configured() {
			if err := checkURL(c.SchemaRegistry.URL); err != nil {
				return nil, fmt.Errorf("cluster %s schema registry: %w", c.Name, err)
			}
		}
		connects := make(map[string]Endpoint, len(c.ConnectEndpoints))
		for name, ep := range c.ConnectEndpoints {
			if err := checkURL(ep.URL); err != nil {
				return nil, fmt.Errorf("cluster %s connect %s: %w", c.Name, name, err)
			}
			key := connectKey(name)
			if _, dup := connects[key]; dup {
				return nil, fmt.Errorf("cluster %s: duplicate connect %q", c.Name, key)
			}
			connects[key] = ep
		}
		c.ConnectEndpoints = connects
		r.clusters[c.Name] = c
	}
	return r, nil
}

// connectKey folds Connect cluster names. Map keys loaded from config files
// arrive lowercased, so lookups ignore case.
func connectKey(name string) string {
	return strings.ToLower(name)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q: scheme and host required", raw)
	}
	return nil
}

// Get returns the named cluster.
func (r *Registry) Get(name string) (ClusterConfig, bool) {
	if r == nil {
		return ClusterConfig{}, false
	}
	c, ok := r.clusters[name]
	return c, ok
}

// Names returns the cluster names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.clusters))
	for n := range r.clusters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasCluster reports whether the named Kafka cluster is managed.
func (r *Registry) HasCluster(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Connect returns the named Connect cluster of a Kafka cluster.
func (r *Registry) Connect(cluster, connect string) (Endpoint, bool) {
	c, ok := r.Get(cluster)
	if !ok {
		return Endpoint{}, false
	}
	ep, ok := c.ConnectEndpoints[connectKey(connect)]
	return ep, ok
}

// HasConnect reports whether cluster declares the named Connect cluster.
func (r *Registry) HasConnect(cluster, connect string) bool {
	_, ok := r.Connect(cluster, connect)
	return ok
}
