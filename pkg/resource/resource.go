// Package resource defines the declarative envelope shared by every object
// managed by the control plane, the closed set of kinds, and the typed spec
// views decoded from it.
package resource

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// APIVersion is stamped on every resource returned by the server.
const APIVersion = "v1"

// Kind identifies the spec payload carried by a Resource.
type Kind string

const (
	KindNamespace          Kind = "Namespace"
	KindRoleBinding        Kind = "RoleBinding"
	KindAccessControlEntry Kind = "AccessControlEntry"
	KindResourceQuota      Kind = "ResourceQuota"
	KindTopic              Kind = "Topic"
	KindConnector          Kind = "Connector"
	KindSchema             Kind = "Schema"
	KindKafkaStream        Kind = "KafkaStream"
)

// kindTypes maps each namespaced kind to its URL path segment.
var kindTypes = map[Kind]string{
	KindRoleBinding:        "role-bindings",
	KindAccessControlEntry: "acls",
	KindResourceQuota:      "resource-quotas",
	KindTopic:              "topics",
	KindConnector:          "connectors",
	KindSchema:             "schemas",
	KindKafkaStream:        "streams",
}

// Kinds returns every namespaced kind.
func Kinds() []Kind {
	return []Kind{
		KindRoleBinding, KindAccessControlEntry, KindResourceQuota,
		KindTopic, KindConnector, KindSchema, KindKafkaStream,
	}
}

// PathType returns the URL segment for a namespaced kind, e.g. "topics".
func (k Kind) PathType() string {
	return kindTypes[k]
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	if k == KindNamespace {
		return true
	}
	_, ok := kindTypes[k]
	return ok
}

// KindForType resolves a URL segment such as "topics" to its kind.
func KindForType(resourceType string) (Kind, bool) {
	for k, t := range kindTypes {
		if t == resourceType {
			return k, true
		}
	}
	return "", false
}

// Metadata is the identifying part of a resource.
type Metadata struct {
	Name              string            `json:"name" yaml:"name"`
	Namespace         string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Cluster           string            `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Labels            map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
}

// Spec is the kind-specific desired state, kept as a JSON object.
type Spec map[string]any

// Resource is the envelope for every managed object.
type Resource struct {
	APIVersion string         `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind           `json:"kind" yaml:"kind"`
	Metadata   Metadata       `json:"metadata" yaml:"metadata"`
	Spec       Spec           `json:"spec,omitempty" yaml:"spec,omitempty"`
	Status     map[string]any `json:"status,omitempty" yaml:"status,omitempty"`
}

// Key returns the identity of r within its kind.
func (r *Resource) Key() Key {
	return Key{Kind: r.Kind, Namespace: r.Metadata.Namespace, Name: r.Metadata.Name}
}

// Clone returns a deep copy of r.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata.Labels != nil {
		out.Metadata.Labels = make(map[string]string, len(r.Metadata.Labels))
		for k, v := range r.Metadata.Labels {
			out.Metadata.Labels[k] = v
		}
	}
	if r.Metadata.CreationTimestamp != nil {
		ts := *r.Metadata.CreationTimestamp
		out.Metadata.CreationTimestamp = &ts
	}
	out.Spec = Spec(cloneMap(r.Spec))
	out.Status = cloneMap(r.Status)
	return &out
}

// Key identifies a resource. Namespace is empty for Namespace objects.
type Key struct {
	Kind      Kind
	Namespace string
	Name      string
}

func (k Key) String() string {
	if k.Namespace == "" {
		return fmt.Sprintf("%s/%s", k.Kind, k.Name)
	}
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Namespace, k.Name)
}

// SpecEqual compares two specs after normalizing them through JSON, so an
// int and the float64 it decodes to compare equal.
func SpecEqual(a, b Spec) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(s Spec) (map[string]any, error) {
	if len(s) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeSpec decodes the spec of r into a typed view.
func DecodeSpec[T any](r *Resource) (T, error) {
	var out T
	if r == nil {
		return out, fmt.Errorf("decode spec: nil resource")
	}
	data, err := json.Marshal(r.Spec)
	if err != nil {
		return out, fmt.Errorf("decode %s spec: %w", r.Kind, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s spec: %w", r.Kind, err)
	}
	return out, nil
}

// EncodeSpec turns a typed spec into the generic representation.
func EncodeSpec(v any) (Spec, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode spec: %w", err)
	}
	var out Spec
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode spec: %w", err)
	}
	return out, nil
}

// New builds a resource of the given kind from a typed spec.
func New(kind Kind, namespace, name string, spec any) (*Resource, error) {
	s, err := EncodeSpec(spec)
	if err != nil {
		return nil, err
	}
	return &Resource{
		APIVersion: APIVersion,
		Kind:       kind,
		Metadata:   Metadata{Name: name, Namespace: namespace},
		Spec:       s,
	}, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Spec:
		return Spec(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
