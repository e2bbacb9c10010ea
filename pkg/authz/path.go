package authz

import "strings"

const namespacesPrefix = "/api/namespaces/"

// Target is the namespace-scoped part of a request path.
type Target struct {
	Namespace    string
	ResourceType string
	ResourceID   string
}

// ParsePath extracts the target of
// /api/namespaces/{namespace}/{resourceType}[/{resourceId}[/{subtype}]].
// A subtype is folded into the resource type as "{resourceType}/{subtype}".
// Any other shape returns false.
func ParsePath(path string) (Target, bool) {
	path = strings.TrimRight(path, "/")
	if !strings.HasPrefix(path, namespacesPrefix) {
		return Target{}, false
	}
	segments := strings.Split(strings.TrimPrefix(path, namespacesPrefix), "/")
	if len(segments) < 2 || len(segments) > 4 {
		return Target{}, false
	}
	for _, s := range segments {
		if s == "" {
			return Target{}, false
		}
	}

	t := Target{Namespace: segments[0], ResourceType: segments[1]}
	if len(segments) >= 3 {
		t.ResourceID = segments[2]
	}
	if len(segments) == 4 {
		t.ResourceType = segments[1] + "/" + segments[3]
	}
	return t, true
}
