package resource

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForType(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := KindForType(k.PathType())
		require.True(t, ok, "kind %s", k)
		assert.Equal(t, k, got)
	}

	_, ok := KindForType("widgets")
	assert.False(t, ok)
	assert.True(t, KindNamespace.Valid())
	assert.False(t, Kind("Widget").Valid())
}

func TestSpecEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Spec
		want bool
	}{
		{"both empty", nil, Spec{}, true},
		{"int and float", Spec{"partitions": 3}, Spec{"partitions": float64(3)}, true},
		{"nested equal", Spec{"configs": map[string]string{"cleanup.policy": "delete"}}, Spec{"configs": map[string]any{"cleanup.policy": "delete"}}, true},
		{"different value", Spec{"partitions": 3}, Spec{"partitions": 6}, false},
		{"extra key", Spec{"partitions": 3}, Spec{"partitions": 3, "replicationFactor": 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpecEqual(tt.a, tt.b))
		})
	}
}

func TestDecodeSpec_Topic(t *testing.T) {
	r, err := New(KindTopic, "team-a", "team-a.orders", TopicSpec{
		Partitions:        6,
		ReplicationFactor: 3,
		Configs:           map[string]string{"retention.bytes": "1024"},
	})
	require.NoError(t, err)

	spec, err := DecodeSpec[TopicSpec](r)
	require.NoError(t, err)
	assert.Equal(t, 6, spec.Partitions)
	assert.Equal(t, 3, spec.ReplicationFactor)
	assert.Equal(t, "1024", spec.Configs["retention.bytes"])
}

func TestDecodeSpec_FromJSON(t *testing.T) {
	raw := `{"apiVersion":"v1","kind":"RoleBinding","metadata":{"name":"rb","namespace":"test"},
		"spec":{"role":{"resourceTypes":["topics"],"verbs":["POST"]},"subject":{"subjectType":"GROUP","subjectName":"team-x"}}}`
	var r Resource
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	spec, err := DecodeSpec[RoleBindingSpec](&r)
	require.NoError(t, err)
	assert.Equal(t, []string{"topics"}, spec.Role.ResourceTypes)
	assert.Equal(t, SubjectGroup, spec.Subject.SubjectType)
	assert.Equal(t, "team-x", spec.Subject.SubjectName)
}

func TestClone_IsIndependent(t *testing.T) {
	now := time.Now()
	r := &Resource{
		Kind:     KindTopic,
		Metadata: Metadata{Name: "t", Labels: map[string]string{"a": "b"}, CreationTimestamp: &now},
		Spec:     Spec{"configs": map[string]any{"k": "v"}},
	}
	c := r.Clone()
	c.Metadata.Labels["a"] = "changed"
	c.Spec["configs"].(map[string]any)["k"] = "changed"

	assert.Equal(t, "b", r.Metadata.Labels["a"])
	assert.Equal(t, "v", r.Spec["configs"].(map[string]any)["k"])
	assert.NotSame(t, r.Metadata.CreationTimestamp, c.Metadata.CreationTimestamp)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "Namespace/test", Key{Kind: KindNamespace, Name: "test"}.String())
	assert.Equal(t, "Topic/test/t1", Key{Kind: KindTopic, Namespace: "test", Name: "t1"}.String())
}
