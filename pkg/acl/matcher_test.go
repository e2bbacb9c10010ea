package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

func ace(ns, name string, rt resource.ACLResourceType, pattern resource.PatternType, res string, perm resource.Permission, grantedTo string) store.AccessControlEntry {
	return store.AccessControlEntry{
		Name: name, Namespace: ns,
		Spec: resource.AccessControlEntrySpec{
			ResourceType: rt, ResourcePatternType: pattern, Resource: res, Permission: perm, GrantedTo: grantedTo,
		},
	}
}

func seed(t *testing.T, entries ...store.AccessControlEntry) *store.AccessControlEntries {
	t.Helper()
	acs := store.NewAccessControlEntries(store.NewMemoryRepository())
	for _, e := range entries {
		require.NoError(t, acs.Create(context.Background(), e))
	}
	return acs
}

func TestMatcher_PrefixSemantics(t *testing.T) {
	m := NewMatcher(seed(t,
		ace("team-b", "share-orders", resource.ACLTopic, resource.PatternPrefixed, "orders.", resource.PermissionWrite, "team-a"),
	))
	ctx := context.Background()

	tests := []struct {
		name  string
		level resource.Permission
		want  bool
	}{
		{"orders.clicks", resource.PermissionWrite, true},
		{"orders.clicks", resource.PermissionRead, true},
		{"orders.", resource.PermissionWrite, true},
		{"orders.clicks", resource.PermissionOwner, false},
		{"ordersomething", resource.PermissionWrite, false},
		{"order.x", resource.PermissionWrite, false},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+string(tt.level), func(t *testing.T) {
			ok, err := m.IsAuthorized(ctx, "team-a", resource.ACLTopic, tt.name, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	ok, err := m.IsAuthorized(ctx, "team-b", resource.ACLTopic, "orders.clicks", resource.PermissionRead)
	require.NoError(t, err)
	assert.False(t, ok, "the granting namespace does not benefit from its own grant")

	ok, err = m.IsAuthorized(ctx, "team-a", resource.ACLGroup, "orders.clicks", resource.PermissionRead)
	require.NoError(t, err)
	assert.False(t, ok, "resource types must match")
}

func TestMatcher_LiteralAndExistential(t *testing.T) {
	m := NewMatcher(seed(t,
		ace("team-a", "own-prefix", resource.ACLTopic, resource.PatternPrefixed, "team-a.", resource.PermissionOwner, "team-a"),
		ace("team-c", "read-one", resource.ACLTopic, resource.PatternLiteral, "team-a.private", resource.PermissionRead, "team-a"),
	))
	ctx := context.Background()

	ok, err := m.IsOwner(ctx, "team-a", resource.ACLTopic, "team-a.private")
	require.NoError(t, err)
	assert.True(t, ok, "a weaker, more specific literal entry must not shadow the prefix owner entry")

	ok, err = m.IsAuthorized(ctx, "team-a", resource.ACLTopic, "team-a.privatex", resource.PermissionOwner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies(resource.PermissionOwner, resource.PermissionRead))
	assert.True(t, Satisfies(resource.PermissionOwner, resource.PermissionWrite))
	assert.True(t, Satisfies(resource.PermissionWrite, resource.PermissionRead))
	assert.False(t, Satisfies(resource.PermissionRead, resource.PermissionWrite))
	assert.False(t, Satisfies(resource.Permission("ADMIN"), resource.PermissionRead))
}

func TestCovers(t *testing.T) {
	prefixed := func(res string) resource.AccessControlEntrySpec {
		return resource.AccessControlEntrySpec{ResourceType: resource.ACLTopic, ResourcePatternType: resource.PatternPrefixed, Resource: res}
	}
	literal := func(res string) resource.AccessControlEntrySpec {
		return resource.AccessControlEntrySpec{ResourceType: resource.ACLTopic, ResourcePatternType: resource.PatternLiteral, Resource: res}
	}

	assert.True(t, Covers(prefixed("team-a."), prefixed("team-a.orders.")))
	assert.True(t, Covers(prefixed("team-a."), literal("team-a.orders")))
	assert.False(t, Covers(prefixed("team-a.orders."), prefixed("team-a.")))
	assert.True(t, Covers(literal("team-a.x"), literal("team-a.x")))
	assert.False(t, Covers(literal("team-a."), prefixed("team-a.")))

	group := prefixed("team-a.")
	group.ResourceType = resource.ACLGroup
	assert.False(t, Covers(group, prefixed("team-a.")))
}
