package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	repo := store.NewMemoryRepository()
	namespaces := store.NewNamespaces(repo)
	for _, ns := range []string{"team-a", "team-b"} {
		r, err := resource.New(resource.KindNamespace, "", ns, resource.NamespaceSpec{KafkaUser: "u-" + ns})
		require.NoError(t, err)
		require.NoError(t, namespaces.Create(context.Background(), r))
	}
	acs := store.NewAccessControlEntries(repo)
	require.NoError(t, acs.Create(context.Background(),
		ace("team-a", "team-a-owner", resource.ACLTopic, resource.PatternPrefixed, "team-a.", resource.PermissionOwner, "team-a")))
	return NewValidator(NewMatcher(acs), namespaces)
}

func TestValidator(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		entry    store.AccessControlEntry
		isAdmin  bool
		wantErrs int
		contains string
	}{
		{
			name:  "share owned prefix",
			entry: ace("team-a", "share", resource.ACLTopic, resource.PatternPrefixed, "team-a.orders.", resource.PermissionRead, "team-b"),
		},
		{
			name:     "share foreign prefix",
			entry:    ace("team-a", "steal", resource.ACLTopic, resource.PatternPrefixed, "team-b.", resource.PermissionRead, "team-b"),
			wantErrs: 1,
			contains: "is not owner of the resource",
		},
		{
			name:     "grant ownership",
			entry:    ace("team-a", "owner", resource.ACLTopic, resource.PatternLiteral, "team-a.x", resource.PermissionOwner, "team-b"),
			wantErrs: 1,
			contains: "only admins can grant ownership",
		},
		{
			name:     "self grant",
			entry:    ace("team-a", "self", resource.ACLTopic, resource.PatternLiteral, "team-a.x", resource.PermissionRead, "team-a"),
			wantErrs: 1,
			contains: "cannot grant to the granting namespace",
		},
		{
			name:     "unknown beneficiary",
			entry:    ace("team-a", "ghost", resource.ACLTopic, resource.PatternLiteral, "team-a.x", resource.PermissionRead, "team-z"),
			wantErrs: 1,
			contains: "namespace not found",
		},
		{
			name:     "bad enums reported together",
			entry:    ace("team-a", "bad", "QUEUE", "REGEX", "", "ADMIN", "team-b"),
			wantErrs: 4,
		},
		{
			name:    "admin grants ownership",
			entry:   ace("team-b", "owner", resource.ACLTopic, resource.PatternPrefixed, "team-b.", resource.PermissionOwner, "team-b"),
			isAdmin: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := v.Validate(ctx, tt.entry, tt.isAdmin)
			require.NoError(t, err)
			assert.Len(t, errs, tt.wantErrs, "%v", errs)
			if tt.contains != "" && len(errs) > 0 {
				assert.Contains(t, errs[0], tt.contains)
			}
		})
	}
}
