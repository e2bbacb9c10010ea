package principal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRoleComputer(t *testing.T) {
	rc := NewRoleComputer("ns4kafka-admins", "ops")

	tests := []struct {
		name   string
		groups []string
		admin  bool
	}{
		{"admin group", []string{"team-a", "ns4kafka-admins"}, true},
		{"second admin group", []string{"ops"}, true},
		{"no admin group", []string{"team-a"}, false},
		{"no groups", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := rc.Compute(Identity{Username: "alice", Groups: tt.groups})
			assert.Equal(t, tt.admin, p.IsAdmin())
			assert.Equal(t, "alice", p.Username())
			for _, g := range tt.groups {
				assert.True(t, p.InGroup(g))
			}
		})
	}
}

func TestRoleComputer_NoAdminGroups(t *testing.T) {
	p := NewRoleComputer().Compute(Identity{Username: "bob", Groups: []string{"admins"}})
	assert.False(t, p.IsAdmin())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	p := New("alice", []string{"b", "a"}, false)
	got, ok := FromContext(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username())
	assert.Equal(t, []string{"a", "b"}, got.Groups())
}

func TestLocalResolver(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	r := NewLocalResolver([]LocalUser{
		{Username: "alice", Salt: "pepper", PasswordDigest: SaltedDigest("pepper", "wonderland"), Groups: []string{"team-a"}},
		{Username: "bob", PasswordDigest: string(hash), Groups: []string{"team-b"}},
	})
	ctx := context.Background()

	id, err := r.Resolve(ctx, Credentials{Username: "alice", Password: "wonderland"})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, []string{"team-a"}, id.Groups)

	id, err = r.Resolve(ctx, Credentials{Username: "bob", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)

	_, err = r.Resolve(ctx, Credentials{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = r.Resolve(ctx, Credentials{Username: "carol", Password: "x"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = r.Resolve(ctx, Credentials{Token: "abc"})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestLocalResolver_UnknownUserVerifiesDecoy(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	hashed := NewLocalResolver([]LocalUser{{Username: "bob", PasswordDigest: string(hash)}})
	require.True(t, strings.HasPrefix(hashed.decoy.PasswordDigest, "$2"), "decoy uses the configured hash scheme")
	cost, err := bcrypt.Cost([]byte(hashed.decoy.PasswordDigest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.False(t, verifyPassword(hashed.decoy, ""))
	assert.False(t, verifyPassword(hashed.decoy, "s3cret"))

	salted := NewLocalResolver([]LocalUser{{Username: "alice", Salt: "pepper", PasswordDigest: SaltedDigest("pepper", "wonderland")}})
	assert.Len(t, salted.decoy.PasswordDigest, 64)
	assert.NotEmpty(t, salted.decoy.Salt)
	assert.False(t, verifyPassword(salted.decoy, ""))

	_, err = salted.Resolve(context.Background(), Credentials{Username: "carol", Password: "wonderland"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Bind(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *mockDirectory) GroupsOf(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	groups, _ := args.Get(0).([]string)
	return groups, args.Error(1)
}

func TestDirectoryResolver(t *testing.T) {
	ctx := context.Background()
	dir := &mockDirectory{}
	dir.On("Bind", ctx, "alice", "pw").Return(nil)
	dir.On("GroupsOf", ctx, "alice").Return([]string{"team-a", "ops"}, nil)
	dir.On("Bind", ctx, "bob", "bad").Return(errors.New("invalid credentials"))

	r := NewDirectoryResolver(dir)

	id, err := r.Resolve(ctx, Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, []string{"team-a", "ops"}, id.Groups)

	_, err = r.Resolve(ctx, Credentials{Username: "bob", Password: "bad"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	dir.AssertExpectations(t)
	dir.AssertNotCalled(t, "GroupsOf", ctx, "bob")
}

type stubResolver struct {
	id  Identity
	err error
}

func (s stubResolver) Resolve(context.Context, Credentials) (Identity, error) {
	return s.id, s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	chain := NewChain(nil,
		stubResolver{err: ErrNotApplicable},
		stubResolver{err: ErrAuthenticationFailed},
		stubResolver{id: Identity{Username: "alice"}},
	)
	id, err := chain.Resolve(ctx, Credentials{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)

	failing := NewChain(nil, stubResolver{err: errors.New("directory unreachable")})
	_, err = failing.Resolve(ctx, Credentials{Username: "alice"})
	assert.Equal(t, ErrAuthenticationFailed, err)

	_, err = NewChain(nil).Resolve(ctx, Credentials{Username: "alice"})
	assert.Equal(t, ErrAuthenticationFailed, err)
}
