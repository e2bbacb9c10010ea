package principal

import (
	"context"
	"fmt"
)

// Directory is the subset of a directory service used for authentication.
// The wire protocol lives behind this interface.
type Directory interface {
	// Bind verifies the username and password.
	Bind(ctx context.Context, username, password string) error
	// GroupsOf returns the groups the user belongs to.
	GroupsOf(ctx context.Context, username string) ([]string, error)
}

// DirectoryResolver authenticates basic credentials against a Directory.
type DirectoryResolver struct {
	dir Directory
}

// NewDirectoryResolver creates a DirectoryResolver.
func NewDirectoryResolver(dir Directory) *DirectoryResolver {
	return &DirectoryResolver{dir: dir}
}

func (d *DirectoryResolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	if creds.IsBearer() || creds.Username == "" || d.dir == nil {
		return Identity{}, ErrNotApplicable
	}
	if err := d.dir.Bind(ctx, creds.Username, creds.Password); err != nil {
		return Identity{}, fmt.Errorf("directory bind: %v: %w", err, ErrAuthenticationFailed)
	}
	groups, err := d.dir.GroupsOf(ctx, creds.Username)
	if err != nil {
		return Identity{}, fmt.Errorf("directory group search: %v: %w", err, ErrAuthenticationFailed)
	}
	return Identity{Username: creds.Username, Groups: groups}, nil
}
