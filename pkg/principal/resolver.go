package principal

import (
	"context"
	"errors"
	"log/slog"
)

// ErrAuthenticationFailed is returned when credentials cannot be resolved.
// It never says which factor was wrong.
var ErrAuthenticationFailed = errors.New("authentication failed")

// ErrNotApplicable is returned by a strategy that does not handle the
// presented kind of credentials.
var ErrNotApplicable = errors.New("credentials not handled by this strategy")

// Identity is the provider-neutral result of a resolution.
type Identity struct {
	Username string
	Groups   []string
}

// Credentials carries what the caller presented. Token is set for bearer
// authentication; Username and Password for basic authentication.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// IsBearer reports whether these are bearer-token credentials.
func (c Credentials) IsBearer() bool { return c.Token != "" }

// Resolver turns credentials into an identity.
type Resolver interface {
	Resolve(ctx context.Context, creds Credentials) (Identity, error)
}

// Chain tries each resolver in order and returns the first success.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
}

// NewChain creates a Chain over resolvers.
func NewChain(logger *slog.Logger, resolvers ...Resolver) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{resolvers: resolvers, logger: logger}
}

// Resolve returns ErrAuthenticationFailed if no resolver accepts creds.
func (c *Chain) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	for _, r := range c.resolvers {
		id, err := r.Resolve(ctx, creds)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNotApplicable) {
			c.logger.Debug("credential resolution failed", "resolver", resolverName(r), "error", err)
		}
	}
	return Identity{}, ErrAuthenticationFailed
}

func resolverName(r Resolver) string {
	switch r.(type) {
	case *LocalResolver:
		return "local"
	case *DirectoryResolver:
		return "directory"
	case *OAuthResolver:
		return "oauth"
	case *JWTResolver:
		return "jwt"
	default:
		return "custom"
	}
}
