package principal

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// LocalUser is a statically configured account.
// PasswordDigest is either a bcrypt hash ("$2a$...") or the hex SHA-256 of
// Salt followed by the password.
type LocalUser struct {
	Username       string   `mapstructure:"username"`
	Salt           string   `mapstructure:"salt"`
	PasswordDigest string   `mapstructure:"passwordDigest"`
	Groups         []string `mapstructure:"groups"`
}

// LocalResolver authenticates basic credentials against LocalUsers.
type LocalResolver struct {
	users map[string]LocalUser
	// decoy is verified for unknown usernames so that a miss costs the
	// same as a wrong password.
	decoy LocalUser
}

// NewLocalResolver creates a LocalResolver.
func NewLocalResolver(users []LocalUser) *LocalResolver {
	m := make(map[string]LocalUser, len(users))
	for _, u := range users {
		m[u.Username] = u
	}
	return &LocalResolver{users: m, decoy: decoyFor(users)}
}

// decoyFor builds an unmatchable account hashed like the configured ones.
func decoyFor(users []LocalUser) LocalUser {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	for _, u := range users {
		if !strings.HasPrefix(u.PasswordDigest, "$2") {
			continue
		}
		cost, err := bcrypt.Cost([]byte(u.PasswordDigest))
		if err != nil {
			continue
		}
		if hash, err := bcrypt.GenerateFromPassword(secret[:16], cost); err == nil {
			return LocalUser{PasswordDigest: string(hash)}
		}
	}
	salt := hex.EncodeToString(secret[16:])
	return LocalUser{Salt: salt, PasswordDigest: SaltedDigest(salt, hex.EncodeToString(secret[:16]))}
}

// SaltedDigest computes the digest stored in LocalUser.PasswordDigest.
func SaltedDigest(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func (l *LocalResolver) Resolve(_ context.Context, creds Credentials) (Identity, error) {
	if creds.IsBearer() || creds.Username == "" {
		return Identity{}, ErrNotApplicable
	}
	user, ok := l.users[creds.Username]
	if !ok {
		_ = verifyPassword(l.decoy, creds.Password)
		return Identity{}, fmt.Errorf("unknown local user: %w", ErrAuthenticationFailed)
	}
	if !verifyPassword(user, creds.Password) {
		return Identity{}, fmt.Errorf("local password mismatch: %w", ErrAuthenticationFailed)
	}
	return Identity{Username: user.Username, Groups: append([]string(nil), user.Groups...)}, nil
}

func verifyPassword(user LocalUser, password string) bool {
	if strings.HasPrefix(user.PasswordDigest, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password)) == nil
	}
	want := []byte(strings.ToLower(user.PasswordDigest))
	got := []byte(SaltedDigest(user.Salt, password))
	return subtle.ConstantTimeCompare(want, got) == 1
}
