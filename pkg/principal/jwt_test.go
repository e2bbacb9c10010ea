package principal

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePublicKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))
	return path
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTResolver_VerifiedToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	r, err := NewJWTResolver(JWTConfig{
		PublicKeyPath: writePublicKey(t, key),
		GroupsClaim:   "realm_access.roles",
		Issuer:        "https://idp.example.com",
	}, nil)
	require.NoError(t, err)

	token := signToken(t, key, jwt.MapClaims{
		"sub":          "alice",
		"iss":          "https://idp.example.com",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]any{"roles": []any{"team-a", "ops"}},
	})

	id, err := r.Resolve(context.Background(), Credentials{Token: token})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, []string{"team-a", "ops"}, id.Groups)
}

func TestJWTResolver_RejectsForeignSignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	r, err := NewJWTResolver(JWTConfig{PublicKeyPath: writePublicKey(t, key)}, nil)
	require.NoError(t, err)

	token := signToken(t, other, jwt.MapClaims{"sub": "mallory"})
	_, err = r.Resolve(context.Background(), Credentials{Token: token})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestJWTResolver_TrustedProxyMode(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	r, err := NewJWTResolver(JWTConfig{}, nil)
	require.NoError(t, err)

	token := signToken(t, key, jwt.MapClaims{"sub": "bob", "groups": "team-b"})
	id, err := r.Resolve(context.Background(), Credentials{Token: token})
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)
	assert.Equal(t, []string{"team-b"}, id.Groups)

	noSub := signToken(t, key, jwt.MapClaims{"groups": []any{"x"}})
	_, err = r.Resolve(context.Background(), Credentials{Token: noSub})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestJWTResolver_OpaqueTokenNotApplicable(t *testing.T) {
	r, err := NewJWTResolver(JWTConfig{}, nil)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), Credentials{Token: "glpat-opaque"})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestNewJWTResolver_BadKeyPath(t *testing.T) {
	_, err := NewJWTResolver(JWTConfig{PublicKeyPath: filepath.Join(t.TempDir(), "missing.pem")}, nil)
	assert.Error(t, err)
}
