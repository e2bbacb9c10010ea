package principal

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT bearer strategy.
type JWTConfig struct {
	// UsernameClaim is the claim holding the username. Default: "sub".
	UsernameClaim string `mapstructure:"usernameClaim"`

	// GroupsClaim is the claim path holding the groups.
	// Supports dot-notation for nested claims (e.g., "realm_access.roles").
	// Default: "groups"
	GroupsClaim string `mapstructure:"groupsClaim"`

	// PublicKeyPath is the path to the PEM-encoded RSA public key for RS256 verification.
	// If empty, tokens are parsed but NOT verified (trusted proxy mode).
	PublicKeyPath string `mapstructure:"publicKeyPath"`

	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// JWTResolver reads the identity from a JWT bearer token.
type JWTResolver struct {
	cfg       JWTConfig
	publicKey *rsa.PublicKey
}

// NewJWTResolver creates a JWTResolver, loading the public key if configured.
func NewJWTResolver(cfg JWTConfig, logger *slog.Logger) (*JWTResolver, error) {
	if cfg.UsernameClaim == "" {
		cfg.UsernameClaim = "sub"
	}
	if cfg.GroupsClaim == "" {
		cfg.GroupsClaim = "groups"
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &JWTResolver{cfg: cfg}
	if cfg.PublicKeyPath == "" {
		logger.Warn("JWT resolver: no public key configured, tokens parsed without verification (trusted proxy mode)")
		return r, nil
	}

	keyData, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT public key from %s: %w", cfg.PublicKeyPath, err)
	}
	key, err := parseRSAPublicKey(keyData)
	if err != nil {
		return nil, err
	}
	r.publicKey = key
	logger.Info("JWT resolver: using RS256 verification", "keyPath", cfg.PublicKeyPath)
	return r, nil
}

func parseRSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaKey, ok := parsedKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA (got %T)", parsedKey)
	}
	return rsaKey, nil
}

func (j *JWTResolver) Resolve(_ context.Context, creds Credentials) (Identity, error) {
	// Opaque tokens are left to the OAuth strategy.
	if !creds.IsBearer() || strings.Count(creds.Token, ".") != 2 {
		return Identity{}, ErrNotApplicable
	}

	claims, err := j.parseClaims(creds.Token)
	if err != nil {
		return Identity{}, fmt.Errorf("%v: %w", err, ErrAuthenticationFailed)
	}

	username, _ := claimAt(claims, j.cfg.UsernameClaim).(string)
	if username == "" {
		return Identity{}, fmt.Errorf("claim %q missing: %w", j.cfg.UsernameClaim, ErrAuthenticationFailed)
	}
	return Identity{Username: username, Groups: stringsAt(claims, j.cfg.GroupsClaim)}, nil
}

func (j *JWTResolver) parseClaims(tokenString string) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{}
	if j.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.cfg.Issuer))
	}
	if j.cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(j.cfg.Audience))
	}

	var token *jwt.Token
	var err error
	if j.publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return j.publicKey, nil
		}, parserOpts...)
	} else {
		parser := jwt.NewParser(parserOpts...)
		token, _, err = parser.ParseUnverified(tokenString, jwt.MapClaims{})
	}
	if err != nil {
		return nil, fmt.Errorf("JWT parse error: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

// claimAt walks a dot-notation path through the claims.
func claimAt(claims jwt.MapClaims, path string) interface{} {
	var current interface{} = map[string]interface{}(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// stringsAt returns a string or string-array claim as a slice.
func stringsAt(claims jwt.MapClaims, path string) []string {
	switch v := claimAt(claims, path).(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
