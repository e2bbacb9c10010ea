package principal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthConfig configures the OAuth token strategy. The provider must expose
// GET {BaseURL}/user and a paged GET {BaseURL}/groups whose next page number
// is announced in the X-Next-Page response header.
type OAuthConfig struct {
	BaseURL string `mapstructure:"baseUrl"`
	// GroupField is the JSON field holding the group name. Default: "full_path".
	GroupField string        `mapstructure:"groupField"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// MaxPages bounds group paging. Callers with more pages are refused.
	// Default: 100.
	MaxPages int `mapstructure:"maxPages"`
}

// OAuthResolver exchanges a bearer token for the caller's identity.
type OAuthResolver struct {
	cfg    OAuthConfig
	client *http.Client
}

// NewOAuthResolver creates an OAuthResolver. A nil client gets a default
// one with cfg.Timeout.
func NewOAuthResolver(cfg OAuthConfig, client *http.Client) *OAuthResolver {
	if cfg.GroupField == "" {
		cfg.GroupField = "full_path"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OAuthResolver{cfg: cfg, client: client}
}

func (o *OAuthResolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	if !creds.IsBearer() || o.cfg.BaseURL == "" {
		return Identity{}, ErrNotApplicable
	}

	var user struct {
		Username string `json:"username"`
	}
	if _, err := o.get(ctx, "/user", creds.Token, &user); err != nil {
		return Identity{}, fmt.Errorf("oauth identity: %v: %w", err, ErrAuthenticationFailed)
	}
	if user.Username == "" {
		return Identity{}, fmt.Errorf("oauth identity has no username: %w", ErrAuthenticationFailed)
	}

	var groups []string
	page := "1"
	for i := 0; page != ""; i++ {
		if i == o.cfg.MaxPages {
			return Identity{}, fmt.Errorf("oauth groups exceed %d pages: %w", o.cfg.MaxPages, ErrAuthenticationFailed)
		}
		var items []map[string]any
		hdr, err := o.get(ctx, "/groups?page="+url.QueryEscape(page), creds.Token, &items)
		if err != nil {
			return Identity{}, fmt.Errorf("oauth groups page %s: %v: %w", page, err, ErrAuthenticationFailed)
		}
		for _, item := range items {
			if g, ok := item[o.cfg.GroupField].(string); ok && g != "" {
				groups = append(groups, g)
			}
		}
		page = strings.TrimSpace(hdr.Get("X-Next-Page"))
	}

	return Identity{Username: user.Username, Groups: groups}, nil
}

func (o *OAuthResolver) get(ctx context.Context, path, token string, v any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return resp.Header, nil
}
