package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrUpstream is returned when the proxied service answers with an error.
var ErrUpstream = errors.New("upstream error")

// Client is the internal call site of the proxy. It signs every request
// with the process secret.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewClient creates a Client calling the proxy served at baseURL.
func NewClient(baseURL, secret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), secret: secret, http: httpClient}
}

// ConnectorStatus is the subset of the Connect status payload surfaced to
// users.
type ConnectorStatus struct {
	Name      string `json:"name"`
	Connector struct {
		State    string `json:"state"`
		WorkerID string `json:"worker_id"`
	} `json:"connector"`
	Tasks []struct {
		ID       int    `json:"id"`
		State    string `json:"state"`
		WorkerID string `json:"worker_id"`
	} `json:"tasks"`
}

// RestartConnector restarts a connector and its tasks.
func (c *Client) RestartConnector(ctx context.Context, cluster, connect, name string) error {
	path := "/connectors/" + url.PathEscape(name) + "/restart?includeTasks=true"
	resp, err := c.do(ctx, http.MethodPost, ConnectPrefix+path, cluster, connect)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// GetConnectorStatus reads the runtime status of a connector.
func (c *Client) GetConnectorStatus(ctx context.Context, cluster, connect, name string) (*ConnectorStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, ConnectPrefix+"/connectors/"+url.PathEscape(name)+"/status", cluster, connect)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var status ConnectorStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode connector status: %w", err)
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path, cluster, connect string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build proxy request: %w", err)
	}
	req.Header.Set(HeaderSecret, c.secret)
	req.Header.Set(HeaderKafkaCluster, cluster)
	if connect != "" {
		req.Header.Set(HeaderConnectCluster, connect)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstream, method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
