package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// resultHeader carries the apply outcome.
const resultHeader = "X-Ns4kafka-Result"

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Code    string   `json:"error"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("server returned %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Reasons) > 0 {
		msg += "\n  - " + strings.Join(e.Reasons, "\n  - ")
	}
	return msg
}

type ns4kafkaClient struct {
	baseURL  string
	http     *http.Client
	user     string
	password string
	token    string
}

func newClient() *ns4kafkaClient {
	return &ns4kafkaClient{
		baseURL:  strings.TrimRight(serverURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		user:     username,
		password: password,
		token:    token,
	}
}

func (c *ns4kafkaClient) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.user != "":
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		apiErr := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return resp, nil
}

// getJSON performs a GET request and decodes the response.
func (c *ns4kafkaClient) getJSON(path string, v any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// postJSON sends body and returns the decoded answer with the apply result.
func (c *ns4kafkaClient) postJSON(path string, body, v any) (string, error) {
	resp, err := c.do(http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	result := resp.Header.Get(resultHeader)
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return result, nil
	}
	return result, json.NewDecoder(resp.Body).Decode(v)
}

// deletePath performs a DELETE and returns the apply result.
func (c *ns4kafkaClient) deletePath(path string) (string, error) {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return resp.Header.Get(resultHeader), nil
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// namespacedPath joins /api/namespaces/{ns} with the escaped segments.
func namespacedPath(ns string, segments ...string) string {
	parts := []string{"/api/namespaces", url.PathEscape(ns)}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

func withDryRun(path string, dryRun bool) string {
	if dryRun {
		return path + "?dryrun=true"
	}
	return path
}
