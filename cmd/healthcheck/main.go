// Package main provides a minimal HTTP healthcheck binary for the ns4kafka
// container image. It performs a GET request against the server's readiness
// endpoint and exits with code 0 on success (2xx) or code 1 on failure.
// Usage: healthcheck [url]   (default http://localhost:8080/readyz)
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

func main() {
	url := defaultURL
	if len(os.Args) > 1 {
		url = os.Args[1]
	} else if v := os.Getenv("NS4KAFKA_HEALTHCHECK_URL"); v != "" {
		url = v
	}

	if err := check(url, 5*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func check(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
