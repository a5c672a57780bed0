// Package httpc provides the HTTP client shared by the pose sidecar and the
// push CLI, plus small helpers for their JSON exchanges.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 3 * time.Second
	DefaultKeepAlive      = 30 * time.Second

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// Client is the shared client used when no per-caller timeout is needed.
var Client = NewClient(DefaultTimeout)

// NewClient creates a client with the given overall timeout.
// The pose sidecar is called once per video frame, so idle connections to a
// single host are kept warm.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

// StatusError is returned when a server answers with an unexpected status.
type StatusError struct {
	Method  string
	URL     string
	Code    int
	Message string // "error" field of a JSON body, or the raw body
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, e.Message)
}

// Request sends body with the given content type and decodes a JSON answer
// into out. Any 2xx status is accepted; out may be nil.
func Request(ctx context.Context, client *http.Client, method, url, contentType string, body []byte, out any) error {
	if client == nil {
		client = Client
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(req, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", url, err)
	}
	return nil
}

// JSON sends in as a JSON body (none when in is nil) and decodes the answer
// into out.
func JSON(ctx context.Context, method, url string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = b
	}
	return Request(ctx, Client, method, url, "application/json", body, out)
}

func statusError(req *http.Request, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := string(bytes.TrimSpace(raw))

	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &StatusError{
		Method:  req.Method,
		URL:     req.URL.String(),
		Code:    resp.StatusCode,
		Message: msg,
	}
}
