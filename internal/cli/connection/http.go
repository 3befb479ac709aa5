package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// UserAgent identifies the CLI to the server.
const UserAgent = "onvifmesh-cli/1.0"

// APIError is an error envelope returned by the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Details   any
}

func (e *APIError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	socket  string
	token   string
	client  *http.Client
	tls     *tls.Config
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout bounds every request including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithTLSConfig sets the TLS configuration for https servers.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *HTTPClient) {
		c.tls = cfg
	}
}

// WithToken sends token as the admin bearer token.
func WithToken(token string) Option {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// NewHTTPClient creates a new HTTP client. A server without scheme is
// reached over plain http; unix:///path reaches the local admin socket.
func NewHTTPClient(server string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		client: &http.Client{Timeout: 30 * time.Second},
	}

	switch {
	case strings.HasPrefix(server, "unix://"):
		c.socket = strings.TrimPrefix(server, "unix://")
		c.baseURL = "http://unix"
	case strings.HasPrefix(server, "http://"), strings.HasPrefix(server, "https://"):
		c.baseURL = strings.TrimRight(server, "/")
	default:
		c.baseURL = "http://" + strings.TrimRight(server, "/")
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tls != nil || c.socket != "" {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = c.tls
		if c.socket != "" {
			transport.DialContext = c.dialSocket
		}
		c.client.Transport = transport
	}
	return c
}

func (c *HTTPClient) dialSocket(ctx context.Context, _, _ string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", c.socket)
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body. A nil body sends none.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do sends a request with an optional JSON body.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// BaseURL returns the base URL of the client, or the unix:// address for
// the local socket.
func (c *HTTPClient) BaseURL() string {
	if c.socket != "" {
		return "unix://" + c.socket
	}
	return c.baseURL
}

// TLSConfig returns the TLS configuration, nil for the defaults.
func (c *HTTPClient) TLSConfig() *tls.Config {
	return c.tls
}

// ParseResponse reads a response envelope and decodes its data into
// target. Error statuses become *APIError. The body is always closed.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		if decodeErr != nil || env.Code == "" {
			return &APIError{
				Status:  resp.StatusCode,
				Code:    "HTTP-" + fmt.Sprint(resp.StatusCode),
				Message: http.StatusText(resp.StatusCode),
			}
		}
		return &APIError{
			Status:    resp.StatusCode,
			Code:      env.Code,
			Message:   env.Message,
			RequestID: env.RequestID,
			Details:   env.Details,
		}
	}

	if decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) && target == nil {
			return nil
		}
		return fmt.Errorf("parse response: %w", decodeErr)
	}
	if target == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
