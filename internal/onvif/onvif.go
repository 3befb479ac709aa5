// Package onvif defines the protocol collaborator used by device sessions.
//
// The fleet core never speaks a wire protocol itself. It drives a Client per
// device endpoint and a Discoverer for the network segment; concrete
// backends (the in-memory simulator, or a SOAP implementation) plug in
// through Factory.
package onvif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Protocol error classes. Backends wrap these so callers can branch with
// errors.Is.
var (
	ErrNotAuthorized = errors.New("onvif: not authorized")
	ErrConnection    = errors.New("onvif: connection error")
	ErrSOAP          = errors.New("onvif: soap fault")
	ErrInvalidURL    = errors.New("onvif: invalid device url")
)

// Credentials are the username/password pair sent to a device.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// IsZero reports whether no username was provided.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// String never prints the password.
func (c Credentials) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return c.Username + ":***"
}

// Profile is a media profile exposed by a device.
type Profile struct {
	Token  string `json:"token"`
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Snapshot is an encoded still image. Decoding is left to presentation.
type Snapshot struct {
	Data        []byte
	ContentType string
}

// Scopes are the descriptive scopes advertised by a device.
type Scopes struct {
	Name     string `json:"name"`
	Hardware string `json:"hardware"`
	Location string `json:"location"`
}

// Match is one discovery response.
type Match struct {
	Endpoint string
	Scopes   Scopes
}

// Client talks to one device endpoint. Implementations must be safe for
// concurrent use; every blocking call honours ctx.
type Client interface {
	Endpoint() string
	Host() string

	SetCredentials(Credentials)
	Credentials() Credentials

	// Authenticate checks the current credentials and records the outcome
	// returned by LastError.
	Authenticate(ctx context.Context) error
	LastError() error

	Profiles(ctx context.Context) ([]Profile, error)
	Snapshot(ctx context.Context, profile int) (*Snapshot, error)
	StreamURI(ctx context.Context, profile int) (string, error)
	Scopes(ctx context.Context) (Scopes, error)

	Close() error
}

// Factory creates a Client for an endpoint. It fails with ErrInvalidURL when
// the endpoint cannot be a device service address.
type Factory func(endpoint string) (Client, error)

// Discoverer searches the local segment for devices. found may be called
// several times for the same endpoint; deduplication is the caller's job.
type Discoverer interface {
	Discover(ctx context.Context, repeat int, timeout time.Duration, found func(Match)) error
}

// ParseEndpoint validates a device service URL and returns it normalised.
// A bare host or host:port is expanded to the default service path.
func ParseEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/onvif/device_service"
	}
	u.User = nil
	return u, nil
}

// HostOf returns the host part of an endpoint URL, without port.
func HostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

// Classify maps an error to its protocol class: ErrNotAuthorized,
// ErrConnection, ErrSOAP, or nil when err is nil. Unknown errors are
// treated as connection errors.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotAuthorized):
		return ErrNotAuthorized
	case errors.Is(err, ErrSOAP):
		return ErrSOAP
	default:
		return ErrConnection
	}
}
