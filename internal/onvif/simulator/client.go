package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
)

var errClosed = errors.New("simulator: client closed")

type client struct {
	network  *Network
	endpoint string
	host     string

	mu      sync.Mutex
	creds   onvif.Credentials
	lastErr error
	closed  bool
}

var _ onvif.Client = (*client)(nil)

func (c *client) Endpoint() string { return c.endpoint }
func (c *client) Host() string     { return c.host }

func (c *client) SetCredentials(creds onvif.Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *client) Credentials() onvif.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

func (c *client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *client) Authenticate(ctx context.Context) error {
	_, err := c.call(ctx, OpAuthenticate)
	return err
}

func (c *client) Profiles(ctx context.Context) ([]onvif.Profile, error) {
	dev, err := c.call(ctx, OpProfiles)
	if err != nil {
		return nil, err
	}
	out := make([]onvif.Profile, len(dev.Profiles))
	copy(out, dev.Profiles)
	return out, nil
}

func (c *client) Snapshot(ctx context.Context, profile int) (*onvif.Snapshot, error) {
	dev, err := c.call(ctx, OpSnapshot)
	if err != nil {
		return nil, err
	}
	if profile < 0 || profile >= len(dev.Profiles) {
		return nil, fmt.Errorf("%w: no profile %d", onvif.ErrSOAP, profile)
	}
	if dev.FailSnapshot {
		return nil, fmt.Errorf("%w: snapshot uri not supported", onvif.ErrSOAP)
	}
	data, err := thumbnail(c.endpoint, profile)
	if err != nil {
		return nil, err
	}
	return &onvif.Snapshot{Data: data, ContentType: "image/png"}, nil
}

func (c *client) StreamURI(ctx context.Context, profile int) (string, error) {
	dev, err := c.call(ctx, OpStreamURI)
	if err != nil {
		return "", err
	}
	if profile < 0 || profile >= len(dev.Profiles) {
		return "", fmt.Errorf("%w: no profile %d", onvif.ErrSOAP, profile)
	}
	return fmt.Sprintf("rtsp://%s:554/stream/%s", c.host, dev.Profiles[profile].Token), nil
}

func (c *client) Scopes(ctx context.Context) (onvif.Scopes, error) {
	dev, err := c.call(ctx, OpScopes)
	if err != nil {
		return onvif.Scopes{}, err
	}
	return dev.Scopes, nil
}

func (c *client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// call performs the shared part of every operation: reachability, then the
// credential check, recording the outcome as the last error.
func (c *client) call(ctx context.Context, op string) (Device, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Device{}, errClosed
	}
	creds := c.creds
	c.mu.Unlock()

	dev, err := c.network.lookup(ctx, op, c.endpoint)
	if err == nil && dev.Username != "" &&
		(creds.Username != dev.Username || creds.Password != dev.Password) {
		err = fmt.Errorf("%w: %s rejected credentials for %q", onvif.ErrNotAuthorized, c.endpoint, creds.Username)
	}

	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return dev, err
}
