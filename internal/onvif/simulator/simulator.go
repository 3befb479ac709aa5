// Package simulator provides an in-memory ONVIF network.
//
// A Network holds simulated devices and implements both onvif.Factory (via
// Factory) and onvif.Discoverer. Latency, unreachable devices and failing
// snapshots can be configured per device; tests can intercept every call
// with a Hook to hold a step mid-flight.
package simulator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
)

// Operation names passed to hooks and counted by Calls.
const (
	OpAuthenticate = "authenticate"
	OpProfiles     = "profiles"
	OpSnapshot     = "snapshot"
	OpStreamURI    = "stream_uri"
	OpScopes       = "scopes"
)

// Device describes one simulated camera.
type Device struct {
	Endpoint string
	Scopes   onvif.Scopes

	// Username/Password are required when Username is non-empty.
	Username string
	Password string

	Profiles []onvif.Profile

	Latency      time.Duration
	Unreachable  bool
	FailSnapshot bool
	// Hidden devices answer direct calls but not discovery.
	Hidden bool
}

// Hook runs before every simulated call. A non-nil error is returned to the
// caller instead of the simulated result.
type Hook func(ctx context.Context, op, endpoint string) error

// Network is a simulated network segment.
type Network struct {
	mu      sync.RWMutex
	devices map[string]*Device
	order   []string
	hook    Hook

	callsMu sync.Mutex
	calls   map[string]int
}

// NewNetwork creates a network with the given devices.
func NewNetwork(devices ...Device) *Network {
	n := &Network{
		devices: make(map[string]*Device),
		calls:   make(map[string]int),
	}
	for _, d := range devices {
		n.Add(d)
	}
	return n
}

// Add places a device on the network, replacing any device at the same
// endpoint.
func (n *Network) Add(d Device) {
	if len(d.Profiles) == 0 {
		d.Profiles = defaultProfiles()
	}
	if u, err := onvif.ParseEndpoint(d.Endpoint); err == nil {
		d.Endpoint = u.String()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.devices[d.Endpoint]; !ok {
		n.order = append(n.order, d.Endpoint)
	}
	dev := d
	n.devices[d.Endpoint] = &dev
}

// Remove takes a device off the network.
func (n *Network) Remove(endpoint string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.devices, endpoint)
	for i, ep := range n.order {
		if ep == endpoint {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// SetPassword changes the credentials a device accepts.
func (n *Network) SetPassword(endpoint, username, password string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if d, ok := n.devices[endpoint]; ok {
		d.Username = username
		d.Password = password
	}
}

// SetHook installs a hook run before every call.
func (n *Network) SetHook(h Hook) {
	n.mu.Lock()
	n.hook = h
	n.mu.Unlock()
}

// Calls returns how many times op was invoked against endpoint.
func (n *Network) Calls(op, endpoint string) int {
	n.callsMu.Lock()
	defer n.callsMu.Unlock()
	return n.calls[op+" "+endpoint]
}

// Factory returns an onvif.Factory creating clients on this network.
func (n *Network) Factory() onvif.Factory {
	return func(endpoint string) (onvif.Client, error) {
		u, err := onvif.ParseEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
		return &client{
			network:  n,
			endpoint: u.String(),
			host:     u.Hostname(),
		}, nil
	}
}

// Discover reports every visible device, repeat times, within timeout.
func (n *Network) Discover(ctx context.Context, repeat int, timeout time.Duration, found func(onvif.Match)) error {
	if repeat <= 0 {
		repeat = 1
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for i := 0; i < repeat; i++ {
		n.mu.RLock()
		matches := make([]onvif.Match, 0, len(n.order))
		for _, ep := range n.order {
			d := n.devices[ep]
			if d.Hidden || d.Unreachable {
				continue
			}
			matches = append(matches, onvif.Match{Endpoint: d.Endpoint, Scopes: d.Scopes})
		}
		n.mu.RUnlock()

		for _, m := range matches {
			if err := ctx.Err(); err != nil {
				return nil
			}
			found(m)
		}
	}
	return nil
}

// lookup resolves the device, counts the call and applies latency and hooks.
func (n *Network) lookup(ctx context.Context, op, endpoint string) (Device, error) {
	n.callsMu.Lock()
	n.calls[op+" "+endpoint]++
	n.callsMu.Unlock()

	n.mu.RLock()
	hook := n.hook
	d, ok := n.devices[endpoint]
	var dev Device
	if ok {
		dev = *d
	}
	n.mu.RUnlock()

	if hook != nil {
		if err := hook(ctx, op, endpoint); err != nil {
			return Device{}, err
		}
	}
	if !ok || dev.Unreachable {
		return Device{}, fmt.Errorf("%w: %s unreachable", onvif.ErrConnection, endpoint)
	}
	if dev.Latency > 0 {
		select {
		case <-time.After(dev.Latency):
		case <-ctx.Done():
			return Device{}, fmt.Errorf("%w: %v", onvif.ErrConnection, ctx.Err())
		}
	}
	return dev, nil
}

func defaultProfiles() []onvif.Profile {
	return []onvif.Profile{
		{Token: "profile_1", Name: "MainStream", Width: 1920, Height: 1080},
		{Token: "profile_2", Name: "SubStream", Width: 640, Height: 360},
	}
}

// thumbnail renders a small solid PNG whose colour is derived from the
// endpoint and profile, so different snapshots are distinguishable.
func thumbnail(endpoint string, profile int) ([]byte, error) {
	h := murmur3.Sum32([]byte(fmt.Sprintf("%s#%d", endpoint, profile)))
	c := color.RGBA{R: uint8(h), G: uint8(h >> 8), B: uint8(h >> 16), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
