package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/pkg/guard"
)

// Source records how a device entered the fleet.
type Source string

const (
	SourceDiscovery Source = "discovery"
	SourceManual    Source = "manual"
	SourceInventory Source = "inventory"
)

// AuthState summarises the outcome of the last protocol call.
type AuthState string

const (
	AuthOK       AuthState = "ok"
	AuthRequired AuthState = "required"
	AuthFailed   AuthState = "failed"
)

// Device is a tracked endpoint. Its lifecycle is governed by the embedded
// Guard: steps AddRef before touching it, and the protocol client is closed
// once the device is invalidated and the last reference is released.
type Device struct {
	guard.Guard

	ID        string
	Endpoint  string
	Source    Source
	CreatedAt time.Time

	client onvif.Client

	mu           sync.Mutex
	scopes       onvif.Scopes
	hostname     string
	profiles     []onvif.Profile
	profileIndex int
	selected     bool
}

// NewDevice wraps client in a new Device. onDestroy, if non-nil, runs after
// the client has been closed.
func NewDevice(client onvif.Client, source Source, scopes onvif.Scopes, onDestroy func(*Device)) (*Device, error) {
	id, err := GenerateID(DeviceIDPrefix)
	if err != nil {
		return nil, err
	}

	d := &Device{
		ID:        id,
		Endpoint:  client.Endpoint(),
		Source:    source,
		CreatedAt: time.Now(),
		client:    client,
		scopes:    scopes,
	}
	d.Init(func() {
		_ = d.client.Close()
		if onDestroy != nil {
			onDestroy(d)
		}
	})
	return d, nil
}

// Client returns the protocol client.
func (d *Device) Client() onvif.Client {
	return d.client
}

// Host returns the device address.
func (d *Device) Host() string {
	return d.client.Host()
}

// Scopes returns the advertised name, hardware and location.
func (d *Device) Scopes() onvif.Scopes {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scopes
}

// SetScopes replaces the advertised scopes.
func (d *Device) SetScopes(s onvif.Scopes) {
	d.mu.Lock()
	d.scopes = s
	d.mu.Unlock()
}

// Hostname returns the resolved host name, if any.
func (d *Device) Hostname() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostname
}

// SetHostname records the resolved host name.
func (d *Device) SetHostname(name string) {
	d.mu.Lock()
	d.hostname = name
	d.mu.Unlock()
}

// Profiles returns a copy of the known media profiles.
func (d *Device) Profiles() []onvif.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]onvif.Profile, len(d.profiles))
	copy(out, d.profiles)
	return out
}

// SetProfiles replaces the media profiles, clamping the selected index.
func (d *Device) SetProfiles(profiles []onvif.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles = append([]onvif.Profile(nil), profiles...)
	if d.profileIndex >= len(d.profiles) {
		d.profileIndex = 0
	}
}

// ProfileIndex returns the selected profile index.
func (d *Device) ProfileIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profileIndex
}

// SetProfileIndex selects a profile and reports whether the selection
// changed. Indexes are checked against known profiles only once profiles
// have been loaded.
func (d *Device) SetProfileIndex(i int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i < 0 || (len(d.profiles) > 0 && i >= len(d.profiles)) {
		return false, ErrProfileOutOfRange
	}
	if i == d.profileIndex {
		return false, nil
	}
	d.profileIndex = i
	return true, nil
}

// Selected reports whether the device is the one being viewed.
func (d *Device) Selected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// SetSelected marks or unmarks the device as the one being viewed.
func (d *Device) SetSelected(selected bool) {
	d.mu.Lock()
	d.selected = selected
	d.mu.Unlock()
}

// LastError returns the mapped outcome of the last protocol call.
func (d *Device) LastError() error {
	return FromProtocol(d.client.LastError())
}

// AuthState derives the authorization state from the last protocol call.
func (d *Device) AuthState() AuthState {
	err := d.client.LastError()
	switch {
	case err == nil:
		return AuthOK
	case errors.Is(err, onvif.ErrNotAuthorized):
		return AuthRequired
	default:
		return AuthFailed
	}
}

// Credentials returns the credentials currently used with the device.
func (d *Device) Credentials() onvif.Credentials {
	return d.client.Credentials()
}

// SetCredentials changes the credentials used with the device.
func (d *Device) SetCredentials(c onvif.Credentials) {
	d.client.SetCredentials(c)
}

// DisplayName returns the best human name for the device.
func (d *Device) DisplayName() string {
	s := d.Scopes()
	switch {
	case s.Name != "":
		return s.Name
	case d.Hostname() != "":
		return d.Hostname()
	default:
		return d.Host()
	}
}
