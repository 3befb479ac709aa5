package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/onvif/simulator"
)

const camEndpoint = "http://192.0.2.50/onvif/device_service"

func newTestDevice(t *testing.T, net *simulator.Network, onDestroy func(*Device)) *Device {
	t.Helper()
	client, err := net.Factory()(camEndpoint)
	require.NoError(t, err)
	d, err := NewDevice(client, SourceDiscovery, onvif.Scopes{Name: "Dock"}, onDestroy)
	require.NoError(t, err)
	return d
}

func TestNewDevice(t *testing.T) {
	net := simulator.NewNetwork(simulator.Device{Endpoint: camEndpoint})
	d := newTestDevice(t, net, nil)

	assert.True(t, IsValidID(DeviceIDPrefix, d.ID))
	assert.Equal(t, camEndpoint, d.Endpoint)
	assert.Equal(t, "192.0.2.50", d.Host())
	assert.Equal(t, "Dock", d.DisplayName())
	assert.True(t, d.IsValid())
}

func TestDevice_DestroyClosesClient(t *testing.T) {
	net := simulator.NewNetwork(simulator.Device{Endpoint: camEndpoint})

	var destroyed *Device
	d := newTestDevice(t, net, func(d *Device) { destroyed = d })

	require.True(t, d.AddRef())
	d.Invalidate()
	assert.Nil(t, destroyed)

	d.Unref()
	assert.Same(t, d, destroyed)
	assert.Error(t, d.Client().Authenticate(context.Background()), "client is closed on destroy")
}

func TestDevice_ProfileIndex(t *testing.T) {
	net := simulator.NewNetwork(simulator.Device{Endpoint: camEndpoint})
	d := newTestDevice(t, net, nil)

	changed, err := d.SetProfileIndex(3)
	require.NoError(t, err, "unchecked before profiles are known")
	assert.True(t, changed)

	d.SetProfiles([]onvif.Profile{{Token: "a"}, {Token: "b"}})
	assert.Zero(t, d.ProfileIndex(), "out of range selection is clamped")

	changed, err = d.SetProfileIndex(1)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = d.SetProfileIndex(1)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = d.SetProfileIndex(2)
	assert.True(t, errors.Is(err, ErrProfileOutOfRange))
	_, err = d.SetProfileIndex(-1)
	assert.True(t, errors.Is(err, ErrProfileOutOfRange))
}

func TestDevice_AuthState(t *testing.T) {
	net := simulator.NewNetwork(simulator.Device{Endpoint: camEndpoint, Username: "admin", Password: "pw"})
	d := newTestDevice(t, net, nil)
	ctx := context.Background()

	assert.Equal(t, AuthOK, d.AuthState(), "no call made yet")

	_ = d.Client().Authenticate(ctx)
	assert.Equal(t, AuthRequired, d.AuthState())
	assert.True(t, errors.Is(d.LastError(), ErrAuthorizationRequired))

	d.SetCredentials(onvif.Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, d.Client().Authenticate(ctx))
	assert.Equal(t, AuthOK, d.AuthState())
	assert.NoError(t, d.LastError())

	net.Remove(camEndpoint)
	_ = d.Client().Authenticate(ctx)
	assert.Equal(t, AuthFailed, d.AuthState())
}

func TestGenerateID(t *testing.T) {
	a, err := GenerateID(PromptIDPrefix)
	require.NoError(t, err)
	b, err := GenerateID(PromptIDPrefix)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "ids are monotonic")
	assert.True(t, IsValidID(PromptIDPrefix, a))
	assert.False(t, IsValidID(DeviceIDPrefix, a))
	assert.False(t, IsValidID(PromptIDPrefix, "prm-short"))
}
