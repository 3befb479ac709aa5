package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
)

const (
	openCam   = "http://192.0.2.10/onvif/device_service"
	lockedCam = "http://192.0.2.11/onvif/device_service"
)

func testNetwork() *Network {
	return NewNetwork(
		Device{Endpoint: openCam, Scopes: onvif.Scopes{Name: "Lobby", Hardware: "IPC-1"}},
		Device{Endpoint: lockedCam, Username: "admin", Password: "s3cret"},
		Device{Endpoint: "http://192.0.2.12/onvif/device_service", Hidden: true},
	)
}

func TestClient_OpenDevice(t *testing.T) {
	n := testNetwork()
	c, err := n.Factory()(openCam)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Authenticate(ctx))
	assert.NoError(t, c.LastError())
	assert.Equal(t, "192.0.2.10", c.Host())

	profiles, err := c.Profiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	snap, err := c.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "image/png", snap.ContentType)
	assert.NotEmpty(t, snap.Data)

	uri, err := c.StreamURI(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "rtsp://192.0.2.10:554/stream/profile_1", uri)

	scopes, err := c.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lobby", scopes.Name)
	assert.Equal(t, 1, n.Calls(OpScopes, openCam))
}

func TestClient_Credentials(t *testing.T) {
	n := testNetwork()
	c, err := n.Factory()(lockedCam)
	require.NoError(t, err)
	ctx := context.Background()

	err = c.Authenticate(ctx)
	assert.ErrorIs(t, err, onvif.ErrNotAuthorized)
	assert.ErrorIs(t, c.LastError(), onvif.ErrNotAuthorized)

	c.SetCredentials(onvif.Credentials{Username: "admin", Password: "s3cret"})
	require.NoError(t, c.Authenticate(ctx))
	assert.NoError(t, c.LastError())
	assert.Equal(t, "admin:***", c.Credentials().String())
}

func TestClient_Failures(t *testing.T) {
	n := NewNetwork(Device{Endpoint: openCam, FailSnapshot: true})
	c, err := n.Factory()(openCam)
	require.NoError(t, err)

	_, err = c.Snapshot(context.Background(), 0)
	assert.ErrorIs(t, err, onvif.ErrSOAP)

	n.Remove(openCam)
	assert.ErrorIs(t, c.Authenticate(context.Background()), onvif.ErrConnection)

	_, err = n.Factory()("ftp://192.0.2.10")
	assert.ErrorIs(t, err, onvif.ErrInvalidURL)

	require.NoError(t, c.Close())
	assert.Error(t, c.Authenticate(context.Background()))
}

func TestClient_HookAndLatency(t *testing.T) {
	n := NewNetwork(Device{Endpoint: openCam, Latency: time.Second})
	c, err := n.Factory()(openCam)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Authenticate(ctx), onvif.ErrConnection)

	boom := errors.New("boom")
	n.SetHook(func(context.Context, string, string) error { return boom })
	assert.ErrorIs(t, c.Authenticate(context.Background()), boom)
}

func TestNetwork_Discover(t *testing.T) {
	n := testNetwork()

	var found []string
	err := n.Discover(context.Background(), 2, time.Second, func(m onvif.Match) {
		found = append(found, m.Endpoint)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{openCam, lockedCam, openCam, lockedCam}, found)
}
