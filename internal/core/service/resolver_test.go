package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingResolver struct{ err error }

func (f failingResolver) LookupHostname(context.Context, string) (string, error) {
	return "", f.err
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"192.0.2.10": "lobby-cam", "192.0.2.11": ""}

	name, err := r.LookupHostname(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "lobby-cam", name)

	_, err = r.LookupHostname(context.Background(), "192.0.2.11")
	assert.ErrorIs(t, err, ErrNoHostname)
	_, err = r.LookupHostname(context.Background(), "192.0.2.99")
	assert.ErrorIs(t, err, ErrNoHostname)
}

func TestChainResolver(t *testing.T) {
	dnsDown := errors.New("no such host")
	chain := ChainResolver{
		failingResolver{err: dnsDown},
		StaticResolver{"192.0.2.10": "lobby-cam"},
	}

	name, err := chain.LookupHostname(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "lobby-cam", name)

	_, err = chain.LookupHostname(context.Background(), "192.0.2.50")
	assert.ErrorIs(t, err, ErrNoHostname)

	_, err = ChainResolver{failingResolver{err: dnsDown}}.LookupHostname(context.Background(), "192.0.2.10")
	assert.ErrorIs(t, err, dnsDown)
}

func TestChainResolver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := ChainResolver{
		failingResolver{err: context.Canceled},
		StaticResolver{"192.0.2.10": "lobby-cam"},
	}
	_, err := chain.LookupHostname(ctx, "192.0.2.10")
	assert.ErrorIs(t, err, context.Canceled)
}
