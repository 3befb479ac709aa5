package service

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrNoHostname is returned when no resolver knows a name for an address.
var ErrNoHostname = errors.New("no hostname for address")

// Resolver maps a device address to a host name.
type Resolver interface {
	LookupHostname(ctx context.Context, addr string) (string, error)
}

// DNSResolver performs reverse DNS lookups.
type DNSResolver struct {
	Resolver *net.Resolver
}

// LookupHostname returns the first PTR name for addr.
func (r DNSResolver) LookupHostname(ctx context.Context, addr string) (string, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	names, err := res.LookupAddr(ctx, addr)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if n = strings.TrimSuffix(n, "."); n != "" {
			return n, nil
		}
	}
	return "", ErrNoHostname
}

// StaticResolver answers from a fixed address to name table.
type StaticResolver map[string]string

// LookupHostname returns the configured name for addr.
func (r StaticResolver) LookupHostname(_ context.Context, addr string) (string, error) {
	if name, ok := r[addr]; ok && name != "" {
		return name, nil
	}
	return "", ErrNoHostname
}

// ChainResolver tries each resolver in order and returns the first name.
type ChainResolver []Resolver

// LookupHostname implements Resolver.
func (c ChainResolver) LookupHostname(ctx context.Context, addr string) (string, error) {
	err := ErrNoHostname
	for _, r := range c {
		name, rerr := r.LookupHostname(ctx, addr)
		if rerr == nil && name != "" {
			return name, nil
		}
		if rerr != nil {
			err = rerr
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", err
}
