package config

import (
	"github.com/yndnr/onvifmesh-go/internal/core/service"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/onvif/simulator"
	"github.com/yndnr/onvifmesh-go/internal/storage"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/pkg/crypto/adaptive"
	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

// ToPoolConfig maps the pool section onto the worker pool configuration.
func ToPoolConfig(cfg *ServerConfig) workqueue.Config {
	return workqueue.Config{
		Workers:    cfg.Pool.Workers,
		MaxPending: cfg.Pool.MaxPending,
	}
}

// ToFleetConfig maps discovery and protocol settings onto the fleet
// service configuration.
func ToFleetConfig(cfg *ServerConfig) service.Config {
	return service.Config{
		DiscoveryRepeat:  cfg.Discovery.Repeat,
		DiscoveryTimeout: cfg.Discovery.Timeout,
		CallTimeout:      cfg.ONVIF.CallTimeout,
		ScanRate:         cfg.Discovery.ScanRate,
		ScanBurst:        cfg.Discovery.ScanBurst,
		StreamRetries:    cfg.ONVIF.StreamRetries,
		StreamRetryDelay: cfg.ONVIF.StreamRetryDelay,
	}
}

// ToKVConfig maps the storage section onto the KV engine configuration.
func ToKVConfig(cfg *ServerConfig) storage.KVConfig {
	kv := storage.DefaultKVConfig(cfg.Storage.DataDir)
	kv.InMemory = cfg.Storage.InMemory
	kv.Badger.GCInterval = cfg.Storage.GCInterval
	return kv
}

// ToInventoryOptions maps the security section onto inventory options.
func ToInventoryOptions(cfg *ServerConfig) storage.InventoryOptions {
	return storage.InventoryOptions{
		Passphrase: cfg.Security.CredentialPassphrase,
		Cipher:     adaptive.CipherType(cfg.Security.Cipher),
	}
}

// ToLoggerConfig maps the log section onto the logger configuration.
func ToLoggerConfig(cfg *ServerConfig) logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.AddSource = cfg.Log.AddSource
	return lc
}

// SimulatorDevices builds the simulated network from the simulator section.
func SimulatorDevices(cfg *ServerConfig) []simulator.Device {
	out := make([]simulator.Device, 0, len(cfg.Simulator.Devices))
	for _, d := range cfg.Simulator.Devices {
		out = append(out, simulator.Device{
			Endpoint: d.Endpoint,
			Scopes: onvif.Scopes{
				Name:     d.Name,
				Hardware: d.Hardware,
				Location: d.Location,
			},
			Username:     d.Username,
			Password:     d.Password,
			Latency:      d.Latency,
			Unreachable:  d.Unreachable,
			FailSnapshot: d.FailSnapshot,
			Hidden:       d.Hidden,
		})
	}
	return out
}

// Resolver returns the hostname resolver: reverse DNS first, then the
// static hosts table.
func Resolver(cfg *ServerConfig) service.Resolver {
	chain := service.ChainResolver{service.DNSResolver{}}
	if len(cfg.Hosts) > 0 {
		chain = append(chain, service.StaticResolver(cfg.Hosts))
	}
	return chain
}
