// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr  = "127.0.0.1:5080"
	DefaultRateLimit = 20
	DefaultRateBurst = 40

	DefaultWorkers         = 8
	DefaultShutdownTimeout = 10 * time.Second

	DefaultDiscoveryRepeat  = 2
	DefaultDiscoveryTimeout = 3 * time.Second
	DefaultScanRate         = 0.2
	DefaultScanBurst        = 2

	DefaultBackend          = "simulator"
	DefaultCallTimeout      = 10 * time.Second
	DefaultStreamRetries    = 3
	DefaultStreamRetryDelay = time.Second

	DefaultDataDir    = "/var/lib/onvifmesh-server/data"
	DefaultGCInterval = 10 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:      DefaultHTTPAddr,
				RateLimit: DefaultRateLimit,
				RateBurst: DefaultRateBurst,
			},
		},
		Pool: PoolSection{
			Workers:         DefaultWorkers,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Discovery: DiscoverySection{
			Repeat:      DefaultDiscoveryRepeat,
			Timeout:     DefaultDiscoveryTimeout,
			ScanRate:    DefaultScanRate,
			ScanBurst:   DefaultScanBurst,
			ScanOnStart: true,
		},
		ONVIF: ONVIFSection{
			Backend:          DefaultBackend,
			CallTimeout:      DefaultCallTimeout,
			StreamRetries:    DefaultStreamRetries,
			StreamRetryDelay: DefaultStreamRetryDelay,
		},
		Storage: StorageSection{
			Enabled:    false,
			DataDir:    DefaultDataDir,
			GCInterval: DefaultGCInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
