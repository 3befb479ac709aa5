// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for onvifmesh-server.
type ServerConfig struct {
	Server    ServerSection     `koanf:"server"`
	Pool      PoolSection       `koanf:"pool"`
	Discovery DiscoverySection  `koanf:"discovery"`
	ONVIF     ONVIFSection      `koanf:"onvif"`
	Simulator SimulatorSection  `koanf:"simulator"`
	Hosts     map[string]string `koanf:"hosts"`
	Storage   StorageSection    `koanf:"storage"`
	Security  SecuritySection   `koanf:"security"`
	Log       LogSection        `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// LocalConfig configures the admin API on a Unix domain socket.
type LocalConfig struct {
	// SocketPath enables the socket. Empty disables it.
	SocketPath string `koanf:"socket_path"`
}

// HTTPConfig configures the admin HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// RateLimit is the sustained request rate allowed per client address.
	// Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// AdminTokenHashes lists SHA-256 hashes of accepted bearer tokens for
	// /api/. Empty leaves the API open.
	AdminTokenHashes []string `koanf:"admin_token_hashes"`
}

// PoolSection configures the worker pool.
type PoolSection struct {
	Workers         int           `koanf:"workers"`
	MaxPending      int           `koanf:"max_pending"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DiscoverySection configures device discovery.
type DiscoverySection struct {
	Repeat    int           `koanf:"repeat"`
	Timeout   time.Duration `koanf:"timeout"`
	ScanRate  float64       `koanf:"scan_rate"`
	ScanBurst int           `koanf:"scan_burst"`
	// ScanOnStart runs a scan as soon as the server is up.
	ScanOnStart bool `koanf:"scan_on_start"`
}

// ONVIFSection configures the device protocol backend.
type ONVIFSection struct {
	// Backend selects the protocol implementation. Only "simulator" ships
	// with the server.
	Backend     string        `koanf:"backend"`
	CallTimeout time.Duration `koanf:"call_timeout"`

	// StreamRetries is how often a broken stream is reopened, each after
	// StreamRetryDelay.
	StreamRetries    int           `koanf:"stream_retries"`
	StreamRetryDelay time.Duration `koanf:"stream_retry_delay"`
}

// SimulatorSection lists the cameras of the simulated network.
type SimulatorSection struct {
	Devices []SimulatedDevice `koanf:"devices"`
}

// SimulatedDevice describes one simulated camera.
type SimulatedDevice struct {
	Endpoint     string        `koanf:"endpoint"`
	Name         string        `koanf:"name"`
	Hardware     string        `koanf:"hardware"`
	Location     string        `koanf:"location"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	Hidden       bool          `koanf:"hidden"`
	Unreachable  bool          `koanf:"unreachable"`
	FailSnapshot bool          `koanf:"fail_snapshot"`
	Latency      time.Duration `koanf:"latency"`
}

// StorageSection configures the device inventory.
type StorageSection struct {
	Enabled    bool          `koanf:"enabled"`
	DataDir    string        `koanf:"data_dir"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// SecuritySection configures credential storage.
type SecuritySection struct {
	// CredentialPassphrase enables encrypted credential storage. Empty
	// means device credentials are never written to disk.
	CredentialPassphrase string `koanf:"credential_passphrase"`
	// Cipher is "aes-gcm" or "chacha20-poly1305"; empty picks one for the
	// host CPU.
	Cipher string `koanf:"cipher"`
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add_source"`
}
