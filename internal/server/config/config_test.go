// Package config defines the server configuration structure.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/core/service"
	"github.com/yndnr/onvifmesh-go/pkg/crypto/adaptive"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Pool.Workers != DefaultWorkers {
		t.Errorf("Pool.Workers = %d, want %d", cfg.Pool.Workers, DefaultWorkers)
	}
	if cfg.Discovery.Repeat != 2 || cfg.Discovery.Timeout != 3*time.Second {
		t.Errorf("Discovery = %+v, want repeat 2 and timeout 3s", cfg.Discovery)
	}
	if !cfg.Discovery.ScanOnStart {
		t.Error("ScanOnStart should default to true")
	}
	if cfg.ONVIF.Backend != "simulator" {
		t.Errorf("ONVIF.Backend = %q", cfg.ONVIF.Backend)
	}
	if cfg.Storage.Enabled {
		t.Error("Storage should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("default config should verify: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Security.CredentialPassphrase = "super-secret-passphrase"
	cfg.Simulator.Devices = []SimulatedDevice{
		{Endpoint: "192.0.2.10", Username: "admin", Password: "camera-password"},
	}

	sanitized := Sanitize(cfg)

	// Original should be unchanged
	if cfg.Security.CredentialPassphrase != "super-secret-passphrase" {
		t.Error("Original config should not be modified")
	}
	if cfg.Simulator.Devices[0].Password != "camera-password" {
		t.Error("Original device password should not be modified")
	}

	if sanitized.Security.CredentialPassphrase == cfg.Security.CredentialPassphrase {
		t.Error("Sanitized config should mask the passphrase")
	}
	if len(sanitized.Security.CredentialPassphrase) != len(cfg.Security.CredentialPassphrase) {
		t.Errorf("Masked passphrase length = %d, want %d",
			len(sanitized.Security.CredentialPassphrase), len(cfg.Security.CredentialPassphrase))
	}
	if strings.Contains(sanitized.Simulator.Devices[0].Password, "password") {
		t.Errorf("device password not masked: %q", sanitized.Simulator.Devices[0].Password)
	}
	if sanitized.Simulator.Devices[0].Username != "admin" {
		t.Error("username should be kept")
	}
}

func TestSanitize_Empty(t *testing.T) {
	sanitized := Sanitize(&ServerConfig{})

	if sanitized.Security.CredentialPassphrase != "" {
		t.Error("Empty passphrase should remain empty")
	}
	if sanitized.Simulator.Devices != nil {
		t.Error("no devices should stay nil")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a", "****"},
		{"ab", "****"},
		{"abc", "****"},
		{"abcd", "****"},
		{"abcde", "ab*de"},
		{"abcdef", "ab**ef"},
		{"1234567890", "12******90"},
	}

	for _, tt := range tests {
		result := maskSecret(tt.input)
		if result != tt.expected {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{"valid", func(c *ServerConfig) {}, ""},
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "localhost" }, "server.http.addr"},
		{"cert without key", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "/tmp/cert.pem" }, "set together"},
		{"negative rate", func(c *ServerConfig) { c.Server.HTTP.RateLimit = -1 }, "rate_limit"},
		{"rate without burst", func(c *ServerConfig) { c.Server.HTTP.RateBurst = 0 }, "rate_burst"},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
		{"bad token hash", func(c *ServerConfig) { c.Server.HTTP.AdminTokenHashes = []string{"secret"} }, "admin_token_hashes[0]"},
		{"relative socket", func(c *ServerConfig) { c.Server.Local.SocketPath = "run/om.sock" }, "socket_path"},
		{"no workers", func(c *ServerConfig) { c.Pool.Workers = 0 }, "pool.workers"},
		{"no repeat", func(c *ServerConfig) { c.Discovery.Repeat = 0 }, "discovery.repeat"},
		{"no timeout", func(c *ServerConfig) { c.Discovery.Timeout = 0 }, "discovery.timeout"},
		{"unknown backend", func(c *ServerConfig) { c.ONVIF.Backend = "soap" }, "onvif.backend"},
		{"no call timeout", func(c *ServerConfig) { c.ONVIF.CallTimeout = 0 }, "call_timeout"},
		{"negative retries", func(c *ServerConfig) { c.ONVIF.StreamRetries = -1 }, "stream_retries"},
		{"retries without delay", func(c *ServerConfig) { c.ONVIF.StreamRetryDelay = 0 }, "stream_retry_delay"},
		{"retries disabled", func(c *ServerConfig) {
			c.ONVIF.StreamRetries = 0
			c.ONVIF.StreamRetryDelay = 0
		}, ""},
		{"bad simulated device", func(c *ServerConfig) {
			c.Simulator.Devices = []SimulatedDevice{{Endpoint: "rtsp://192.0.2.1/"}}
		}, "simulator.devices[0]"},
		{"storage without dir", func(c *ServerConfig) {
			c.Storage.Enabled = true
			c.Storage.DataDir = ""
		}, "storage.data_dir"},
		{"in-memory storage", func(c *ServerConfig) {
			c.Storage.Enabled = true
			c.Storage.InMemory = true
			c.Storage.DataDir = ""
		}, ""},
		{"unknown cipher", func(c *ServerConfig) { c.Security.Cipher = "rot13" }, "security.cipher"},
		{"chacha", func(c *ServerConfig) { c.Security.Cipher = string(adaptive.CipherChaCha20) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Verify failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_CreateDataDir(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "subdir", "data")

	cfg := Default()
	cfg.Storage.Enabled = true
	cfg.Storage.DataDir = newDir

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Check directory was created
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("Data directory should have been created")
	}
}

func TestComponents(t *testing.T) {
	cfg := Default()
	cfg.Pool.Workers = 3
	cfg.Discovery.ScanRate = 1.5
	cfg.Storage.InMemory = true
	cfg.Security.CredentialPassphrase = "pw"
	cfg.Security.Cipher = string(adaptive.CipherAESGCM)
	cfg.Simulator.Devices = []SimulatedDevice{
		{Endpoint: "192.0.2.10", Name: "Lobby", Username: "admin", Password: "pw", Hidden: true},
	}
	cfg.Hosts = map[string]string{"192.0.2.10": "lobby-cam"}

	if pc := ToPoolConfig(cfg); pc.Workers != 3 {
		t.Errorf("pool workers = %d, want 3", pc.Workers)
	}

	fc := ToFleetConfig(cfg)
	if fc.ScanRate != 1.5 || fc.DiscoveryRepeat != 2 || fc.CallTimeout != DefaultCallTimeout ||
		fc.StreamRetries != DefaultStreamRetries || fc.StreamRetryDelay != DefaultStreamRetryDelay {
		t.Errorf("unexpected fleet config %+v", fc)
	}

	kv := ToKVConfig(cfg)
	if !kv.InMemory || kv.Badger.GCInterval != DefaultGCInterval {
		t.Errorf("unexpected kv config %+v", kv)
	}

	io := ToInventoryOptions(cfg)
	if io.Passphrase != "pw" || io.Cipher != adaptive.CipherAESGCM {
		t.Errorf("unexpected inventory options %+v", io)
	}

	if lc := ToLoggerConfig(cfg); lc.Level != "info" || lc.Format != "json" {
		t.Errorf("unexpected logger config %+v", lc)
	}

	devs := SimulatorDevices(cfg)
	if len(devs) != 1 || devs[0].Scopes.Name != "Lobby" || !devs[0].Hidden || devs[0].Username != "admin" {
		t.Errorf("unexpected simulator devices %+v", devs)
	}

	chain, ok := Resolver(cfg).(service.ChainResolver)
	if !ok || len(chain) != 2 {
		t.Fatalf("expected DNS and static resolvers, got %#v", Resolver(cfg))
	}
	if _, ok := chain[1].(service.StaticResolver); !ok {
		t.Errorf("second resolver = %T, want StaticResolver", chain[1])
	}
}
