// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/pkg/crypto/adaptive"
	"github.com/yndnr/onvifmesh-go/pkg/token"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyPool(&cfg.Pool); err != nil {
		return err
	}
	if err := verifyDiscovery(&cfg.Discovery); err != nil {
		return err
	}
	if err := verifyONVIF(cfg); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return verifySecurity(&cfg.Security)
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "", "json", "text", "console":
		return nil
	}
	return fmt.Errorf("log.format: unknown format %q", cfg.Format)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http tls file: %w", err)
		}
	}
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		return errors.New("server.http.rate_burst must be at least 1")
	}
	for i, h := range cfg.HTTP.AdminTokenHashes {
		if !token.ValidHash(h) {
			return fmt.Errorf("server.http.admin_token_hashes[%d]: not a hex SHA-256 hash", i)
		}
	}
	if p := cfg.Local.SocketPath; p != "" && !filepath.IsAbs(p) {
		return fmt.Errorf("server.local.socket_path must be absolute, got %q", p)
	}
	return nil
}

func verifyPool(cfg *PoolSection) error {
	if cfg.Workers < 1 {
		return errors.New("pool.workers must be at least 1")
	}
	if cfg.MaxPending < 0 {
		return errors.New("pool.max_pending must not be negative")
	}
	return nil
}

func verifyDiscovery(cfg *DiscoverySection) error {
	if cfg.Repeat < 1 {
		return errors.New("discovery.repeat must be at least 1")
	}
	if cfg.Timeout <= 0 {
		return errors.New("discovery.timeout must be positive")
	}
	if cfg.ScanRate < 0 {
		return errors.New("discovery.scan_rate must not be negative")
	}
	return nil
}

func verifyONVIF(cfg *ServerConfig) error {
	if cfg.ONVIF.Backend != "simulator" {
		return fmt.Errorf("onvif.backend: unsupported backend %q", cfg.ONVIF.Backend)
	}
	if cfg.ONVIF.CallTimeout <= 0 {
		return errors.New("onvif.call_timeout must be positive")
	}
	if cfg.ONVIF.StreamRetries < 0 {
		return errors.New("onvif.stream_retries must not be negative")
	}
	if cfg.ONVIF.StreamRetries > 0 && cfg.ONVIF.StreamRetryDelay <= 0 {
		return errors.New("onvif.stream_retry_delay must be positive when retries are enabled")
	}
	for i, d := range cfg.Simulator.Devices {
		if _, err := onvif.ParseEndpoint(d.Endpoint); err != nil {
			return fmt.Errorf("simulator.devices[%d]: %w", i, err)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if !cfg.Enabled || cfg.InMemory {
		return nil
	}
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	// Check if data directory exists or can be created
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	switch adaptive.CipherType(cfg.Cipher) {
	case "", adaptive.CipherAESGCM, adaptive.CipherChaCha20:
		return nil
	default:
		return fmt.Errorf("security.cipher: unknown cipher %q", cfg.Cipher)
	}
}
