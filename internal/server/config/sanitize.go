// Package config defines the server configuration structure.
package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Security.CredentialPassphrase != "" {
		sanitized.Security.CredentialPassphrase = maskSecret(sanitized.Security.CredentialPassphrase)
	}

	// Devices get their own backing array; cfg stays untouched.
	if len(cfg.Simulator.Devices) > 0 {
		sanitized.Simulator.Devices = make([]SimulatedDevice, len(cfg.Simulator.Devices))
		copy(sanitized.Simulator.Devices, cfg.Simulator.Devices)
		for i := range sanitized.Simulator.Devices {
			if p := sanitized.Simulator.Devices[i].Password; p != "" {
				sanitized.Simulator.Devices[i].Password = maskSecret(p)
			}
		}
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
