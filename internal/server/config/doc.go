// Package config provides server configuration for OnvifMesh.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (addresses, backends, paths)
//   - sanitize.go: Log sanitization (hide passphrases and device passwords)
//   - components.go: Mapping onto component configurations
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
