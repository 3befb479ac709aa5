// Package confloader loads layered configuration with koanf and watches
// the configuration file with fsnotify.
//
// Priority (highest to lowest):
//
//  1. Environment variables (ONVIFMESH_*, lists comma separated)
//  2. Configuration file (YAML)
//  3. Values already present in the target struct
package confloader
