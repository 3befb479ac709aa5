// Package main provides the entry point for onvifmesh-cli, the
// command-line client of the onvifmesh-server admin API.
package main
