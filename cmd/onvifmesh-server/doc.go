// Package main provides the entry point for onvifmesh-server.
//
// The server keeps a fleet of ONVIF cameras: it discovers devices, loads
// their identity, media profiles and snapshots on a bounded worker pool,
// plays the selected device's stream and serves the result over an
// HTTP/WebSocket admin API.
//
// Usage:
//
//	onvifmesh-server [flags]
//	onvifmesh-server --config /etc/onvifmesh/server.yaml
//	onvifmesh-server --gen-token
//
// --gen-token prints a new admin token and the hash to list under
// server.http.admin_token_hashes.
//
// Every setting can also be given as an ONVIFMESH_ environment variable,
// for example ONVIFMESH_POOL_WORKERS=4.
package main
