// Package command defines the onvifmesh-cli command tree.
//
// Commands are thin: each parses its arguments, calls one admin API
// endpoint through connection.HTTPClient and hands the decoded result to
// the formatter picked by --output.
package command
