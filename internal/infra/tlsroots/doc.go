// Package tlsroots holds the TLS material of the admin API.
//
// The server side uses a Reloader, which serves the configured key pair
// and swaps it when the files change on disk. The CLI side uses a Pool of
// trusted roots built from the system store plus an optional CA file.
package tlsroots
