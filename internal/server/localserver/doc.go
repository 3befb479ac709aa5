// Package localserver serves the admin API on a Unix domain socket.
//
// The socket is created with mode 0600, so only the server's user (and
// root) can reach it. A stale socket left by a crashed process is
// replaced; a socket that still answers is not.
package localserver
