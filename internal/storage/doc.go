// Package storage persists the device inventory.
//
// The inventory is small and long-lived: devices added by URL, so they come
// back after a restart or rescan, and the credentials accepted by each
// endpoint, so users are not prompted again. Both live in an embedded Badger
// store behind the KVEngine interface. Credentials are sealed with an
// adaptive cipher keyed from the configured passphrase; the Argon2 salt is
// kept in the store itself.
package storage
