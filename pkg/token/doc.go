// Package token generates and verifies admin API bearer tokens.
//
// A token is "omat_" followed by 43 characters of Base64 RawURL encoded
// random bytes. The server only ever stores the hex SHA-256 hash of a
// token and compares hashes in constant time.
package token
