package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const (
	// Prefix marks admin tokens so they are recognisable in logs and files.
	Prefix = "omat_"

	// DefaultLength is the number of random bytes in a token.
	DefaultLength = 32

	// HashLength is the length of a hex encoded token hash.
	HashLength = sha256.Size * 2
)

// Generate returns a new random admin token.
func Generate() (string, error) {
	b := make([]byte, DefaultLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the hex encoded SHA-256 hash of a token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Verify reports whether token hashes to expectedHash.
func Verify(token, expectedHash string) bool {
	actual := Hash(token)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(strings.ToLower(expectedHash))) == 1
}

// ValidHash reports whether s is a well-formed token hash.
func ValidHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
