// Package adaptive provides authenticated encryption with hardware-aware
// algorithm selection.
//
// AES-256-GCM is used where the CPU accelerates AES, ChaCha20-Poly1305
// elsewhere. Sealed values carry a one-byte algorithm tag, so data written
// on one host opens on any other regardless of which cipher it prefers.
//
// Usage:
//
//	key := adaptive.DeriveKey([]byte(passphrase), salt)
//	c, err := adaptive.New(key)
//	box, err := adaptive.Seal(c, plaintext, aad)
//	plaintext, err := adaptive.Open(key, box, aad)
package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length accepted by every cipher in this package.
const KeySize = 32

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

var (
	ErrInvalidKey   = errors.New("adaptive: key must be 32 bytes")
	ErrShortMessage = errors.New("adaptive: ciphertext too short")
	ErrUnknownTag   = errors.New("adaptive: unknown cipher tag")
)

// Cipher provides authenticated encryption. The nonce is generated per call
// and prepended to the ciphertext.
type Cipher interface {
	Type() CipherType
	Encrypt(plaintext, additionalData []byte) ([]byte, error)
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)
	Overhead() int
}

// New creates the preferred cipher for this host.
func New(key []byte) (Cipher, error) {
	if hasAESAcceleration() {
		return NewWithType(key, CipherAESGCM)
	}
	return NewWithType(key, CipherChaCha20)
}

// NewWithType creates a cipher of the specified type.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch cipherType {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", cipherType)
	}
	if err != nil {
		return nil, err
	}
	return &aeadCipher{typ: cipherType, aead: aead}, nil
}

func hasAESAcceleration() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x":
		return true
	default:
		return false
	}
}

type aeadCipher struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aeadCipher) Type() CipherType { return c.typ }

func (c *aeadCipher) Overhead() int {
	return c.aead.NonceSize() + c.aead.Overhead()
}

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(ciphertext) < ns+c.aead.Overhead() {
		return nil, ErrShortMessage
	}
	return c.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], additionalData)
}

const (
	tagAESGCM   byte = 1
	tagChaCha20 byte = 2
)

// Seal encrypts plaintext with c and prefixes the algorithm tag.
func Seal(c Cipher, plaintext, additionalData []byte) ([]byte, error) {
	var tag byte
	switch c.Type() {
	case CipherAESGCM:
		tag = tagAESGCM
	case CipherChaCha20:
		tag = tagChaCha20
	default:
		return nil, ErrUnknownTag
	}

	ct, err := c.Encrypt(plaintext, additionalData)
	if err != nil {
		return nil, err
	}
	return append([]byte{tag}, ct...), nil
}

// Open decrypts a value produced by Seal with the cipher named by its tag.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < 1 {
		return nil, ErrShortMessage
	}

	var typ CipherType
	switch sealed[0] {
	case tagAESGCM:
		typ = CipherAESGCM
	case tagChaCha20:
		typ = CipherChaCha20
	default:
		return nil, ErrUnknownTag
	}

	c, err := NewWithType(key, typ)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(sealed[1:], additionalData)
}
