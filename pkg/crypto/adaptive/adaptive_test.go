package adaptive

import (
	"bytes"
	"errors"
	"testing"
)

var key32 = func() []byte {
	k := make([]byte, KeySize)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}()

func TestNewWithType(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := NewWithType(key32, typ)
			if err != nil {
				t.Fatalf("NewWithType(%s) error = %v", typ, err)
			}
			if c.Type() != typ {
				t.Errorf("Type() = %s, want %s", c.Type(), typ)
			}

			ct, err := c.Encrypt([]byte("admin:secret"), []byte("aad"))
			if err != nil {
				t.Fatalf("Encrypt error = %v", err)
			}
			if len(ct) != len("admin:secret")+c.Overhead() {
				t.Errorf("ciphertext len = %d, want %d", len(ct), len("admin:secret")+c.Overhead())
			}

			pt, err := c.Decrypt(ct, []byte("aad"))
			if err != nil {
				t.Fatalf("Decrypt error = %v", err)
			}
			if string(pt) != "admin:secret" {
				t.Errorf("Decrypt = %q", pt)
			}

			if _, err := c.Decrypt(ct, []byte("other")); err == nil {
				t.Error("Decrypt with wrong aad should fail")
			}
			if _, err := c.Decrypt(ct[:4], nil); !errors.Is(err, ErrShortMessage) {
				t.Errorf("short ciphertext err = %v", err)
			}
		})
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New(make([]byte, 16)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("New(16 bytes) err = %v, want ErrInvalidKey", err)
	}
	if _, err := NewWithType(key32, "rot13"); err == nil {
		t.Error("unknown cipher type should fail")
	}
}

func TestSealOpenAcrossCiphers(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		c, err := NewWithType(key32, typ)
		if err != nil {
			t.Fatal(err)
		}
		sealed, err := Seal(c, []byte("payload"), []byte("dev"))
		if err != nil {
			t.Fatalf("Seal(%s) error = %v", typ, err)
		}

		pt, err := Open(key32, sealed, []byte("dev"))
		if err != nil {
			t.Fatalf("Open(%s) error = %v", typ, err)
		}
		if !bytes.Equal(pt, []byte("payload")) {
			t.Errorf("Open(%s) = %q", typ, pt)
		}
	}

	if _, err := Open(key32, []byte{9, 1, 2, 3}, nil); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("unknown tag err = %v", err)
	}
	if _, err := Open(key32, nil, nil); !errors.Is(err, ErrShortMessage) {
		t.Errorf("empty input err = %v", err)
	}
}

func TestDeriveKey(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatal(err)
	}
	if len(salt) != SaltSize {
		t.Fatalf("salt len = %d", len(salt))
	}

	k1 := DeriveKey([]byte("correct horse"), salt)
	k2 := DeriveKey([]byte("correct horse"), salt)
	k3 := DeriveKey([]byte("battery staple"), salt)

	if len(k1) != KeySize {
		t.Fatalf("key len = %d", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase and salt must derive the same key")
	}
	if bytes.Equal(k1, k3) {
		t.Error("different passphrases must derive different keys")
	}
}
