package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/pkg/crypto/adaptive"
)

const (
	devicePrefix = "device/"
	credPrefix   = "cred/"
	saltKey      = "meta/salt"
)

// ErrNoPassphrase is returned by credential operations when the inventory
// was opened without a passphrase.
var ErrNoPassphrase = errors.New("inventory: credential storage disabled")

// DeviceRecord is a manually added device.
type DeviceRecord struct {
	Endpoint string       `json:"endpoint"`
	AddedAt  time.Time    `json:"added_at"`
	Scopes   onvif.Scopes `json:"scopes"`
}

// InventoryOptions configures credential sealing.
type InventoryOptions struct {
	// Passphrase derives the credential key. Empty disables credential storage.
	Passphrase string
	// Cipher forces a cipher type. Empty selects the host's preferred one.
	Cipher adaptive.CipherType
}

// Inventory persists manually added devices and their credentials.
// Credentials are sealed with a key derived from the passphrase; the
// endpoint is bound as additional data so a record cannot be moved.
type Inventory struct {
	kv KVEngine

	mu     sync.Mutex
	key    []byte
	cipher adaptive.Cipher
}

// OpenInventory wraps kv. The salt is created on first use.
func OpenInventory(ctx context.Context, kv KVEngine, opts InventoryOptions) (*Inventory, error) {
	inv := &Inventory{kv: kv}
	if opts.Passphrase == "" {
		return inv, nil
	}

	salt, err := kv.Get(ctx, []byte(saltKey))
	if errors.Is(err, ErrKeyNotFound) {
		salt, err = adaptive.NewSalt()
		if err != nil {
			return nil, fmt.Errorf("inventory: new salt: %w", err)
		}
		if err := kv.Set(ctx, []byte(saltKey), salt); err != nil {
			return nil, fmt.Errorf("inventory: store salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("inventory: load salt: %w", err)
	}

	inv.key = adaptive.DeriveKey([]byte(opts.Passphrase), salt)
	if opts.Cipher != "" {
		inv.cipher, err = adaptive.NewWithType(inv.key, opts.Cipher)
	} else {
		inv.cipher, err = adaptive.New(inv.key)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: cipher: %w", err)
	}
	return inv, nil
}

// SaveDevice stores or replaces a device record.
func (inv *Inventory) SaveDevice(ctx context.Context, rec DeviceRecord) error {
	if rec.AddedAt.IsZero() {
		rec.AddedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return inv.kv.Set(ctx, []byte(devicePrefix+rec.Endpoint), data)
}

// ListDevices returns every stored device ordered by AddedAt.
func (inv *Inventory) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	var (
		out     []DeviceRecord
		scanErr error
	)
	err := inv.kv.Scan(ctx, []byte(devicePrefix), func(key, value []byte) bool {
		var rec DeviceRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			scanErr = fmt.Errorf("inventory: decode %s: %w", key, err)
			return false
		}
		out = append(out, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

// DeleteDevice removes a device record and its credentials.
func (inv *Inventory) DeleteDevice(ctx context.Context, endpoint string) error {
	if err := inv.kv.Delete(ctx, []byte(devicePrefix+endpoint)); err != nil {
		return err
	}
	return inv.kv.Delete(ctx, []byte(credPrefix+endpoint))
}

// CanStoreCredentials reports whether a passphrase was configured.
func (inv *Inventory) CanStoreCredentials() bool {
	return inv.cipher != nil
}

// SaveCredentials seals and stores creds for endpoint.
func (inv *Inventory) SaveCredentials(ctx context.Context, endpoint string, creds onvif.Credentials) error {
	if inv.cipher == nil {
		return ErrNoPassphrase
	}
	plain, err := json.Marshal(struct {
		Username string `json:"u"`
		Password string `json:"p"`
	}{creds.Username, creds.Password})
	if err != nil {
		return err
	}

	inv.mu.Lock()
	sealed, err := adaptive.Seal(inv.cipher, plain, []byte(endpoint))
	inv.mu.Unlock()
	if err != nil {
		return fmt.Errorf("inventory: seal: %w", err)
	}
	return inv.kv.Set(ctx, []byte(credPrefix+endpoint), sealed)
}

// LoadCredentials returns the stored credentials for endpoint, or
// ErrKeyNotFound.
func (inv *Inventory) LoadCredentials(ctx context.Context, endpoint string) (onvif.Credentials, error) {
	if inv.cipher == nil {
		return onvif.Credentials{}, ErrNoPassphrase
	}
	sealed, err := inv.kv.Get(ctx, []byte(credPrefix+endpoint))
	if err != nil {
		return onvif.Credentials{}, err
	}
	plain, err := adaptive.Open(inv.key, sealed, []byte(endpoint))
	if err != nil {
		return onvif.Credentials{}, fmt.Errorf("inventory: open credentials: %w", err)
	}
	var v struct {
		Username string `json:"u"`
		Password string `json:"p"`
	}
	if err := json.Unmarshal(plain, &v); err != nil {
		return onvif.Credentials{}, err
	}
	return onvif.Credentials{Username: v.Username, Password: v.Password}, nil
}

// CredentialEndpoints lists endpoints with stored credentials.
func (inv *Inventory) CredentialEndpoints(ctx context.Context) ([]string, error) {
	var out []string
	err := inv.kv.Scan(ctx, []byte(credPrefix), func(key, _ []byte) bool {
		out = append(out, strings.TrimPrefix(string(key), credPrefix))
		return true
	})
	return out, err
}
