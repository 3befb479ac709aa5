package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/pkg/crypto/adaptive"
)

const camA = "http://192.0.2.10/onvif/device_service"

func TestInventory_Devices(t *testing.T) {
	ctx := context.Background()
	inv, err := OpenInventory(ctx, newTestEngine(t), InventoryOptions{})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	recs := []DeviceRecord{
		{Endpoint: "http://192.0.2.11/onvif/device_service", AddedAt: now.Add(time.Second)},
		{Endpoint: camA, AddedAt: now, Scopes: onvif.Scopes{Name: "Lobby"}},
	}
	for _, r := range recs {
		if err := inv.SaveDevice(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := inv.ListDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(got))
	}
	if got[0].Endpoint != camA || got[0].Scopes.Name != "Lobby" {
		t.Errorf("expected oldest first, got %+v", got[0])
	}

	if err := inv.DeleteDevice(ctx, camA); err != nil {
		t.Fatal(err)
	}
	got, _ = inv.ListDevices(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 device after delete, got %d", len(got))
	}
}

func TestInventory_CredentialsDisabledWithoutPassphrase(t *testing.T) {
	ctx := context.Background()
	inv, err := OpenInventory(ctx, newTestEngine(t), InventoryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if inv.CanStoreCredentials() {
		t.Error("expected credential storage to be disabled")
	}
	err = inv.SaveCredentials(ctx, camA, onvif.Credentials{Username: "admin"})
	if !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("expected ErrNoPassphrase, got %v", err)
	}
}

func TestInventory_CredentialsRoundTrip(t *testing.T) {
	for _, typ := range []adaptive.CipherType{adaptive.CipherAESGCM, adaptive.CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			ctx := context.Background()
			kv := newTestEngine(t)
			inv, err := OpenInventory(ctx, kv, InventoryOptions{Passphrase: "s3cret", Cipher: typ})
			if err != nil {
				t.Fatal(err)
			}

			want := onvif.Credentials{Username: "admin", Password: "hunter2"}
			if err := inv.SaveCredentials(ctx, camA, want); err != nil {
				t.Fatal(err)
			}

			raw, err := kv.Get(ctx, []byte(credPrefix+camA))
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Contains(raw, []byte("hunter2")) {
				t.Fatal("password stored in clear")
			}

			// Reopen over the same store: the salt must be reused.
			again, err := OpenInventory(ctx, kv, InventoryOptions{Passphrase: "s3cret"})
			if err != nil {
				t.Fatal(err)
			}
			got, err := again.LoadCredentials(ctx, camA)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("expected %v, got %v", want, got)
			}

			eps, err := again.CredentialEndpoints(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(eps) != 1 || eps[0] != camA {
				t.Errorf("unexpected endpoints %v", eps)
			}
		})
	}
}

func TestInventory_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	kv := newTestEngine(t)

	inv, err := OpenInventory(ctx, kv, InventoryOptions{Passphrase: "right"})
	if err != nil {
		t.Fatal(err)
	}
	if err := inv.SaveCredentials(ctx, camA, onvif.Credentials{Username: "admin", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	wrong, err := OpenInventory(ctx, kv, InventoryOptions{Passphrase: "wrong"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.LoadCredentials(ctx, camA); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}

func TestInventory_CredentialsBoundToEndpoint(t *testing.T) {
	ctx := context.Background()
	kv := newTestEngine(t)
	inv, err := OpenInventory(ctx, kv, InventoryOptions{Passphrase: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if err := inv.SaveCredentials(ctx, camA, onvif.Credentials{Username: "u", Password: "p"}); err != nil {
		t.Fatal(err)
	}

	other := "http://192.0.2.99/onvif/device_service"
	sealed, _ := kv.Get(ctx, []byte(credPrefix+camA))
	if err := kv.Set(ctx, []byte(credPrefix+other), sealed); err != nil {
		t.Fatal(err)
	}
	if _, err := inv.LoadCredentials(ctx, other); err == nil {
		t.Fatal("expected moved record to fail authentication")
	}
}

func TestInventory_LoadMissing(t *testing.T) {
	ctx := context.Background()
	inv, err := OpenInventory(ctx, newTestEngine(t), InventoryOptions{Passphrase: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inv.LoadCredentials(ctx, camA); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}
