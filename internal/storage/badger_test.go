package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestEngine(t *testing.T) *BadgerEngine {
	t.Helper()

	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = 0 // no background GC in tests

	engine, err := NewBadgerEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("k"), []byte("v")); err != nil {
			t.Fatal(err)
		}
		got, err := engine.Get(ctx, []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "v" {
			t.Errorf("expected v, got %s", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("missing"))
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("gone"), []byte("x")); err != nil {
			t.Fatal(err)
		}
		if err := engine.Delete(ctx, []byte("gone")); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Get(ctx, []byte("gone")); err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
		}
	})
}

func TestBadgerEngine_Scan(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := engine.Set(ctx, []byte(fmt.Sprintf("a/%d", i)), []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := engine.Set(ctx, []byte("b/0"), []byte{0}); err != nil {
		t.Fatal(err)
	}

	var keys []string
	err := engine.Scan(ctx, []byte("a/"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 5 {
		t.Fatalf("expected 5 keys, got %v", keys)
	}
	if keys[0] != "a/0" || keys[4] != "a/4" {
		t.Errorf("unexpected order: %v", keys)
	}

	n := 0
	_ = engine.Scan(ctx, []byte("a/"), func(_, _ []byte) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Errorf("expected scan to stop after 2, got %d", n)
	}
}

func TestBadgerEngine_InMemory(t *testing.T) {
	cfg := KVConfig{InMemory: true, Badger: DefaultBadgerConfig()}
	engine, err := NewBadgerEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	rewrites, err := engine.GC(ctx)
	if err != nil {
		t.Fatalf("GC in memory mode: %v", err)
	}
	if rewrites != 0 {
		t.Errorf("expected no rewrites, got %d", rewrites)
	}
}

func TestBadgerEngine_RequiresDir(t *testing.T) {
	if _, err := NewBadgerEngine(KVConfig{}, nil); err == nil {
		t.Fatal("expected error without dir")
	}
}

func TestBadgerEngine_StatsAndMetrics(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	if _, err := engine.GC(ctx); err != nil {
		t.Fatal(err)
	}
	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.LastGCTime == 0 {
		t.Error("expected LastGCTime to be set")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 4 {
		t.Errorf("expected 4 metric families, got %d", len(families))
	}
}

func TestBadgerEngine_Closed(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	ctx := context.Background()
	if _, err := engine.Get(ctx, []byte("k")); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := engine.Set(ctx, []byte("k"), nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
