package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("test message")

	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should return default logger, got nil")
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty string", got)
	}

	ctx = WithRequestID(ctx, "req-01J9")
	if got := RequestIDFromContext(ctx); got != "req-01J9" {
		t.Errorf("RequestIDFromContext() = %q, want req-01J9", got)
	}
}

func TestL_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithRequestID(WithLogger(context.Background(), l), "req-42")
	L(ctx).Info("handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry["request_id"])
	}
}

func TestStepAttributes(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithStep(context.Background(), "load_profiles", "dev-01j9")
	l.Slog().InfoContext(ctx, "step finished")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["step"] != "load_profiles" || entry["device_id"] != "dev-01j9" {
		t.Errorf("step attributes missing: %v", entry)
	}
	if _, ok := entry["worker_id"]; ok {
		t.Errorf("worker_id set outside a worker: %v", entry)
	}
}

func TestWorkerAttributes(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pool := workqueue.NewPool(workqueue.Config{Workers: 1})
	if err := pool.Start(); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	if _, err := pool.Submit("context", func(ctx context.Context) {
		defer close(done)
		l.WithContext(ctx).Info("running")
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("item did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if _, ok := entry["worker_id"]; !ok {
		t.Errorf("worker_id missing: %v", entry)
	}
	if _, ok := entry["item_id"]; !ok {
		t.Errorf("item_id missing: %v", entry)
	}
}
