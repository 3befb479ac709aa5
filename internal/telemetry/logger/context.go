package logger

import (
	"context"
	"log/slog"

	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

type contextKey string

const (
	loggerKey    contextKey = "onvifmesh.logger"
	requestIDKey contextKey = "onvifmesh.request_id"
	stepKey      contextKey = "onvifmesh.step"
)

type stepInfo struct {
	name     string
	deviceID string
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithStep marks ctx as running workflow step name for a device.
func WithStep(ctx context.Context, name, deviceID string) context.Context {
	return context.WithValue(ctx, stepKey, stepInfo{name: name, deviceID: deviceID})
}

// L returns the context logger bound to ctx.
func L(ctx context.Context) Logger {
	return FromContext(ctx).WithContext(ctx)
}

// contextAttrs lists the attributes carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if s, ok := ctx.Value(stepKey).(stepInfo); ok {
		attrs = append(attrs, slog.String("step", s.name))
		if s.deviceID != "" {
			attrs = append(attrs, slog.String("device_id", s.deviceID))
		}
	}
	if id, ok := workqueue.ItemID(ctx); ok {
		attrs = append(attrs, slog.String("item_id", id.String()))
	}
	if id, ok := workqueue.WorkerID(ctx); ok {
		attrs = append(attrs, slog.Int("worker_id", id))
	}
	return attrs
}

// contextHandler adds contextAttrs to every record logged with a context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		r.AddAttrs(contextAttrs(ctx)...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
