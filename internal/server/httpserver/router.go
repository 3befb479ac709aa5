package httpserver

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/onvifmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Fleet  handler.Fleet
	Logger logger.Logger

	// Metrics serves /metrics; nil answers 404.
	Metrics http.Handler

	// Observer receives one observation per request.
	Observer RequestObserver

	// RateLimit is the per-client request rate on /api/; zero disables it.
	RateLimit float64
	RateBurst int

	// AdminTokenHashes guards /api/ with bearer tokens; empty disables it.
	AdminTokenHashes []string

	HandlerOptions []handler.Option
}

// NewRouter creates and configures the HTTP router with all routes and
// middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	api := handler.New(cfg.Fleet, cfg.Logger.Slog(), cfg.HandlerOptions...)

	var limited http.Handler = api
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limited = RateLimit(rate.Limit(cfg.RateLimit), burst, 10*time.Minute)(api)
	}
	if len(cfg.AdminTokenHashes) > 0 {
		limited = AdminToken(cfg.AdminTokenHashes)(limited)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", api)
	mux.Handle("GET /ready", api)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.Handle("/api/", limited)

	return Chain(mux,
		Recover(cfg.Logger.Slog()),
		RequestID(cfg.Logger),
		AccessLog(cfg.Observer),
	)
}
