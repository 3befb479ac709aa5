package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/onvifmesh-go/internal/core/service"
	"github.com/yndnr/onvifmesh-go/internal/onvif/simulator"
	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
	"github.com/yndnr/onvifmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/metric"
	"github.com/yndnr/onvifmesh-go/pkg/token"
	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

const camA = "http://192.0.2.10/onvif/device_service"

type stack struct {
	srv     *httptest.Server
	fleet   *service.FleetService
	metrics *metric.Registry
}

func newStack(t *testing.T, rateLimit float64, burst int) *stack {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: io.Discard})
	require.NoError(t, err)

	reg := metric.NewRegistry()
	pool := workqueue.NewPool(workqueue.Config{Workers: 2}, workqueue.WithLogger(log.Slog()))
	require.NoError(t, pool.Start())

	pres := presenter.New(256, log.Slog())
	go pres.Run(context.Background())

	net := simulator.NewNetwork(simulator.Device{Endpoint: camA})
	cfg := service.DefaultConfig()
	cfg.ScanRate = 0
	cfg.DiscoveryTimeout = time.Second
	fleet := service.NewFleetService(cfg, service.Deps{
		Pool:       pool,
		Presenter:  pres,
		Factory:    net.Factory(),
		Discoverer: net,
		Player:     player.NewVirtual(nil),
		Resolver:   service.StaticResolver{},
		Metrics:    reg,
		Logger:     log.Slog(),
	})

	router := NewRouter(RouterConfig{
		Fleet:     fleet,
		Logger:    log,
		Metrics:   reg.Handler(),
		Observer:  reg,
		RateLimit: rateLimit,
		RateBurst: burst,
	})
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = fleet.Shutdown(ctx)
		pres.Stop()
	})
	return &stack{srv: srv, fleet: fleet, metrics: reg}
}

func (s *stack) do(t *testing.T, method, path string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, nil)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_RequestID(t *testing.T) {
	s := newStack(t, 0, 0)

	resp := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("X-Request-ID")
	assert.True(t, strings.HasPrefix(id, "req-"), id)

	var body handler.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, id, body.RequestID)

	resp = s.do(t, http.MethodGet, "/health", map[string]string{"X-Request-ID": "client-42"})
	assert.Equal(t, "client-42", resp.Header.Get("X-Request-ID"))

	resp = s.do(t, http.MethodGet, "/health", map[string]string{"X-Request-ID": "bad id\twith spaces"})
	assert.True(t, strings.HasPrefix(resp.Header.Get("X-Request-ID"), "req-"))
}

func TestRouter_ScanAndList(t *testing.T) {
	s := newStack(t, 0, 0)

	resp := s.do(t, http.MethodPost, "/api/v1/scan", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp := s.do(t, http.MethodGet, "/api/v1/devices", nil)
		var body struct {
			Data handler.ListDevicesResponse `json:"data"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) != nil || body.Data.Total != 1 {
			return false
		}
		return body.Data.Items[0].Thumbnail.State == presenter.ThumbnailImage
	}, 5*time.Second, 20*time.Millisecond)

	id := s.fleet.Snapshot().Rows[0].ID
	resp = s.do(t, http.MethodGet, "/api/v1/devices/"+id+"/thumbnail", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestRouter_RateLimit(t *testing.T) {
	s := newStack(t, 1, 2)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, s.do(t, http.MethodGet, "/api/v1/pool", nil).StatusCode)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])

	resp := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health endpoints are not rate limited")
}

func TestRouter_Metrics(t *testing.T) {
	s := newStack(t, 0, 0)

	s.do(t, http.MethodGet, "/api/v1/pool", nil)
	s.do(t, http.MethodGet, "/api/v1/devices/dev-missing", nil)

	resp := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, `onvifmesh_http_requests_total{method="GET",route="GET /api/v1/pool",status="200"} 1`)
	assert.Contains(t, text, `route="GET /api/v1/devices/{id}",status="404"`)
	assert.Contains(t, text, "onvifmesh_pool_workers")
}

func TestRouter_Events(t *testing.T) {
	s := newStack(t, 0, 0)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, strings.HasPrefix(resp.Header.Get("X-Request-ID"), "req-"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var first handler.StreamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)

	require.NoError(t, s.fleet.Scan(context.Background()))

	seen := map[string]bool{}
	for !seen["row.added"] {
		var msg handler.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "event", msg.Type)
		require.NotNil(t, msg.Event)
		seen[msg.Event.Kind] = true
	}
	assert.True(t, seen["rows.reset"], "the scan reset precedes the new row")
}

func TestRecover(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: io.Discard})
	require.NoError(t, err)

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(log.Slog()), RequestID(log))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "OM-SYS-5000", rec.Header().Get("X-Error-Code"))
	assert.Contains(t, rec.Body.String(), `"code":"OM-SYS-5000"`)
}

func TestAdminToken(t *testing.T) {
	tok, err := token.Generate()
	require.NoError(t, err)
	h := AdminToken([]string{token.Hash("omat_old"), token.Hash(tok)})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + tok, http.StatusNoContent},
		{"second hash", "Bearer omat_old", http.StatusNoContent},
		{"wrong token", "Bearer omat_nope", http.StatusUnauthorized},
		{"basic scheme", "Basic " + tok, http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "OM-SYS-4010", rec.Header().Get("X-Error-Code"))
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		hdr    map[string]string
		want   string
	}{
		{"remote addr", "192.0.2.1:5000", nil, "192.0.2.1"},
		{"ipv6", "[2001:db8::1]:5000", nil, "2001:db8::1"},
		{"forwarded", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}, "198.51.100.7"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"no port", "192.0.2.9", nil, "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.hdr {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}
