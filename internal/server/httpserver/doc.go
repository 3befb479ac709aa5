// Package httpserver serves the admin API of onvifmesh-server.
//
// Routes:
//
//   - Health: /health, /ready, /metrics
//   - Fleet: /api/v1/devices, /api/v1/scan, /api/v1/selection/clear
//   - Prompts: /api/v1/prompts
//   - Status: /api/v1/pool, /api/v1/player, /api/v1/version
//   - Stream: /api/v1/events (websocket)
//
// Middleware order: Recover, RequestID, AccessLog, then RateLimit on the
// /api/ subtree only.
package httpserver
