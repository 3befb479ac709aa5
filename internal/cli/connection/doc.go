// Package connection talks to an onvifmesh server for onvifmesh-cli.
//
// HTTPClient wraps the admin API: every JSON reply arrives in the
// {code, message, request_id, data} envelope and ParseResponse unwraps it,
// turning error envelopes into *APIError. EventStream follows the
// /api/v1/events websocket.
package connection
