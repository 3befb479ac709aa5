package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// ErrStreamClosed is returned by Next once the server ended the stream.
var ErrStreamClosed = errors.New("event stream closed")

// StreamMessage is one frame of the event stream.
type StreamMessage struct {
	Type     string              `json:"type"`
	Snapshot *presenter.Snapshot `json:"snapshot,omitempty"`
	Event    *presenter.Event    `json:"event,omitempty"`
}

// EventStream reads frames from /api/v1/events.
type EventStream struct {
	conn *websocket.Conn
}

// Events opens the event stream. The first frame carries the snapshot.
func (c *HTTPClient) Events(ctx context.Context) (*EventStream, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/events"

	dialer := *websocket.DefaultDialer
	dialer.TLSClientConfig = c.tls
	if c.socket != "" {
		dialer.NetDialContext = c.dialSocket
	}

	header := http.Header{}
	header.Set("User-Agent", UserAgent)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("open event stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	return &EventStream{conn: conn}, nil
}

// Next blocks for the next frame. Gorilla answers server pings while Next
// is reading.
func (s *EventStream) Next() (StreamMessage, error) {
	var msg StreamMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			return msg, ErrStreamClosed
		}
		return msg, err
	}
	return msg, nil
}

// Close closes the stream politely.
func (s *EventStream) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
