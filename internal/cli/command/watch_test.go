package command

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

func TestWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := newMockServer(t)
	server.handle("GET /api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		snap := &presenter.Snapshot{Version: 5, Rows: sampleRows(), Tasks: presenter.Tasks{Label: "[0/4]"}}
		conn.WriteJSON(connection.StreamMessage{Type: "snapshot", Snapshot: snap})
		row := sampleRows()[1]
		conn.WriteJSON(connection.StreamMessage{Type: "event", Event: &presenter.Event{
			Kind: "row.failed", Subject: "dev-02", Version: 6, Row: &row, Time: time.Now(),
		}})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	})

	out, err := runCLI(t, server, "watch", "--snapshot")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	for _, want := range []string{"snapshot v5: 2 devices", "tasks [0/4]", "lobby-cam", "row.failed", "dev-02", `failure="not authorized"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
