package command

import (
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

func TestPoolStatus(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /api/v1/pool", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"running": 1, "pending": 2, "workers": 8, "executed": 40, "label": "[3/8]",
		})
	})

	out, err := runCLI(t, server, "pool", "status")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"TASKS", "[3/8]", "EXECUTED", "40"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, server, "-o", "yaml", "pool", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[3/8]") || !strings.Contains(out, "workers: 8") {
		t.Errorf("unexpected yaml:\n%s", out)
	}
}

func TestPlayerStatus(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /api/v1/player", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"player": player.Status{State: player.StatePlaying, URL: "rtsp://192.0.2.10/sub", Plays: 3},
			"view":   presenter.Player{Status: presenter.PlayerPlaying, DeviceID: "dev-01"},
		})
	})

	out, err := runCLI(t, server, "player", "status")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"playing", "dev-01", "rtsp://192.0.2.10/sub", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
