package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// poolStatus mirrors GET /api/v1/pool.
type poolStatus struct {
	Label    string `json:"label" table:"TASKS"`
	Running  int    `json:"running"`
	Pending  int    `json:"pending"`
	Workers  int    `json:"workers"`
	Executed uint64 `json:"executed"`
	Panicked uint64 `json:"panicked"`
	Dropped  uint64 `json:"dropped"`
	Closed   bool   `json:"closed"`
}

// playerStatus mirrors GET /api/v1/player.
type playerStatus struct {
	Player player.Status    `json:"player"`
	View   presenter.Player `json:"view"`
}

// playerLine is the table view of the player.
type playerLine struct {
	Status string `table:"STATUS"`
	Device string `table:"DEVICE"`
	URL    string `table:"URL"`
	Plays  uint64 `table:"PLAYS"`
	Error  string `table:"ERROR"`
}

// PoolCommand returns the pool subcommand group.
func PoolCommand() *cli.Command {
	return &cli.Command{
		Name:  "pool",
		Usage: "Worker pool commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show worker pool counters",
				Action: showPool,
			},
		},
	}
}

// PlayerCommand returns the player subcommand group.
func PlayerCommand() *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Stream player commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show what the player is doing",
				Action: showPlayer,
			},
		},
	}
}

func showPool(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/pool")
	if err != nil {
		return err
	}
	var result poolStatus
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printResult(c, result, nil)
}

func showPlayer(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/player")
	if err != nil {
		return err
	}
	var result playerStatus
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	line := playerLine{
		Status: string(result.View.Status),
		Device: result.View.DeviceID,
		URL:    result.Player.URL,
		Plays:  result.Player.Plays,
		Error:  result.View.Error,
	}
	return printResult(c, result, line)
}
