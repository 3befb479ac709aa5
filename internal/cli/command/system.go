package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/cli/output"
	"github.com/yndnr/onvifmesh-go/internal/infra/buildinfo"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server health and version",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server liveness and readiness",
				Action: systemHealth,
			},
			{
				Name:   "version",
				Usage:  "Show client and server versions",
				Action: systemVersion,
			},
		},
	}
}

type healthResult struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Uptime  string `json:"uptime"`
	Devices int    `json:"devices"`
}

func systemHealth(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	var health healthResult
	if err := connection.ParseResponse(resp, &health); err != nil {
		return err
	}

	resp, err = client.Get(ctx, "/ready")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	ready := healthResult{Status: "ready"}
	readyErr := connection.ParseResponse(resp, &ready)
	if readyErr != nil {
		ready.Status = "not ready"
	}

	result := map[string]string{
		"server":  client.BaseURL(),
		"health":  health.Status,
		"ready":   ready.Status,
		"uptime":  health.Uptime,
		"devices": strconv.Itoa(ready.Devices),
		"checked": health.Time,
	}
	if err := printResult(c, result, nil); err != nil {
		return err
	}
	return readyErr
}

func systemVersion(c *cli.Context) error {
	local := buildinfo.Get()
	result := map[string]any{"client": local}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/version")
	if err != nil {
		return err
	}
	var server buildinfo.Info
	if err := connection.ParseResponse(resp, &server); err != nil {
		return err
	}
	result["server"] = server

	table := &output.Table{Headers: []string{"", "VERSION", "COMMIT", "BUILT", "GO"}}
	for _, side := range []struct {
		name string
		info buildinfo.Info
	}{{"client", local}, {"server", server}} {
		table.AddRow(side.name, side.info.Version, side.info.Commit, side.info.BuildTime, side.info.GoVersion)
	}
	return printResult(c, result, table)
}
