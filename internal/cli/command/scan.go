package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/cli/output"
	"github.com/yndnr/onvifmesh-go/internal/core/domain"
)

// scanPollInterval is how often scan --wait samples the worker pool.
var scanPollInterval = 250 * time.Millisecond

// ScanCommand returns the scan command.
func ScanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Rediscover the fleet; the current device list is dropped",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait until the worker pool is idle, then list devices",
			},
			&cli.DurationFlag{
				Name:  "wait-timeout",
				Usage: "Upper bound for --wait",
				Value: 2 * time.Minute,
			},
		},
		Action: scan,
	}
}

func scan(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/api/v1/scan", nil)
	if err != nil {
		return err
	}
	var result map[string]string
	if err := connection.ParseResponse(resp, &result); err != nil {
		if connection.IsCode(err, domain.ErrRateLimited.Code) {
			return fmt.Errorf("%w (a scan was started moments ago, retry shortly)", err)
		}
		return err
	}

	if !c.Bool("wait") {
		return printMessage(c, result, "Scan started.")
	}

	spin := output.NewSpinner(stderr(c), "scanning")
	spin.Start()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), c.Duration("wait-timeout"))
	defer waitCancel()

	if err := waitIdle(waitCtx, client, spin); err != nil {
		spin.Fail("scan did not settle")
		return err
	}
	spin.Success("scan settled")
	return listDevices(c)
}

// waitIdle polls the worker pool until nothing is running or pending.
func waitIdle(ctx context.Context, client *connection.HTTPClient, spin *output.Spinner) error {
	ticker := time.NewTicker(scanPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		resp, err := client.Get(ctx, "/api/v1/pool")
		if err != nil {
			return err
		}
		var pool poolStatus
		if err := connection.ParseResponse(resp, &pool); err != nil {
			return err
		}
		if pool.Running+pool.Pending == 0 {
			return nil
		}
		spin.SetMessage(fmt.Sprintf("scanning %s", pool.Label))
	}
}
