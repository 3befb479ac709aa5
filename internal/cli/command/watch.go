package command

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/cli/output"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// WatchCommand returns the watch command, which follows fleet updates
// until interrupted or until the server goes away.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow fleet updates as they are applied",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "snapshot",
				Usage: "Print the device list before following updates",
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.Events(ctx)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	jsonOut := &output.JSONFormatter{}
	w := stdout(c)

	for {
		msg, err := stream.Next()
		if err != nil {
			if errors.Is(err, connection.ErrStreamClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}

		if format != output.FormatTable {
			if err := jsonOut.Format(w, msg); err != nil {
				return err
			}
			continue
		}

		switch {
		case msg.Snapshot != nil:
			fmt.Fprintf(w, "snapshot v%d: %d devices, %d prompts, player %s, tasks %s\n",
				msg.Snapshot.Version, len(msg.Snapshot.Rows), len(msg.Snapshot.Prompts),
				msg.Snapshot.Player.Status, msg.Snapshot.Tasks.Label)
			if c.Bool("snapshot") && len(msg.Snapshot.Rows) > 0 {
				lines := make([]deviceLine, 0, len(msg.Snapshot.Rows))
				for _, r := range msg.Snapshot.Rows {
					lines = append(lines, newDeviceLine(r))
				}
				if err := (&output.TableFormatter{Wide: c.Bool("wide")}).Format(w, lines); err != nil {
					return err
				}
			}
		case msg.Event != nil:
			fmt.Fprintln(w, formatEvent(msg.Event))
		}
	}
}

// formatEvent renders one presenter event as a log-style line.
func formatEvent(ev *presenter.Event) string {
	line := fmt.Sprintf("%s v%-5d %-18s", ev.Time.Local().Format("15:04:05.000"), ev.Version, ev.Kind)
	if ev.Subject != "" {
		line += " " + ev.Subject
	}
	if r := ev.Row; r != nil {
		line += fmt.Sprintf(" auth=%s thumbnail=%s", r.Auth, r.Thumbnail.State)
		if r.Failure != "" {
			line += fmt.Sprintf(" failure=%q", r.Failure)
		}
	}
	return line
}
