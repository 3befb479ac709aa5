package command

import (
	"net/url"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

type promptListResponse struct {
	Items []presenter.Prompt `json:"items"`
	Total int                `json:"total"`
}

// promptLine is the table view of a pending credentials prompt.
type promptLine struct {
	ID       string `table:"ID"`
	Kind     string `table:"KIND"`
	Device   string `table:"DEVICE"`
	Endpoint string `table:"ENDPOINT"`
	Reason   string `table:"REASON,wide"`
	Created  string `table:"CREATED"`
}

// PromptCommand returns the prompt subcommand group.
func PromptCommand() *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Answer credential prompts raised by the server",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List pending prompts",
				Action:  listPrompts,
			},
			{
				Name:      "answer",
				Usage:     "Supply credentials for a prompt",
				ArgsUsage: "<prompt-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Device user name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Device password",
						EnvVars: []string{"ONVIFMESH_DEVICE_PASSWORD"},
					},
				},
				Action: answerPrompt,
			},
			{
				Name:      "cancel",
				Usage:     "Dismiss a prompt",
				ArgsUsage: "<prompt-id>",
				Action:    cancelPrompt,
			},
		},
	}
}

func listPrompts(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/prompts")
	if err != nil {
		return err
	}
	var result promptListResponse
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	lines := make([]promptLine, 0, len(result.Items))
	for _, p := range result.Items {
		lines = append(lines, promptLine{
			ID:       p.ID,
			Kind:     string(p.Kind),
			Device:   p.DeviceID,
			Endpoint: p.Endpoint,
			Reason:   p.Reason,
			Created:  p.CreatedAt.Local().Format("15:04:05"),
		})
	}
	return printResult(c, result, lines)
}

func answerPrompt(c *cli.Context) error {
	id, err := requireArg(c, 0, "prompt ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/api/v1/prompts/"+url.PathEscape(id)+"/answer", credentialsBody(c))
	if err != nil {
		return err
	}
	var result map[string]string
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printMessage(c, result, "Credentials sent for prompt %s.", id)
}

func cancelPrompt(c *cli.Context) error {
	id, err := requireArg(c, 0, "prompt ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/api/v1/prompts/"+url.PathEscape(id)+"/cancel", nil)
	if err != nil {
		return err
	}
	var result map[string]string
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printMessage(c, result, "Prompt %s cancelled.", id)
}
