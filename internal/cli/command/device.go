package command

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// deviceLine is the table view of one fleet row.
type deviceLine struct {
	ID        string `table:"ID"`
	Name      string `table:"NAME"`
	Host      string `table:"HOST"`
	Auth      string `table:"AUTH"`
	Thumbnail string `table:"THUMBNAIL"`
	Profile   string `table:"PROFILE"`
	Selected  string `table:"SEL"`
	Source    string `table:"SOURCE,wide"`
	Hardware  string `table:"HARDWARE,wide"`
	Endpoint  string `table:"ENDPOINT,wide"`
	Failure   string `table:"FAILURE,wide"`
}

func newDeviceLine(r presenter.Row) deviceLine {
	name := r.Name
	if r.Hostname != "" {
		name = r.Hostname
	}
	profile := "-"
	if len(r.Profiles) > 0 && r.ProfileIndex >= 0 && r.ProfileIndex < len(r.Profiles) {
		profile = fmt.Sprintf("%d:%s", r.ProfileIndex, r.Profiles[r.ProfileIndex].Name)
	}
	sel := ""
	if r.Selected {
		sel = "*"
	}
	return deviceLine{
		ID:        r.ID,
		Name:      name,
		Host:      r.Host,
		Auth:      r.Auth,
		Thumbnail: string(r.Thumbnail.State),
		Profile:   profile,
		Selected:  sel,
		Source:    r.Source,
		Hardware:  r.Hardware,
		Endpoint:  r.Endpoint,
		Failure:   r.Failure,
	}
}

// profileLine is the table view of one media profile.
type profileLine struct {
	Index      int    `table:"INDEX"`
	Token      string `table:"TOKEN"`
	Name       string `table:"NAME"`
	Resolution string `table:"RESOLUTION"`
	Active     string `table:"ACTIVE"`
}

type deviceListResponse struct {
	Items   []presenter.Row `json:"items"`
	Total   int             `json:"total"`
	Version uint64          `json:"version"`
}

// DeviceCommand returns the device subcommand group.
func DeviceCommand() *cli.Command {
	credFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Device user name",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Device password",
			EnvVars: []string{"ONVIFMESH_DEVICE_PASSWORD"},
		},
	}

	return &cli.Command{
		Name:    "device",
		Aliases: []string{"dev"},
		Usage:   "Inspect and control fleet devices",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List devices of the current scan",
				Action:  listDevices,
			},
			{
				Name:      "show",
				Usage:     "Show one device with its media profiles",
				ArgsUsage: "<device-id>",
				Action:    showDevice,
			},
			{
				Name:      "add",
				Usage:     "Add a device by address or service URL",
				ArgsUsage: "<url>",
				Flags:     credFlags,
				Action:    addDevice,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a device and forget it",
				ArgsUsage: "<device-id>",
				Action:    removeDevice,
			},
			{
				Name:      "select",
				Usage:     "View a device's live stream",
				ArgsUsage: "<device-id>",
				Action:    selectDevice,
			},
			{
				Name:   "deselect",
				Usage:  "Stop viewing the selected device",
				Action: deselectDevice,
			},
			{
				Name:      "profile",
				Usage:     "Switch a device to another media profile",
				ArgsUsage: "<device-id> <index>",
				Action:    changeProfile,
			},
			{
				Name:      "thumbnail",
				Usage:     "Save a device's snapshot image",
				ArgsUsage: "<device-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"O"},
						Usage:   "Output file, - for stdout",
						Value:   "-",
					},
				},
				Action: saveThumbnail,
			},
		},
	}
}

func listDevices(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/devices")
	if err != nil {
		return err
	}
	var result deviceListResponse
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	lines := make([]deviceLine, 0, len(result.Items))
	for _, r := range result.Items {
		lines = append(lines, newDeviceLine(r))
	}
	return printResult(c, result, lines)
}

func showDevice(c *cli.Context) error {
	id, err := requireArg(c, 0, "device ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/devices/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var row presenter.Row
	if err := connection.ParseResponse(resp, &row); err != nil {
		return err
	}

	if err := printResult(c, row, newDeviceLine(row)); err != nil {
		return err
	}
	if c.String("output") != "table" || len(row.Profiles) == 0 {
		return nil
	}

	profiles := make([]profileLine, 0, len(row.Profiles))
	for i, p := range row.Profiles {
		res := "-"
		if p.Width > 0 && p.Height > 0 {
			res = fmt.Sprintf("%dx%d", p.Width, p.Height)
		}
		active := ""
		if i == row.ProfileIndex {
			active = "*"
		}
		profiles = append(profiles, profileLine{Index: i, Token: p.Token, Name: p.Name, Resolution: res, Active: active})
	}
	fmt.Fprintln(stdout(c))
	return printResult(c, nil, profiles)
}

func credentialsBody(c *cli.Context) map[string]string {
	return map[string]string{
		"username": c.String("username"),
		"password": c.String("password"),
	}
}

func addDevice(c *cli.Context) error {
	rawURL, err := requireArg(c, 0, "device URL")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	body := credentialsBody(c)
	body["url"] = rawURL
	resp, err := client.Post(ctx, "/api/v1/devices", body)
	if err != nil {
		return err
	}
	var result struct {
		Endpoint string `json:"endpoint"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printMessage(c, result, "Adding %s; the device appears once it answers.", result.Endpoint)
}

func removeDevice(c *cli.Context) error {
	id, err := requireArg(c, 0, "device ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Delete(ctx, "/api/v1/devices/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	return printMessage(c, map[string]string{"device_id": id, "status": "removed"}, "Device %s removed.", id)
}

func selectDevice(c *cli.Context) error {
	id, err := requireArg(c, 0, "device ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/api/v1/devices/"+url.PathEscape(id)+"/select", nil)
	if err != nil {
		return err
	}
	var result struct {
		DeviceID string `json:"device_id"`
		PromptID string `json:"prompt_id,omitempty"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if result.PromptID != "" {
		return printMessage(c, result,
			"Device %s needs credentials. Answer with:\n  onvifmesh-cli prompt answer %s --username <user> --password <password>",
			result.DeviceID, result.PromptID)
	}
	return printMessage(c, result, "Device %s selected; the stream starts shortly.", result.DeviceID)
}

func deselectDevice(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/api/v1/selection/clear", nil)
	if err != nil {
		return err
	}
	var result map[string]string
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printMessage(c, result, "Selection cleared.")
}

func changeProfile(c *cli.Context) error {
	id, err := requireArg(c, 0, "device ID")
	if err != nil {
		return err
	}
	raw, err := requireArg(c, 1, "profile index")
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return fmt.Errorf("invalid profile index %q", raw)
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/api/v1/devices/"+url.PathEscape(id)+"/profile", map[string]int{"index": index})
	if err != nil {
		return err
	}
	var result map[string]string
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printMessage(c, result, "Device %s switched to profile %d.", id, index)
}

func saveThumbnail(c *cli.Context) error {
	id, err := requireArg(c, 0, "device ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/devices/"+url.PathEscape(id)+"/thumbnail")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return connection.ParseResponse(resp, nil)
	}
	defer resp.Body.Close()

	out := c.String("out")
	if out == "" || out == "-" {
		_, err = io.Copy(stdout(c), resp.Body)
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stderr(c), "Wrote %d bytes (%s) to %s\n", n, resp.Header.Get("Content-Type"), out)
	return nil
}
