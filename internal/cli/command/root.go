package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/onvifmesh-go/internal/cli/connection"
	"github.com/yndnr/onvifmesh-go/internal/cli/output"
	"github.com/yndnr/onvifmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/onvifmesh-go/internal/infra/tlsroots"
)

// DefaultServer is the admin API address used when --server is not set.
const DefaultServer = "http://127.0.0.1:5080"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "onvifmesh-cli",
		Usage:   "Manage a running onvifmesh server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			DeviceCommand(),
			ScanCommand(),
			PromptCommand(),
			PoolCommand(),
			PlayerCommand(),
			SystemCommand(),
			WatchCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "onvifmesh admin API address (http://host:port or unix:///path)",
			EnvVars: []string{"ONVIFMESH_SERVER"},
			Value:   DefaultServer,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: 30 * time.Second,
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM file with additional CAs for https servers",
			EnvVars: []string{"ONVIFMESH_CA_FILE"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Admin bearer token",
			EnvVars: []string{"ONVIFMESH_TOKEN"},
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	Output   string
	Wide     bool
	Timeout  time.Duration
	CAFile   string
	Insecure bool
	Token    string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:   c.String("server"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
		Timeout:  c.Duration("timeout"),
		CAFile:   c.String("ca-file"),
		Insecure: c.Bool("insecure"),
		Token:    c.String("token"),
	}
}

// EnsureConnected builds the HTTP client for the selected server.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)

	opts := []connection.Option{}
	if flags.Timeout > 0 {
		opts = append(opts, connection.WithTimeout(flags.Timeout))
	}
	if flags.Token != "" {
		opts = append(opts, connection.WithToken(flags.Token))
	}
	if flags.CAFile != "" || flags.Insecure {
		pool := tlsroots.NewPool()
		if flags.CAFile != "" {
			if err := pool.AddCertFile(flags.CAFile); err != nil {
				return nil, fmt.Errorf("load CA file: %w", err)
			}
		}
		opts = append(opts, connection.WithTLSConfig(pool.ClientConfig(flags.Insecure)))
	}
	return connection.NewHTTPClient(flags.Server, opts...), nil
}

// requestContext bounds one command by --timeout.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	if d := c.Duration("timeout"); d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

// stdout returns the writer commands print results to.
func stdout(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// stderr returns the writer for progress and diagnostics.
func stderr(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// printResult renders data in the selected output format. Table output
// renders tableData when given, so commands can show a friendlier shape
// than the API returns.
func printResult(c *cli.Context, data, tableData any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	if format == output.FormatTable && tableData != nil {
		data = tableData
	}
	return output.NewFormatter(format, flags.Wide).Format(stdout(c), data)
}

// printMessage prints a confirmation line in table mode and the raw
// result otherwise.
func printMessage(c *cli.Context, data any, format string, args ...any) error {
	if f, _ := output.ParseFormat(c.String("output")); f != output.FormatTable {
		return printResult(c, data, nil)
	}
	_, err := fmt.Fprintf(stdout(c), format+"\n", args...)
	return err
}

// requireArg returns the n-th positional argument or a usage error.
func requireArg(c *cli.Context, n int, name string) (string, error) {
	if c.NArg() <= n || c.Args().Get(n) == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return c.Args().Get(n), nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
