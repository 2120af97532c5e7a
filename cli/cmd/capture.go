package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/capture"
	"github.com/justapithecus/teewire/cli/reader"
	"github.com/justapithecus/teewire/cli/render"
	"github.com/justapithecus/teewire/cli/tui"
	"github.com/justapithecus/teewire/metrics"
)

// listWarningThreshold is the number of results above which a warning is
// printed when no --limit is given.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// CaptureCommand returns the capture command with subcommands.
func CaptureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Browse captured parameter buffers",
		Subcommands: []*cli.Command{
			captureListCommand(),
			captureShowCommand(),
		},
	}
}

func captureListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List captures, newest first",
		Flags: concatFlags(
			ReadOnlyFlags(),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "day",
					Usage: "Only captures from this day (YYYY-MM-DD)",
				},
				&cli.StringFlag{
					Name:  "direction",
					Usage: "Only request or response captures",
				},
				&cli.StringFlag{
					Name:  "call-id",
					Usage: "Only captures from this call",
				},
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of results (0 = no limit)",
				},
				sessionFlag(),
			},
			captureFlags(),
		),
		Action: captureListAction,
	}
}

func captureListAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for capture list", exitUsage)
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	f := capture.Filter{
		Day:    c.String("day"),
		CallID: c.String("call-id"),
		Limit:  c.Int("limit"),
	}
	if f.Limit < 0 {
		return cli.Exit("--limit must be >= 0", exitUsage)
	}
	if d := c.String("direction"); d != "" {
		dir, err := capture.ParseDirection(d)
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		f.Direction = dir
	}
	// The env session falls back to the config; only an explicit flag filters.
	if c.IsSet("session") {
		s := e.session
		f.Session = &s
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	store, err := openArchive(c, e)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recs, err := store.List(c.Context, f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("capture list: %v", err), exitUsage)
	}

	if len(recs) > listWarningThreshold && f.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(c.App.ErrWriter, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(recs))
	}

	return r.Render(reader.CaptureList(recs))
}

func captureShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one capture with its parsed buffer",
		ArgsUsage: "<capture-id>",
		Flags: concatFlags(
			TUIReadOnlyFlags(),
			[]cli.Flag{
				&cli.BoolFlag{
					Name:  "dump",
					Usage: "Append a hex dump of the buffer (table format only)",
				},
			},
			captureFlags(),
		),
		Action: captureShowAction,
	}
}

func captureShowAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("capture ID required", exitUsage)
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	store, err := openArchive(c, e)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Get(c.Context, id)
	if errors.Is(err, capture.ErrRecordNotFound) {
		return cli.Exit(fmt.Sprintf("capture not found: %s", id), exitUsage)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("capture show: %v", err), exitUsage)
	}

	resp := reader.CaptureDetail(rec)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectCapture, resp)
	}
	if err := r.Render(resp); err != nil {
		return err
	}
	if c.Bool("dump") && r.Format() == render.FormatTable {
		return r.RenderHex("\nbuffer", rec.Data)
	}
	return nil
}

// openArchive opens the capture store for reading. Reads never notify.
func openArchive(c *cli.Context, e *env) (*capture.Store, error) {
	store, err := buildCaptureStore(c.Context, resolveStorage(c, e.cfg),
		capture.WithLogger(e.logger),
		capture.WithCollector(metrics.NewCollector("", e.session)),
	)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("capture: %v", err), exitUsage)
	}
	return store, nil
}
