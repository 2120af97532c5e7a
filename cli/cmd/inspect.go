package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/cli/reader"
	"github.com/justapithecus/teewire/cli/render"
	"github.com/justapithecus/teewire/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect splits a parameter buffer into its records without needing the
// operation that produced it.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the records of a parameter buffer",
		ArgsUsage: "<buffer|->",
		Flags: concatFlags(TUIReadOnlyFlags(), []cli.Flag{
			bufferFormatFlag(),
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "Append a hex dump of the whole buffer (table format only)",
			},
		}),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "-"
	}

	buf, err := readBuffer(c, path)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	resp := reader.InspectBuffer(path, buf)
	if c.Bool("tui") {
		err = r.RenderTUI(tui.ViewInspectBuffer, resp)
	} else {
		err = r.Render(resp)
		if err == nil && c.Bool("dump") && r.Format() == render.FormatTable {
			err = r.RenderHex("\nbuffer", buf)
		}
	}
	if err != nil {
		return err
	}

	// The view is still useful for a malformed buffer; report it after.
	if resp.Error != "" {
		return cli.Exit(resp.Error, exitCodec)
	}
	return nil
}
