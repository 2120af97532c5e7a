package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/cli/reader"
	"github.com/justapithecus/teewire/cli/render"
	"github.com/justapithecus/teewire/cli/tui"
	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/iox"
)

// DecodeCommand returns the decode command.
// Decode writes a returned parameter buffer back into an operation and
// shows the resulting slots.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a parameter buffer into an operation file's slots",
		ArgsUsage: "<op.yaml> <buffer|->",
		Flags:     concatFlags(TUIReadOnlyFlags(), []cli.Flag{bufferFormatFlag()}),
		Action:    decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("operation file and buffer required", exitUsage)
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	op, err := loadOperation(c.Args().Get(0))
	if err != nil {
		return err
	}
	buf, err := readBuffer(c, c.Args().Get(1))
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	decodeErr := codec.Decode(op.Op, buf, e.codecOpts...)
	resp := reader.ViewOperation(op)
	if decodeErr != nil {
		resp.Result = codec.CodeOf(decodeErr).String()
	} else {
		resp.Result = codec.CodeSuccess.String()
	}

	if c.Bool("tui") {
		if err := r.RenderTUI(tui.ViewInspectOperation, resp); err != nil {
			return err
		}
	} else if err := r.Render(resp); err != nil {
		return err
	}

	if decodeErr != nil {
		return cli.Exit(fmt.Sprintf("decode: %v", decodeErr), exitCodec)
	}
	return nil
}

// readBuffer reads a buffer argument ("-" for stdin) in the --buffer-format
// encoding. Size limits are the codec's business.
func readBuffer(c *cli.Context, path string) ([]byte, error) {
	format, err := reader.ParseBufferFormat(c.String("buffer-format"))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}

	raw, err := iox.ReadInput(path, c.App.Reader, 0)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("read buffer: %v", err), exitUsage)
	}
	buf, err := reader.ParseBuffer(raw, format)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return buf, nil
}
