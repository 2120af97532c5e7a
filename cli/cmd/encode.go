package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/capture"
	"github.com/justapithecus/teewire/cli/config"
	"github.com/justapithecus/teewire/cli/reader"
	"github.com/justapithecus/teewire/cli/render"
	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/iox"
	"github.com/justapithecus/teewire/metrics"
)

// EncodeCommand returns the encode command.
// Encode builds an operation file into a parameter buffer.
func EncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Encode an operation file into a parameter buffer",
		ArgsUsage: "<op.yaml>",
		Flags: concatFlags(
			ReadOnlyFlags(),
			[]cli.Flag{
				&cli.StringFlag{
					Name:    "out",
					Aliases: []string{"o"},
					Usage:   "Write the buffer to this file (\"-\" for stdout)",
				},
				&cli.StringFlag{
					Name:  "out-format",
					Usage: "Buffer file encoding for --out: raw or hex",
					Value: string(reader.BufferRaw),
				},
				&cli.BoolFlag{
					Name:  "capture",
					Usage: "Store the encoded buffer in the capture archive",
				},
				&cli.UintFlag{
					Name:  "command",
					Usage: "Command ID recorded with the capture",
				},
				sessionFlag(),
			},
			captureFlags(),
			notifyFlags(),
		),
		Action: encodeAction,
	}
}

func encodeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("operation file required", exitUsage)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for encode", exitUsage)
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	op, err := loadOperation(c.Args().First())
	if err != nil {
		return err
	}
	outFormat, err := reader.ParseBufferFormat(c.String("out-format"))
	if err != nil || outFormat == reader.BufferAuto {
		return cli.Exit(fmt.Sprintf("invalid --out-format %q (must be raw or hex)", c.String("out-format")), exitUsage)
	}

	collector := metrics.NewCollector("", e.session)
	buf, err := codec.Encode(op.Op, append(e.codecOpts, codec.WithCollector(collector))...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("encode: %v", err), exitCodec)
	}

	if c.Bool("capture") {
		if err := captureBuffer(c, e, collector, buf); err != nil {
			return err
		}
	}

	// Without --out, the buffer itself is the output, as one hex line.
	out := c.String("out")
	if out == "" {
		_, err := fmt.Fprintln(c.App.Writer, hex.EncodeToString(buf))
		return err
	}

	data := buf
	if outFormat == reader.BufferHex {
		data = []byte(hex.EncodeToString(buf) + "\n")
	}
	if err := iox.WriteOutput(out, c.App.Writer, data); err != nil {
		return cli.Exit(fmt.Sprintf("write buffer: %v", err), exitUsage)
	}
	if out == iox.Stdio {
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(reader.InspectBuffer(out, buf))
}

// captureBuffer stores a standalone encode as a request capture.
func captureBuffer(c *cli.Context, e *env, collector *metrics.Collector, buf []byte) error {
	store, err := openCaptureStore(c, e, collector)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec := &capture.Record{
		Session:   e.session,
		Command:   uint32(c.Uint("command")),
		Direction: capture.DirectionRequest,
		Data:      buf,
	}
	if err := store.Write(c.Context, rec); err != nil {
		return cli.Exit(fmt.Sprintf("capture: %v", err), exitUsage)
	}
	e.logger.Info("buffer captured", map[string]any{"capture_id": rec.ID, "size": rec.Size})
	return nil
}

// loadOperation reads an operation file. Failures are usage errors.
func loadOperation(path string) (*config.Operation, error) {
	op, err := config.LoadOperation(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("operation: %v", err), exitUsage)
	}
	return op, nil
}
