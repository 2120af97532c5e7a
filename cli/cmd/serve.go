package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/service"
	"github.com/justapithecus/teewire/transport"
)

// ServeCommand returns the serve command.
// Serve runs the reference service domain: echo on command 0 and a
// short-buffer responder on command 1. Without --addr it speaks frames on
// stdin/stdout, so it can be spawned by `teewire invoke --exec`.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the reference service domain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address: unix:/path or tcp:host:port (default: stdio)",
			},
			&cli.IntFlag{
				Name:  "required-size",
				Usage: "Output buffer size demanded by the short-buffer command",
				Value: service.DefaultRequiredSize,
			},
		},
		Action: serveAction,
	}
}

// stdio joins the app's reader and writer into one frame stream.
type stdio struct {
	io.Reader
	io.Writer
}

func serveAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	required := c.Int("required-size")
	if required < 0 {
		return cli.Exit("--required-size must be >= 0", exitUsage)
	}

	mux := service.NewDefaultMux()
	mux.Handle(service.CommandShortBuffer, service.ShortBuffer(required))
	logger := e.logger.With(map[string]any{"component": "service"})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := c.String("addr")
	if addr == "" {
		logger.Debug("serving on stdio", map[string]any{"commands": mux.Commands()})
		if err := service.Serve(ctx, stdio{c.App.Reader, c.App.Writer}, mux, logger); err != nil && ctx.Err() == nil {
			return cli.Exit(fmt.Sprintf("serve: %v", err), exitTransport)
		}
		return nil
	}

	ln, err := transport.Listen(ctx, addr)
	if err != nil {
		return cli.Exit(fmt.Sprintf("serve: %v", err), exitTransport)
	}
	logger.Sugar().Infof("listening on %s", ln.Addr())
	if err := service.ServeListener(ctx, ln, mux, logger); err != nil {
		return cli.Exit(fmt.Sprintf("serve: %v", err), exitTransport)
	}
	return nil
}
