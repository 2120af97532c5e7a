package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/cli/config"
	"github.com/justapithecus/teewire/cli/reader"
	"github.com/justapithecus/teewire/cli/render"
	"github.com/justapithecus/teewire/cli/tui"
	"github.com/justapithecus/teewire/client"
	"github.com/justapithecus/teewire/ipc"
	"github.com/justapithecus/teewire/metrics"
	"github.com/justapithecus/teewire/transport"
)

// InvokeCommand returns the invoke command.
// Invoke runs one command on a service with an operation file's parameters.
func InvokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "invoke",
		Usage:     "Invoke a command on a service domain",
		ArgsUsage: "<op.yaml>",
		Flags: concatFlags(
			TUIReadOnlyFlags(),
			[]cli.Flag{
				&cli.UintFlag{
					Name:  "command",
					Usage: "Command ID",
				},
				&cli.BoolFlag{
					Name:  "capture",
					Usage: "Store request and response buffers in the capture archive",
				},
				&cli.BoolFlag{
					Name:  "stats",
					Usage: "Include call metrics in the output",
				},
				sessionFlag(),
			},
			transportFlags(),
			captureFlags(),
			notifyFlags(),
		),
		Action: invokeAction,
	}
}

// transportChoice is the resolved way to reach the service.
type transportChoice struct {
	addr    string
	command string
	args    []string
}

func (t transportChoice) name() string {
	if t.command != "" {
		return "exec"
	}
	network, _, err := transport.ParseAddr(t.addr)
	if err != nil {
		return ""
	}
	return network
}

func resolveTransport(c *cli.Context, cfg *config.Config) (transportChoice, error) {
	tc := configVal(cfg, func(cf *config.Config) config.TransportConfig { return cf.Transport })

	t := transportChoice{
		addr:    resolveString(c, "addr", tc.Addr),
		command: resolveString(c, "exec", tc.Command),
		args:    tc.Args,
	}
	if c.IsSet("exec-arg") {
		t.args = c.StringSlice("exec-arg")
	}
	// A flag on the command line replaces the other mode from the config.
	if c.IsSet("addr") && !c.IsSet("exec") {
		t.command = ""
	}
	if c.IsSet("exec") && !c.IsSet("addr") {
		t.addr = ""
	}

	switch {
	case t.addr != "" && t.command != "":
		return t, errors.New("--addr and --exec are mutually exclusive")
	case t.addr == "" && t.command == "":
		return t, errors.New("--addr or --exec is required")
	case t.addr != "":
		if _, _, err := transport.ParseAddr(t.addr); err != nil {
			return t, err
		}
	}
	return t, nil
}

func invokeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("operation file required", exitUsage)
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	op, err := loadOperation(c.Args().First())
	if err != nil {
		return err
	}
	tc, err := resolveTransport(c, e.cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	timeout := resolveDuration(c, "timeout", configVal(e.cfg, func(cf *config.Config) config.Duration { return cf.Transport.Timeout }).Duration)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(tc.name(), e.session)
	opts := []client.Option{
		client.WithLogger(e.logger),
		client.WithCollector(collector),
		client.WithCodecOptions(e.codecOpts...),
		client.WithTimeout(timeout),
	}
	if c.Bool("capture") {
		store, err := openCaptureStore(c, e, collector)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, client.WithRecorder(store.Recorder()))
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, wait, err := openStream(ctx, tc)
	if err != nil {
		return cli.Exit(fmt.Sprintf("transport: %v", err), exitTransport)
	}

	sess := client.NewSession(stream, e.session, opts...)
	command := uint32(c.Uint("command"))
	origin, callErr := sess.Invoke(ctx, command, op.Op)
	_ = sess.Close()
	wait(e)

	resp := reader.ViewOperation(op)
	resp.Result = client.Code(callErr).String()
	resp.Origin = ipc.OriginName(origin)

	var stats *reader.MetricsResponse
	if c.Bool("stats") {
		stats = reader.Metrics(collector.Snapshot())
	}
	switch {
	case c.Bool("tui") && stats != nil:
		err = r.RenderTUI(tui.ViewStatsMetrics, stats)
	case c.Bool("tui"):
		err = r.RenderTUI(tui.ViewInspectOperation, resp)
	case stats != nil:
		err = r.Render(&reader.InvokeResponse{Call: resp, Metrics: stats})
	default:
		err = r.Render(resp)
	}
	if err != nil {
		return err
	}

	if callErr != nil {
		return cli.Exit(fmt.Sprintf("invoke: %v", callErr), exitCodeFor(callErr))
	}
	return nil
}

// openStream connects to the service. The returned wait func reaps a
// spawned service after the session is closed; it is a no-op for sockets.
func openStream(ctx context.Context, tc transportChoice) (transport.Stream, func(*env), error) {
	if tc.command == "" {
		stream, err := transport.Dial(ctx, tc.addr)
		return stream, func(*env) {}, err
	}

	proc, err := transport.StartProcess(ctx, transport.ProcessConfig{Path: tc.command, Args: tc.args})
	if err != nil {
		return nil, nil, err
	}
	wait := func(e *env) {
		res, err := proc.Wait()
		if err != nil {
			e.logger.Warn("service wait failed", map[string]any{"error": err.Error()})
			return
		}
		fields := map[string]any{"pid": proc.Pid(), "exit_code": res.ExitCode}
		if len(res.StderrBytes) > 0 {
			fields["stderr"] = string(res.StderrBytes)
		}
		if res.ExitCode != 0 {
			e.logger.Warn("service exited with error", fields)
		} else {
			e.logger.Debug("service exited", fields)
		}
	}
	return proc, wait, nil
}
