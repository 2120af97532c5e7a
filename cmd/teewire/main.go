// Package main provides the teewire CLI entrypoint.
//
// Usage:
//
//	teewire [global options] <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success
//   - 1: usage or configuration error
//   - 2: codec error (encode, decode or a malformed buffer)
//   - 3: the service returned a non-success result
//   - 4: transport error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/cli/cmd"
	"github.com/justapithecus/teewire/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "teewire",
		Usage:          "TEE client parameter codec and call tool",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:          cmd.GlobalFlags(),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.EncodeCommand(),
			cmd.DecodeCommand(),
			cmd.InspectCommand(),
			cmd.InvokeCommand(),
			cmd.ServeCommand(),
			cmd.CaptureCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(cmd.ReorderArgs(app, os.Args)); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
