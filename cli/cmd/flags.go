// Package cmd provides CLI commands for the teewire binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/cli/reader"
)

// Output flags shared by every command that renders a result.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for read-only views (inspect, decode, capture show, invoke --stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (read-only views only)",
	}
)

// GlobalFlags are accepted before any command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to teewire.yaml",
			EnvVars: []string{"TEEWIRE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "warn",
		},
		&cli.BoolFlag{
			Name:  "hexdump",
			Usage: "Log a hex dump of every encoded and decoded payload (debug level)",
		},
		&cli.IntFlag{
			Name:  "max-buffer-size",
			Usage: "Largest buffer the codec accepts, in bytes (0 = codec default)",
		},
	}
}

// ReadOnlyFlags returns the output flags for all rendering commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// bufferFormatFlag selects how a buffer file is read.
func bufferFormatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "buffer-format",
		Usage: "Buffer file encoding: raw, hex, auto",
		Value: string(reader.BufferAuto),
	}
}

// sessionFlag sets the session ID stamped on requests and captures.
func sessionFlag() cli.Flag {
	return &cli.UintFlag{
		Name:  "session",
		Usage: "Session ID",
	}
}

// captureFlags select and configure the capture archive.
func captureFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "capture-backend",
			Usage: "Capture backend: fs, s3 or memory",
		},
		&cli.StringFlag{
			Name:  "capture-path",
			Usage: "Capture location (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "capture-dataset",
			Usage: "Capture dataset name",
		},
		&cli.StringFlag{
			Name:  "capture-s3-region",
			Usage: "AWS region for the S3 backend (default chain when empty)",
		},
		&cli.StringFlag{
			Name:  "capture-s3-endpoint",
			Usage: "Custom S3 endpoint URL for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "capture-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// notifyFlags configure capture notifications.
func notifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "notify-type",
			Usage: "Notify on stored captures: redis or webhook",
		},
		&cli.StringFlag{
			Name:  "notify-url",
			Usage: "Redis URL or webhook endpoint",
		},
		&cli.StringFlag{
			Name:  "notify-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.BoolFlag{
			Name:  "notify-session-channels",
			Usage: "Publish on <channel>:<session> (redis only)",
		},
		&cli.DurationFlag{
			Name:  "notify-timeout",
			Usage: "Per-attempt notification timeout",
		},
		&cli.IntFlag{
			Name:  "notify-retries",
			Usage: "Notification retries after the first attempt",
		},
	}
}

// transportFlags select how invoke reaches the service.
func transportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Service address: unix:/path or tcp:host:port",
		},
		&cli.StringFlag{
			Name:  "exec",
			Usage: "Service binary to spawn, speaking frames on stdin/stdout",
		},
		&cli.StringSliceFlag{
			Name:  "exec-arg",
			Usage: "Argument passed to the --exec binary (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-call timeout (0 = none)",
		},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
