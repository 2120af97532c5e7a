package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/cli/config"
	"github.com/justapithecus/teewire/client"
	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/log"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUsage     = 1 // bad flags, unreadable config or operation file
	exitCodec     = 2 // encode or decode failed
	exitService   = 3 // service returned a non-success result
	exitTransport = 4 // the service could not be reached or hung up
)

// env is the per-invocation state every command builds first: the loaded
// config (nil when none was given), a logger on stderr and codec options.
type env struct {
	cfg       *config.Config
	session   uint32
	logger    *log.Logger
	codecOpts []codec.Option
}

// loadEnv loads --config, resolves logging and codec flags against it and
// returns the command environment. Errors are usage errors.
func loadEnv(c *cli.Context) (*env, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("config: %v", err), exitUsage)
		}
		cfg = loaded
	}

	levelName := resolveString(c, "log-level", configVal(cfg, func(cf *config.Config) string { return cf.Log.Level }))
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}

	session := uint32(resolveUint(c, "session", uint(configVal(cfg, func(cf *config.Config) uint32 { return cf.Session }))))
	logger := log.NewLoggerWithWriter(&log.CallMeta{Session: session, Component: "cli"}, c.App.ErrWriter, level)

	hexdump := resolveBool(c, "hexdump", configVal(cfg, func(cf *config.Config) bool { return cf.Log.HexDump }))
	maxSize := resolveInt(c, "max-buffer-size", configVal(cfg, func(cf *config.Config) int { return cf.Codec.MaxBufferSize }))
	if maxSize < 0 {
		return nil, cli.Exit(fmt.Sprintf("--max-buffer-size must be >= 0, got %d", maxSize), exitUsage)
	}

	opts := []codec.Option{codec.WithLogger(logger), codec.WithHexDump(hexdump)}
	if maxSize > 0 {
		opts = append(opts, codec.WithMaxBufferSize(maxSize))
	}
	return &env{cfg: cfg, session: session, logger: logger, codecOpts: opts}, nil
}

// configVal reads a field from cfg, returning the zero value for a nil cfg.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

// resolveString returns the flag value when set on the command line, else
// the config value when non-empty, else the flag default.
func resolveString(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if fromConfig != "" {
		return fromConfig
	}
	return c.String(name)
}

// resolveInt is resolveString for int flags. A zero config value counts
// as unset.
func resolveInt(c *cli.Context, name string, fromConfig int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if fromConfig != 0 {
		return fromConfig
	}
	return c.Int(name)
}

// resolveUint is resolveInt for uint flags.
func resolveUint(c *cli.Context, name string, fromConfig uint) uint {
	if c.IsSet(name) {
		return c.Uint(name)
	}
	if fromConfig != 0 {
		return fromConfig
	}
	return c.Uint(name)
}

// resolveBool returns true when either the flag or the config says so.
// An explicit --flag=false on the command line wins over the config.
func resolveBool(c *cli.Context, name string, fromConfig bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return fromConfig || c.Bool(name)
}

// resolveDuration is resolveInt for duration flags.
func resolveDuration(c *cli.Context, name string, fromConfig time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if fromConfig != 0 {
		return fromConfig
	}
	return c.Duration(name)
}

// exitCodeFor maps a call error to an exit code.
func exitCodeFor(err error) int {
	var re *client.ResultError
	if errors.As(err, &re) {
		return exitService
	}
	var ce *codec.Error
	if errors.As(err, &ce) {
		return exitCodec
	}
	return exitTransport
}
