package cmd

import (
	"strings"

	"github.com/urfave/cli/v2"
)

// ReorderArgs moves the flags of the invoked command ahead of its
// positional arguments, so `teewire encode op.yaml --out buf.bin` parses
// like `teewire encode --out buf.bin op.yaml`. Flag parsing in urfave/cli
// stops at the first positional argument. Everything after "--" is left
// in place as positional.
func ReorderArgs(app *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}
	out := make([]string, 0, len(args))
	out = append(out, args[0])
	i := 1

	// Global flags keep their place ahead of the command name.
	for i < len(args) && isFlagArg(args[i]) {
		out = append(out, args[i])
		if needsValue(app.Flags, args[i]) && i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
		i++
	}

	var leaf *cli.Command
	commands := app.Commands
	for i < len(args) {
		c := findCommand(commands, args[i])
		if c == nil {
			break
		}
		out = append(out, args[i])
		leaf = c
		commands = c.Subcommands
		i++
	}
	if leaf == nil {
		return append(out, args[i:]...)
	}

	var flags, positional []string
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i:]...)
			break
		}
		if !isFlagArg(a) {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if needsValue(leaf.Flags, a) && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	out = append(out, flags...)
	return append(out, positional...)
}

// isFlagArg reports whether a looks like a flag. A lone "-" names stdin.
func isFlagArg(a string) bool {
	return len(a) > 1 && a[0] == '-' && a != "--"
}

// needsValue reports whether the flag token a consumes the next argument.
func needsValue(flags []cli.Flag, a string) bool {
	name := strings.TrimLeft(a, "-")
	if strings.Contains(name, "=") {
		return false
	}
	for _, f := range flags {
		for _, n := range f.Names() {
			if n != name {
				continue
			}
			if df, ok := f.(cli.DocGenerationFlag); ok {
				return df.TakesValue()
			}
			return false
		}
	}
	return false
}

func findCommand(commands []*cli.Command, name string) *cli.Command {
	for _, c := range commands {
		if c.HasName(name) {
			return c
		}
	}
	return nil
}
