// Package config loads teewire.yaml tool configuration and op.yaml
// operation descriptions.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
//   - ${VAR} expands to the env var value, or empty string if unset
//   - ${VAR:-default} expands to the env var value, or "default" if unset/empty
//   - ${VAR:?message} expands to the env var value, or fails with message
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// MissingEnvError reports a ${VAR:?message} whose variable is unset or empty.
type MissingEnvError struct {
	Name    string
	Message string
}

func (e *MissingEnvError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: required environment variable not set", e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// ExpandEnv replaces ${VAR}, ${VAR:-default} and ${VAR:?message} patterns
// in the input with their environment values.
//
// Unset variables without a default expand to the empty string. The first
// unset ${VAR:?message} is returned as a *MissingEnvError.
func ExpandEnv(input string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 4 {
			return match
		}

		name, op, arg := groups[1], groups[2], groups[3]
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}

		switch op {
		case "-":
			return arg
		case "?":
			if firstErr == nil {
				firstErr = &MissingEnvError{Name: name, Message: strings.TrimSpace(arg)}
			}
		}
		return ""
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
