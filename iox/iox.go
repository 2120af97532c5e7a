// Package iox provides I/O helpers for resource cleanup and CLI input.
package iox

import (
	"fmt"
	"io"
	"os"
)

// Stdio is the path that selects stdin or stdout.
const Stdio = "-"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// ReadInput reads all of path, or of stdin when path is empty or "-".
// limit caps the bytes read; a larger input is an error. limit <= 0
// means unlimited.
func ReadInput(path string, stdin io.Reader, limit int64) ([]byte, error) {
	var r io.Reader = stdin
	name := "stdin"
	if path != "" && path != Stdio {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer DiscardClose(f)
		r = f
		name = path
	}

	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: input exceeds %d bytes", name, limit)
	}
	return data, nil
}

// WriteOutput writes data to path, or to stdout when path is empty or "-".
func WriteOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" || path == Stdio {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
