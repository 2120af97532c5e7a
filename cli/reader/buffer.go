package reader

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BufferFormat is the on-disk form of a parameter buffer.
type BufferFormat string

const (
	BufferRaw  BufferFormat = "raw"
	BufferHex  BufferFormat = "hex"
	BufferAuto BufferFormat = "auto"
)

// ParseBufferFormat parses raw, hex or auto. Empty means auto.
func ParseBufferFormat(s string) (BufferFormat, error) {
	switch f := BufferFormat(strings.ToLower(s)); f {
	case BufferRaw, BufferHex, BufferAuto:
		return f, nil
	case "":
		return BufferAuto, nil
	default:
		return "", fmt.Errorf("invalid buffer format: %q (must be raw, hex, or auto)", s)
	}
}

// ParseBuffer converts file contents into a parameter buffer. Hex input
// may contain whitespace. Auto treats input as hex when it is non-empty,
// has an even number of hex digits and nothing else but whitespace.
func ParseBuffer(data []byte, format BufferFormat) ([]byte, error) {
	switch format {
	case BufferRaw:
		return data, nil
	case BufferHex:
		return decodeHex(data)
	case BufferAuto, "":
		if looksHex(data) {
			return decodeHex(data)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown buffer format %q", format)
	}
}

func decodeHex(data []byte) ([]byte, error) {
	compact := strings.Join(strings.Fields(string(data)), "")
	out, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid hex buffer: %w", err)
	}
	return out, nil
}

func looksHex(data []byte) bool {
	digits := 0
	for _, c := range data {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			digits++
		case c == ' ', c == '\n', c == '\r', c == '\t':
		default:
			return false
		}
	}
	return digits > 0 && digits%2 == 0
}
