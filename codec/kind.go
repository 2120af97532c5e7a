package codec

import (
	"fmt"
	"strings"
)

// ParamCount is the fixed number of parameter slots in every operation and
// every encoded buffer.
const ParamCount = 4

// Kind is a parameter type tag. Values match the TEE Client API so that a
// buffer produced here is readable by a service speaking that vocabulary.
type Kind uint32

// Parameter kinds.
const (
	KindNone         Kind = 0x0
	KindValueIn      Kind = 0x1
	KindValueOut     Kind = 0x2
	KindValueInOut   Kind = 0x3
	KindTempIn       Kind = 0x5
	KindTempOut      Kind = 0x6
	KindTempInOut    Kind = 0x7
	KindWhole        Kind = 0xC
	KindPartialIn    Kind = 0xD
	KindPartialOut   Kind = 0xE
	KindPartialInOut Kind = 0xF

	// KindUnknown is reported by malformed parameters (nil pointers, invalid
	// directions). It never appears on the wire.
	KindUnknown Kind = 0xFFFFFFFF
)

var kindNames = map[Kind]string{
	KindNone:         "none",
	KindValueIn:      "value_input",
	KindValueOut:     "value_output",
	KindValueInOut:   "value_inout",
	KindTempIn:       "memref_temp_input",
	KindTempOut:      "memref_temp_output",
	KindTempInOut:    "memref_temp_inout",
	KindWhole:        "memref_whole",
	KindPartialIn:    "memref_partial_input",
	KindPartialOut:   "memref_partial_output",
	KindPartialInOut: "memref_partial_inout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%x)", uint32(k))
}

// ParseKind resolves a kind name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown parameter kind %q", s)
}

// IsOutput reports whether a service may write data back through this kind.
// KindWhole is reported as output-capable; the parent's flags decide per call.
func (k Kind) IsOutput() bool {
	e, ok := kindTable[k]
	return ok && e.writeBack
}

// IsPartial reports whether k is one of the partial registered memory kinds.
func (k Kind) IsPartial() bool {
	return k == KindPartialIn || k == KindPartialOut || k == KindPartialInOut
}

// Direction is the data flow of a value or temporary buffer parameter.
type Direction uint8

// Directions. The zero value is invalid so that an unset direction is caught.
const (
	DirIn Direction = iota + 1
	DirOut
	DirInOut
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "input"
	case DirOut:
		return "output"
	case DirInOut:
		return "inout"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// MemFlags is the direction bitmask of a registered shared memory object.
type MemFlags uint32

// Shared memory flags.
const (
	MemInput  MemFlags = 1 << 0
	MemOutput MemFlags = 1 << 1
)

// tempKindFor normalizes a shared memory direction to the temporary buffer
// kind the service understands. Returns false when neither bit is set.
func tempKindFor(flags MemFlags) (Kind, bool) {
	const inout = MemInput | MemOutput
	switch {
	case flags&inout == inout:
		return KindTempInOut, true
	case flags&MemInput != 0:
		return KindTempIn, true
	case flags&MemOutput != 0:
		return KindTempOut, true
	default:
		return KindUnknown, false
	}
}

func directed(d Direction, in, out, inout Kind) Kind {
	switch d {
	case DirIn:
		return in
	case DirOut:
		return out
	case DirInOut:
		return inout
	default:
		return KindUnknown
	}
}
