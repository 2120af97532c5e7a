package codec

import (
	"errors"
	"fmt"
)

// Code is a TEE Client API result code.
type Code uint32

// Result codes. Only a subset is produced by the codec itself; the rest are
// carried through from services by the call layer.
const (
	CodeSuccess       Code = 0x00000000
	CodeGeneric       Code = 0xFFFF0000
	CodeAccessDenied  Code = 0xFFFF0001
	CodeCancel        Code = 0xFFFF0002
	CodeExcessData    Code = 0xFFFF0004
	CodeBadFormat     Code = 0xFFFF0005
	CodeBadParameters Code = 0xFFFF0006
	CodeBadState      Code = 0xFFFF0007
	CodeItemNotFound  Code = 0xFFFF0008
	CodeNotSupported  Code = 0xFFFF000A
	CodeOutOfMemory   Code = 0xFFFF000C
	CodeCommunication Code = 0xFFFF000E
	CodeShortBuffer   Code = 0xFFFF0010
)

var codeNames = map[Code]string{
	CodeSuccess:       "SUCCESS",
	CodeGeneric:       "GENERIC",
	CodeAccessDenied:  "ACCESS_DENIED",
	CodeCancel:        "CANCEL",
	CodeExcessData:    "EXCESS_DATA",
	CodeBadFormat:     "BAD_FORMAT",
	CodeBadParameters: "BAD_PARAMETERS",
	CodeBadState:      "BAD_STATE",
	CodeItemNotFound:  "ITEM_NOT_FOUND",
	CodeNotSupported:  "NOT_SUPPORTED",
	CodeOutOfMemory:   "OUT_OF_MEMORY",
	CodeCommunication: "COMMUNICATION",
	CodeShortBuffer:   "SHORT_BUFFER",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(c))
}

// Error is a recoverable codec failure.
type Error struct {
	Code Code
	// Slot is the parameter index the failure relates to, or -1.
	Slot int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	if e.Slot >= 0 {
		msg = fmt.Sprintf("codec: %s: param %d: %s", e.Code, e.Slot, e.Msg)
	} else {
		msg = fmt.Sprintf("codec: %s: %s", e.Code, e.Msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can test
// errors.Is(err, codec.ErrBadFormat).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrExcessData    = &Error{Code: CodeExcessData, Slot: -1, Msg: "excess data"}
	ErrBadFormat     = &Error{Code: CodeBadFormat, Slot: -1, Msg: "bad format"}
	ErrBadParameters = &Error{Code: CodeBadParameters, Slot: -1, Msg: "bad parameters"}
	ErrOutOfMemory   = &Error{Code: CodeOutOfMemory, Slot: -1, Msg: "out of memory"}
)

func newError(code Code, slot int, format string, args ...any) *Error {
	return &Error{Code: code, Slot: slot, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf maps an error to a result code: nil is CodeSuccess, a codec *Error
// keeps its code, anything else is CodeGeneric.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeGeneric
}

// Defect is the panic value raised when an operation carries a partial
// memory reference. It is an implementation defect in the caller and is
// never returned as an error.
type Defect struct {
	Slot  int
	Kind  Kind
	Phase string
}

func (d *Defect) Error() string {
	return fmt.Sprintf("codec: %s: param %d: %s has no wire encoding", d.Phase, d.Slot, d.Kind)
}
