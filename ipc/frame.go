// Package ipc implements the framing that carries parameter buffers between a
// client and a service domain.
//
// Every message is a 4-byte big-endian length prefix followed by a msgpack
// payload. A call is exactly one Request frame answered by one Response
// frame; frames of different calls are never interleaved.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Message type discriminants.
const (
	// RequestType marks a call from client to service.
	RequestType = "invoke"
	// ResponseType marks the service's answer to a call.
	ResponseType = "result"
)

// Request asks a service to run one command. Params is an encoded parameter
// buffer as produced by codec.Encode.
type Request struct {
	Type    string `msgpack:"type"`
	Session uint32 `msgpack:"session"`
	Command uint32 `msgpack:"command"`
	Params  []byte `msgpack:"params"`
}

// Response is the result of one command. Params holds the service's record
// buffer for the client to decode; it may be empty when Result is not
// success and the service had nothing to report.
type Response struct {
	Type   string `msgpack:"type"`
	Result uint32 `msgpack:"result"`
	Origin uint32 `msgpack:"origin"`
	Params []byte `msgpack:"params,omitempty"`
}

// Result origins, identifying the layer that produced a result code.
const (
	OriginAPI        uint32 = 1
	OriginComms      uint32 = 2
	OriginTEE        uint32 = 3
	OriginTrustedApp uint32 = 4
)

// OriginName returns the printable name of an origin.
func OriginName(origin uint32) string {
	switch origin {
	case OriginAPI:
		return "api"
	case OriginComms:
		return "comms"
	case OriginTEE:
		return "tee"
	case OriginTrustedApp:
		return "trusted_app"
	default:
		return fmt.Sprintf("origin(%d)", origin)
	}
}

// NewRequest builds a request frame body.
func NewRequest(session, command uint32, params []byte) *Request {
	return &Request{Type: RequestType, Session: session, Command: command, Params: params}
}

// NewResponse builds a response frame body.
func NewResponse(result, origin uint32, params []byte) *Response {
	return &Response{Type: ResponseType, Result: result, Origin: origin, Params: params}
}

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorEncode indicates a msgpack encoding or write error.
	FrameErrorEncode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorEncode:
		return "encode"
	default:
		return fmt.Sprintf("frame_error(%d)", int(k))
	}
}

// FrameError represents a framing error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream can no longer be trusted.
// Partial and oversized frames leave the reader out of sync.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// FrameEncoder writes length-prefixed msgpack frames to a stream.
// It is not safe for concurrent use.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame writes payload with its length prefix in a single Write call.
func (e *FrameEncoder) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)

	if _, err := e.writer.Write(frame); err != nil {
		return &FrameError{
			Kind: FrameErrorEncode,
			Msg:  "failed to write frame",
			Err:  err,
		}
	}
	return nil
}

// WriteMessage msgpack-encodes v and writes it as one frame.
func (e *FrameEncoder) WriteMessage(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return &FrameError{
			Kind: FrameErrorEncode,
			Msg:  fmt.Sprintf("failed to encode %T", v),
			Err:  err,
		}
	}
	return e.WriteFrame(payload)
}

// messageTypeProbe is used to peek at the type field without full decode.
type messageTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeMessage decodes a payload into a *Request or *Response according to
// its type field.
func DecodeMessage(payload []byte) (any, error) {
	var probe messageTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode message type",
			Err:  err,
		}
	}

	switch probe.Type {
	case RequestType:
		return DecodeRequest(payload)
	case ResponseType:
		return DecodeResponse(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown message type %q", probe.Type),
		}
	}
}

// DecodeRequest decodes a payload as a Request.
func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode request",
			Err:  err,
		}
	}
	if req.Type != RequestType {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("message type %q is not a request", req.Type),
		}
	}
	return &req, nil
}

// DecodeResponse decodes a payload as a Response.
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := msgpack.Unmarshal(payload, &resp); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode response",
			Err:  err,
		}
	}
	if resp.Type != ResponseType {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("message type %q is not a response", resp.Type),
		}
	}
	return &resp, nil
}
