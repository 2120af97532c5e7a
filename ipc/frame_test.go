package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeFrame encodes a payload with length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

// encodeMessageFrame encodes a message as a framed msgpack payload.
func encodeMessageFrame(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return encodeFrame(payload), nil
}

func TestFrameDecoder_SingleRequest(t *testing.T) {
	req := NewRequest(0x81, 7, []byte{1, 0, 0, 0, 8, 0, 0, 0})

	frame, err := encodeMessageFrame(req)
	if err != nil {
		t.Fatalf("encodeMessageFrame failed: %v", err)
	}

	decoder := NewFrameDecoder(bytes.NewReader(frame))
	payload, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	decoded, err := DecodeRequest(payload)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}

	if decoded.Session != req.Session {
		t.Errorf("Session = %#x, want %#x", decoded.Session, req.Session)
	}
	if decoded.Command != req.Command {
		t.Errorf("Command = %d, want %d", decoded.Command, req.Command)
	}
	if !bytes.Equal(decoded.Params, req.Params) {
		t.Errorf("Params = %x, want %x", decoded.Params, req.Params)
	}
}

func TestFrameEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)

	if err := enc.WriteMessage(NewRequest(1, 2, []byte("req"))); err != nil {
		t.Fatalf("WriteMessage(request) failed: %v", err)
	}
	if err := enc.WriteMessage(NewResponse(0xFFFF0010, 4, []byte("resp"))); err != nil {
		t.Fatalf("WriteMessage(response) failed: %v", err)
	}

	decoder := NewFrameDecoder(&buf)
	var got []any
	for {
		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		msg, err := DecodeMessage(payload)
		if err != nil {
			t.Fatalf("DecodeMessage failed: %v", err)
		}
		got = append(got, msg)
	}

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	req, ok := got[0].(*Request)
	if !ok {
		t.Fatalf("first message is %T, want *Request", got[0])
	}
	if string(req.Params) != "req" {
		t.Errorf("request Params = %q", req.Params)
	}
	resp, ok := got[1].(*Response)
	if !ok {
		t.Fatalf("second message is %T, want *Response", got[1])
	}
	if resp.Result != 0xFFFF0010 || resp.Origin != 4 || string(resp.Params) != "resp" {
		t.Errorf("response = %+v", resp)
	}
}

func TestFrameEncoder_EmptyParams(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameEncoder(&buf).WriteMessage(NewResponse(0xFFFF000A, 3, nil)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	payload, err := NewFrameDecoder(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	resp, err := DecodeResponse(payload)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if len(resp.Params) != 0 {
		t.Errorf("Params = %x, want empty", resp.Params)
	}
}

func TestFrameEncoder_Oversized(t *testing.T) {
	var buf bytes.Buffer
	err := NewFrameEncoder(&buf).WriteFrame(make([]byte, MaxPayloadSize+1))

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %v", err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %v, want FrameErrorTooLarge", frameErr.Kind)
	}
	if buf.Len() != 0 {
		t.Errorf("oversized frame wrote %d bytes", buf.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestFrameEncoder_WriteFailure(t *testing.T) {
	err := NewFrameEncoder(failingWriter{}).WriteMessage(NewRequest(1, 1, nil))

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %v", err)
	}
	if frameErr.Kind != FrameErrorEncode {
		t.Errorf("Kind = %v, want FrameErrorEncode", frameErr.Kind)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Error("write error should be unwrappable")
	}
	if frameErr.IsFatal() {
		t.Error("encode errors should not be fatal to the read side")
	}
}

// TestFrameDecoder_PartialFrame validates fatal error for truncated frames.
func TestFrameDecoder_PartialFrame(t *testing.T) {
	frame, _ := encodeMessageFrame(NewRequest(1, 1, bytes.Repeat([]byte{0xAB}, 64)))

	// Keep only length prefix + half payload
	truncated := frame[:LengthPrefixSize+len(frame[LengthPrefixSize:])/2]

	decoder := NewFrameDecoder(bytes.NewReader(truncated))
	_, err := decoder.ReadFrame()

	if err == nil {
		t.Fatal("expected error for truncated frame")
	}

	if !IsFatalFrameError(err) {
		t.Errorf("expected fatal frame error, got: %v", err)
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}

	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want FrameErrorPartial", frameErr.Kind)
	}
}

// TestFrameDecoder_OversizedFrame validates fatal error for frames exceeding max size.
func TestFrameDecoder_OversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(MaxPayloadSize+1))

	decoder := NewFrameDecoder(&buf)
	_, err := decoder.ReadFrame()

	if err == nil {
		t.Fatal("expected error for oversized frame")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}

	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %v, want FrameErrorTooLarge", frameErr.Kind)
	}

	if !frameErr.IsFatal() {
		t.Error("FrameErrorTooLarge.IsFatal() should return true")
	}
}

func TestFrameDecoder_EmptyStream(t *testing.T) {
	decoder := NewFrameDecoder(bytes.NewReader(nil))
	_, err := decoder.ReadFrame()

	if err != io.EOF {
		t.Errorf("expected io.EOF, got: %v", err)
	}
}

// TestFrameDecoder_TruncatedLengthPrefix validates fatal error when length prefix is incomplete.
func TestFrameDecoder_TruncatedLengthPrefix(t *testing.T) {
	decoder := NewFrameDecoder(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := decoder.ReadFrame()

	if !IsFatalFrameError(err) {
		t.Errorf("expected fatal frame error, got: %v", err)
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}

	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want FrameErrorPartial", frameErr.Kind)
	}
}

// TestDecodeMessage_Malformed validates decode errors for invalid payloads.
// Decode errors are non-fatal: the frame was read correctly, its content wasn't.
func TestDecodeMessage_Malformed(t *testing.T) {
	unknown, _ := msgpack.Marshal(map[string]any{"type": "cancel"})

	tests := []struct {
		name    string
		payload []byte
		decode  func([]byte) (any, error)
	}{
		{"garbage", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, DecodeMessage},
		{"unknown type", unknown, DecodeMessage},
		{"response as request", mustMarshal(t, NewResponse(0, 1, nil)), func(b []byte) (any, error) { return DecodeRequest(b) }},
		{"request as response", mustMarshal(t, NewRequest(1, 1, nil)), func(b []byte) (any, error) { return DecodeResponse(b) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decode(tt.payload)
			if err == nil {
				t.Fatal("expected decode error")
			}

			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Fatalf("expected *FrameError, got %T", err)
			}
			if frameErr.Kind != FrameErrorDecode {
				t.Errorf("Kind = %v, want FrameErrorDecode", frameErr.Kind)
			}
			if IsFatalFrameError(err) {
				t.Error("decode errors should not be fatal")
			}
		})
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	return b
}

// TestFrameError_ErrorMessage validates error message formatting.
func TestFrameError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *FrameError
		contains string
	}{
		{
			name:     "partial without underlying error",
			err:      &FrameError{Kind: FrameErrorPartial, Msg: "truncated"},
			contains: "truncated",
		},
		{
			name: "partial with underlying error",
			err: &FrameError{
				Kind: FrameErrorPartial,
				Msg:  "read failed",
				Err:  io.ErrUnexpectedEOF,
			},
			contains: "unexpected EOF",
		},
		{
			name:     "oversized",
			err:      &FrameError{Kind: FrameErrorTooLarge, Msg: "payload too big"},
			contains: "too big",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			if !strings.Contains(msg, tt.contains) {
				t.Errorf("error message %q does not contain %q", msg, tt.contains)
			}
		})
	}
}

func TestOriginName(t *testing.T) {
	tests := map[uint32]string{
		OriginAPI:        "api",
		OriginComms:      "comms",
		OriginTEE:        "tee",
		OriginTrustedApp: "trusted_app",
		9:                "origin(9)",
	}
	for origin, want := range tests {
		if got := OriginName(origin); got != want {
			t.Errorf("OriginName(%d) = %q, want %q", origin, got, want)
		}
	}
}

func TestFrameErrorKind_String(t *testing.T) {
	if s := FrameErrorEncode.String(); s != "encode" {
		t.Errorf("FrameErrorEncode.String() = %q", s)
	}
	if s := FrameErrorKind(42).String(); s != "frame_error(42)" {
		t.Errorf("unknown kind String() = %q", s)
	}
}

// TestIsFatalFrameError_NonFrameError validates IsFatalFrameError with non-FrameError.
func TestIsFatalFrameError_NonFrameError(t *testing.T) {
	if IsFatalFrameError(errors.New("regular error")) {
		t.Error("regular errors should not be fatal frame errors")
	}

	if IsFatalFrameError(nil) {
		t.Error("nil should not be a fatal frame error")
	}

	if IsFatalFrameError(io.EOF) {
		t.Error("io.EOF should not be a fatal frame error")
	}
}
