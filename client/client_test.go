package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/ipc"
	"github.com/justapithecus/teewire/log"
	"github.com/justapithecus/teewire/metrics"
	"github.com/justapithecus/teewire/service"
)

// newLoopback opens a session against an in-process service over a pipe.
func newLoopback(t *testing.T, h service.Handler, opts ...Option) *Session {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	go func() {
		_ = service.Serve(context.Background(), serverEnd, h, log.NewNop())
		serverEnd.Close()
	}()
	s := NewSession(clientEnd, 0x81, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInvoke_EchoRoundTrip(t *testing.T) {
	collector := metrics.NewCollector("pipe", 0x81)
	s := newLoopback(t, service.Echo, WithCollector(collector))

	val := &codec.Value{Dir: codec.DirInOut, A: 10, B: 20}
	out := &codec.TempRef{Dir: codec.DirOut, Buffer: make([]byte, 4), Size: 4}
	shm := &codec.SharedMemory{Buffer: []byte("abc"), Size: 3, Flags: codec.MemInput | codec.MemOutput}
	whole := &codec.WholeRef{Parent: shm}
	in := &codec.TempRef{Dir: codec.DirIn, Buffer: []byte("req"), Size: 3}
	op := &codec.Operation{Params: [codec.ParamCount]codec.Param{val, out, whole, in}}

	origin, err := s.Invoke(t.Context(), service.CommandEcho, op)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if origin != OriginTrustedApp {
		t.Errorf("origin = %s, want trusted_app", ipc.OriginName(origin))
	}
	if val.A != 11 || val.B != 21 {
		t.Errorf("value = (%d, %d), want (11, 21)", val.A, val.B)
	}
	if out.Size != 4 {
		t.Errorf("output Size = %d, want 4", out.Size)
	}
	if whole.Size != 3 || string(shm.Buffer) != "abc" {
		t.Errorf("registered memory = %q size %d", shm.Buffer, whole.Size)
	}
	if string(in.Buffer) != "req" || in.Size != 3 {
		t.Errorf("input buffer changed: %q size %d", in.Buffer, in.Size)
	}

	snap := collector.Snapshot()
	if snap.Invocations != 1 || snap.EncodeCalls != 1 || snap.DecodeCalls != 1 {
		t.Errorf("Invocations/EncodeCalls/DecodeCalls = %d/%d/%d, want 1/1/1",
			snap.Invocations, snap.EncodeCalls, snap.DecodeCalls)
	}
	if snap.InvokeFailures != 0 {
		t.Errorf("InvokeFailures = %d, want 0", snap.InvokeFailures)
	}
}

func TestInvoke_NilOperation(t *testing.T) {
	s := newLoopback(t, service.Echo)

	if _, err := s.Invoke(t.Context(), service.CommandEcho, nil); err != nil {
		t.Fatalf("Invoke without params failed: %v", err)
	}
}

func TestInvoke_ShortBufferReportsSize(t *testing.T) {
	collector := metrics.NewCollector("pipe", 1)
	s := newLoopback(t, service.ShortBuffer(64), WithCollector(collector))

	buf := make([]byte, 8)
	tmp := &codec.TempRef{Dir: codec.DirOut, Buffer: buf, Size: 8}
	op := &codec.Operation{Params: [codec.ParamCount]codec.Param{tmp}}

	origin, err := s.Invoke(t.Context(), 0, op)

	var re *ResultError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *ResultError", err)
	}
	if re.Code != codec.CodeShortBuffer || Code(err) != codec.CodeShortBuffer {
		t.Errorf("Code = %s, want SHORT_BUFFER", re.Code)
	}
	if origin != OriginTrustedApp {
		t.Errorf("origin = %s, want trusted_app", ipc.OriginName(origin))
	}
	if tmp.Size != 64 {
		t.Errorf("Size = %d, want required 64", tmp.Size)
	}
	if got := collector.Snapshot().ServiceErrors["SHORT_BUFFER"]; got != 1 {
		t.Errorf("ServiceErrors[SHORT_BUFFER] = %d, want 1", got)
	}
}

func TestInvoke_UnknownCommand(t *testing.T) {
	s := newLoopback(t, service.NewDefaultMux())

	v := &codec.Value{Dir: codec.DirOut, A: 5}
	_, err := s.Invoke(t.Context(), 42, &codec.Operation{Params: [codec.ParamCount]codec.Param{v}})

	if Code(err) != codec.CodeNotSupported {
		t.Fatalf("Code(err) = %s, want NOT_SUPPORTED", Code(err))
	}
	if v.A != 5 {
		t.Errorf("value updated on failed call: A = %d", v.A)
	}
}

func TestInvoke_EncodeFailureSendsNothing(t *testing.T) {
	called := false
	s := newLoopback(t, service.HandlerFunc(func(context.Context, *service.Call) service.Reply {
		called = true
		return service.Reply{}
	}))

	op := &codec.Operation{Params: [codec.ParamCount]codec.Param{&codec.WholeRef{}}}
	origin, err := s.Invoke(t.Context(), 0, op)

	if !errors.Is(err, codec.ErrBadParameters) {
		t.Fatalf("err = %v, want BAD_PARAMETERS", err)
	}
	if origin != OriginAPI {
		t.Errorf("origin = %s, want api", ipc.OriginName(origin))
	}
	// A follow-up call proves the stream is still in sync
	if _, err := s.Invoke(t.Context(), 0, nil); err != nil {
		t.Fatalf("follow-up Invoke failed: %v", err)
	}
	if !called {
		t.Error("follow-up call did not reach the handler")
	}
}

func TestInvoke_ServiceClosed(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	go func() {
		// Read the request, then hang up
		_, _ = ipc.NewFrameDecoder(serverEnd).ReadFrame()
		serverEnd.Close()
	}()
	collector := metrics.NewCollector("pipe", 1)
	s := NewSession(clientEnd, 1, WithCollector(collector))
	defer s.Close()

	origin, err := s.Invoke(t.Context(), 0, nil)
	if err == nil {
		t.Fatal("expected error when service hangs up")
	}
	if origin != OriginComms {
		t.Errorf("origin = %s, want comms", ipc.OriginName(origin))
	}
	if Code(err) != codec.CodeCommunication {
		t.Errorf("Code(err) = %s, want COMMUNICATION", Code(err))
	}
	if got := collector.Snapshot().TransportFailures; got != 1 {
		t.Errorf("TransportFailures = %d, want 1", got)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer serverEnd.Close()
	go func() {
		// Swallow requests without answering
		_, _ = io.Copy(io.Discard, serverEnd)
	}()
	s := NewSession(clientEnd, 1, WithTimeout(50*time.Millisecond))
	defer s.Close()

	_, err := s.Invoke(t.Context(), 0, nil)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestInvoke_ContextAlreadyCancelled(t *testing.T) {
	s := newLoopback(t, service.Echo)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := s.Invoke(ctx, 0, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestInvoke_MalformedResponse(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	go func() {
		defer serverEnd.Close()
		if _, err := ipc.NewFrameDecoder(serverEnd).ReadFrame(); err != nil {
			return
		}
		// Success with a truncated parameter buffer
		_ = ipc.NewFrameEncoder(serverEnd).WriteMessage(ipc.NewResponse(0, OriginTrustedApp, []byte{2, 0, 0, 0}))
	}()
	s := NewSession(clientEnd, 1)
	defer s.Close()

	v := &codec.Value{Dir: codec.DirOut}
	_, err := s.Invoke(t.Context(), 0, &codec.Operation{Params: [codec.ParamCount]codec.Param{v}})
	if !errors.Is(err, codec.ErrExcessData) {
		t.Errorf("err = %v, want EXCESS_DATA", err)
	}
}

func TestInvoke_Recorder(t *testing.T) {
	var got []*Exchange
	s := newLoopback(t, service.Echo, WithRecorder(func(_ context.Context, x *Exchange) error {
		got = append(got, x)
		return errors.New("recorder unavailable")
	}))

	op := &codec.Operation{Params: [codec.ParamCount]codec.Param{&codec.Value{Dir: codec.DirOut}}}
	if _, err := s.Invoke(t.Context(), 3, op); err != nil {
		t.Fatalf("recorder failure must not fail the call: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("recorded %d exchanges, want 1", len(got))
	}
	x := got[0]
	if x.Session != 0x81 || x.Command != 3 || x.Result != codec.CodeSuccess {
		t.Errorf("exchange = %+v", x)
	}
	reqRecs, err := codec.Records(x.Request)
	if err != nil {
		t.Fatalf("recorded request unparseable: %v", err)
	}
	respRecs, err := codec.Records(x.Response)
	if err != nil {
		t.Fatalf("recorded response unparseable: %v", err)
	}
	if bytes.Equal(reqRecs[0].Payload, respRecs[0].Payload) {
		t.Error("echo should have incremented the value")
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codec.Code
	}{
		{"nil", nil, codec.CodeSuccess},
		{"result", &ResultError{Code: codec.CodeAccessDenied}, codec.CodeAccessDenied},
		{"frame", &ipc.FrameError{Kind: ipc.FrameErrorPartial}, codec.CodeCommunication},
		{"eof", io.EOF, codec.CodeCommunication},
		{"codec", codec.ErrBadFormat, codec.CodeBadFormat},
		{"other", errors.New("x"), codec.CodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResultError_Error(t *testing.T) {
	err := &ResultError{Code: codec.CodeShortBuffer, Origin: OriginTrustedApp}
	if got := err.Error(); got != "service returned SHORT_BUFFER (origin trusted_app)" {
		t.Errorf("Error() = %q", got)
	}
}
