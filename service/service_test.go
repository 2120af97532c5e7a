package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/ipc"
	"github.com/justapithecus/teewire/log"
)

// startServe runs Serve on one end of a pipe and returns the other end.
func startServe(t *testing.T, h Handler) (net.Conn, <-chan error) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- Serve(t.Context(), serverEnd, h, log.NewNop())
		serverEnd.Close()
	}()
	t.Cleanup(func() { clientEnd.Close() })
	return clientEnd, done
}

func call(t *testing.T, conn net.Conn, req any) *ipc.Response {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if err := ipc.NewFrameEncoder(conn).WriteMessage(req); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	payload, err := ipc.NewFrameDecoder(conn).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	resp, err := ipc.DecodeResponse(payload)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	return resp
}

func value(a, b uint32) []byte {
	p := make([]byte, codec.ValueSize)
	binary.LittleEndian.PutUint32(p[0:4], a)
	binary.LittleEndian.PutUint32(p[4:8], b)
	return p
}

func TestServe_Echo(t *testing.T) {
	conn, _ := startServe(t, Echo)

	params := codec.EncodeRecords([]codec.Record{
		{Kind: codec.KindValueInOut, Payload: value(1, 2)},
		{Kind: codec.KindTempIn, Payload: []byte("input")},
		{Kind: codec.KindTempOut, Payload: make([]byte, 4)},
		{Kind: codec.KindTempInOut, Payload: []byte("both")},
	})
	resp := call(t, conn, ipc.NewRequest(0x81, CommandEcho, params))

	if codec.Code(resp.Result) != codec.CodeSuccess {
		t.Fatalf("Result = %s, want SUCCESS", codec.Code(resp.Result))
	}
	if resp.Origin != ipc.OriginTrustedApp {
		t.Errorf("Origin = %s, want trusted_app", ipc.OriginName(resp.Origin))
	}

	recs, err := codec.Records(resp.Params)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if !bytes.Equal(recs[0].Payload, value(2, 3)) {
		t.Errorf("value record = %x, want incremented", recs[0].Payload)
	}
	if recs[1].Kind != codec.KindTempIn || len(recs[1].Payload) != 0 {
		t.Errorf("input record = %s %q, want empty", recs[1].Kind, recs[1].Payload)
	}
	if !bytes.Equal(recs[2].Payload, make([]byte, 4)) {
		t.Errorf("output record = %x, want 4 zero bytes", recs[2].Payload)
	}
	if string(recs[3].Payload) != "both" {
		t.Errorf("inout record = %q, want echoed", recs[3].Payload)
	}
}

func TestServe_SequentialCalls(t *testing.T) {
	conn, done := startServe(t, Echo)

	empty := codec.EncodeRecords(make([]codec.Record, codec.ParamCount))
	for i := range 3 {
		resp := call(t, conn, ipc.NewRequest(1, uint32(i), empty))
		if codec.Code(resp.Result) != codec.CodeSuccess {
			t.Fatalf("call %d: Result = %s", i, codec.Code(resp.Result))
		}
	}

	conn.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after peer close, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after peer close")
	}
}

func TestServe_MalformedRequest(t *testing.T) {
	conn, _ := startServe(t, Echo)

	resp := call(t, conn, ipc.NewResponse(0, 0, nil))
	if codec.Code(resp.Result) != codec.CodeBadFormat {
		t.Errorf("Result = %s, want BAD_FORMAT", codec.Code(resp.Result))
	}
	if resp.Origin != ipc.OriginComms {
		t.Errorf("Origin = %s, want comms", ipc.OriginName(resp.Origin))
	}

	// The session survives
	resp = call(t, conn, ipc.NewRequest(1, 0, codec.EncodeRecords(make([]codec.Record, codec.ParamCount))))
	if codec.Code(resp.Result) != codec.CodeSuccess {
		t.Errorf("follow-up Result = %s, want SUCCESS", codec.Code(resp.Result))
	}
}

func TestServe_TruncatedParams(t *testing.T) {
	conn, _ := startServe(t, HandlerFunc(func(context.Context, *Call) Reply {
		t.Error("handler must not see a truncated buffer")
		return Reply{}
	}))

	resp := call(t, conn, ipc.NewRequest(1, 0, []byte{6, 0, 0, 0, 9, 0, 0, 0}))
	if codec.Code(resp.Result) != codec.CodeExcessData {
		t.Errorf("Result = %s, want EXCESS_DATA", codec.Code(resp.Result))
	}
	if resp.Origin != ipc.OriginTEE {
		t.Errorf("Origin = %s, want tee", ipc.OriginName(resp.Origin))
	}
}

func TestServe_FatalFrame(t *testing.T) {
	conn, done := startServe(t, Echo)

	// Length prefix announcing more than the maximum payload
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case err := <-done:
		if !ipc.IsFatalFrameError(err) {
			t.Errorf("Serve returned %v, want fatal frame error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return on oversized frame")
	}
}

func TestServe_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, serverEnd := net.Pipe()
	defer serverEnd.Close()
	if err := Serve(ctx, serverEnd, Echo, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, NewDefaultMux(), log.NewNop()) }()

	for range 2 {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		resp := call(t, conn, ipc.NewRequest(1, CommandEcho, codec.EncodeRecords(make([]codec.Record, codec.ParamCount))))
		if codec.Code(resp.Result) != codec.CodeSuccess {
			t.Errorf("Result = %s, want SUCCESS", codec.Code(resp.Result))
		}
		conn.Close()
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeListener did not stop")
	}
}
