// Package service implements the service-domain side of a call: it reads
// request frames, hands the parsed parameter records to a Handler and writes
// the Handler's records back as the response.
//
// Services see records in their normalized wire form. Registered memory
// arrives as a temporary buffer kind; the service cannot tell the two apart.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/ipc"
	"github.com/justapithecus/teewire/log"
)

// Call is one command as seen by a service.
type Call struct {
	Session uint32
	Command uint32
	// Records holds exactly codec.ParamCount records. Payloads alias the
	// request buffer and are only valid for the duration of Invoke.
	Records []codec.Record
}

// Reply is a service's answer to a Call.
type Reply struct {
	Result codec.Code
	// Origin defaults to ipc.OriginTrustedApp when zero.
	Origin uint32
	// Records are encoded as the response buffer. Nil sends no buffer.
	Records []codec.Record
}

// Handler runs commands.
type Handler interface {
	Invoke(ctx context.Context, call *Call) Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call *Call) Reply

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, call *Call) Reply {
	return f(ctx, call)
}

// Serve answers requests read from rw until the peer closes the stream or
// ctx is cancelled. Requests are handled strictly one at a time.
//
// Malformed requests are answered with an error result and do not end the
// session. A truncated or oversized frame does, since the stream can no
// longer be parsed.
func Serve(ctx context.Context, rw io.ReadWriter, h Handler, logger *log.Logger) error {
	dec := ipc.NewFrameDecoder(rw)
	enc := ipc.NewFrameEncoder(rw)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			logger.Debug("session closed by peer", nil)
			return nil
		}
		if err != nil {
			logger.Error("failed to read request", map[string]any{"error": err.Error()})
			return err
		}

		resp := handle(ctx, payload, h, logger)
		if err := enc.WriteMessage(resp); err != nil {
			logger.Error("failed to write response", map[string]any{"error": err.Error()})
			return err
		}
	}
}

func handle(ctx context.Context, payload []byte, h Handler, logger *log.Logger) *ipc.Response {
	req, err := ipc.DecodeRequest(payload)
	if err != nil {
		logger.Warn("malformed request", map[string]any{"error": err.Error()})
		return ipc.NewResponse(uint32(codec.CodeBadFormat), ipc.OriginComms, nil)
	}

	l := logger.ForCommand(req.Command)
	records, err := codec.Records(req.Params)
	if err != nil {
		l.Warn("malformed parameter buffer", map[string]any{"error": err.Error(), "len": len(req.Params)})
		return ipc.NewResponse(uint32(codec.CodeOf(err)), ipc.OriginTEE, nil)
	}

	reply := h.Invoke(ctx, &Call{Session: req.Session, Command: req.Command, Records: records})
	if reply.Origin == 0 {
		reply.Origin = ipc.OriginTrustedApp
	}

	var params []byte
	if reply.Records != nil {
		params = codec.EncodeRecords(reply.Records)
	}
	l.Debug("command handled", map[string]any{
		"result": reply.Result.String(),
		"origin": ipc.OriginName(reply.Origin),
		"len":    len(params),
	})
	return ipc.NewResponse(uint32(reply.Result), reply.Origin, params)
}

// ServeListener accepts connections on ln and serves each with Serve until
// ctx is cancelled. It closes ln on return.
func ServeListener(ctx context.Context, ln net.Listener, h Handler, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			// Unblock reads when the server shuts down
			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer stop()

			remote := "unknown"
			if a := conn.RemoteAddr(); a != nil {
				remote = a.String()
			}
			l := logger.With(map[string]any{"remote": remote})
			if err := Serve(ctx, conn, h, l); err != nil && ctx.Err() == nil {
				l.Warn("session ended with error", map[string]any{"error": err.Error()})
			}
		}()
	}
}
