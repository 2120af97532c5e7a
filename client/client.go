// Package client dispatches TEE client calls to a service domain.
//
// A Session owns one transport stream. Each Invoke encodes the caller's
// Operation, sends it as one request frame, waits for the matching response
// frame and decodes the returned parameters back into the Operation.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/ipc"
	"github.com/justapithecus/teewire/log"
	"github.com/justapithecus/teewire/metrics"
	"github.com/justapithecus/teewire/transport"
)

// Result origins, re-exported for callers that only import client.
const (
	OriginAPI        = ipc.OriginAPI
	OriginComms      = ipc.OriginComms
	OriginTEE        = ipc.OriginTEE
	OriginTrustedApp = ipc.OriginTrustedApp
)

// ResultError is a non-success result returned by the service.
type ResultError struct {
	Code   codec.Code
	Origin uint32
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("service returned %s (origin %s)", e.Code, ipc.OriginName(e.Origin))
}

// Code maps an Invoke error to a result code. Service results keep their
// code; transport failures are COMMUNICATION; codec failures keep theirs.
func Code(err error) codec.Code {
	if err == nil {
		return codec.CodeSuccess
	}
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code
	}
	var fe *ipc.FrameError
	if errors.As(err, &fe) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return codec.CodeCommunication
	}
	return codec.CodeOf(err)
}

// Exchange is one completed request/response pair, as handed to a Recorder.
type Exchange struct {
	Session  uint32
	Command  uint32
	Request  []byte
	Response []byte
	Result   codec.Code
	Origin   uint32
}

// Recorder observes completed exchanges. Recorder errors are logged and
// never fail the call.
type Recorder func(ctx context.Context, x *Exchange) error

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCollector records invocation and codec metrics in c.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Session) { s.collector = c }
}

// WithCodecOptions adds options applied to every Encode and Decode.
func WithCodecOptions(opts ...codec.Option) Option {
	return func(s *Session) { s.codecOpts = append(s.codecOpts, opts...) }
}

// WithTimeout bounds each call. A context deadline, when earlier, wins.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithRecorder hands every completed exchange to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// Session is an open session with a service domain. Calls on one Session
// are serialized; the wire carries one call at a time.
type Session struct {
	id     uint32
	stream transport.Stream
	enc    *ipc.FrameEncoder
	dec    *ipc.FrameDecoder

	logger    *log.Logger
	collector *metrics.Collector
	codecOpts []codec.Option
	timeout   time.Duration
	recorder  Recorder

	mu sync.Mutex
}

// NewSession opens a session with ID id over stream.
func NewSession(stream transport.Stream, id uint32, opts ...Option) *Session {
	s := &Session{
		id:     id,
		stream: stream,
		enc:    ipc.NewFrameEncoder(stream),
		dec:    ipc.NewFrameDecoder(stream),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session ID.
func (s *Session) ID() uint32 {
	return s.id
}

// Close closes the underlying stream.
func (s *Session) Close() error {
	return s.stream.Close()
}

// Invoke runs command on the service with op as its parameters and returns
// the origin of the result.
//
// Output-capable slots of op are updated from the response on success, and
// also on SHORT_BUFFER so that the caller learns the sizes it must supply.
// A non-success service result is returned as a *ResultError.
//
// Streams without deadline support are not interrupted by ctx once the
// request is sent.
func (s *Session) Invoke(ctx context.Context, command uint32, op *codec.Operation) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collector.IncInvoke()
	l := s.logger.ForCommand(command)

	if err := ctx.Err(); err != nil {
		return OriginAPI, err
	}

	opts := make([]codec.Option, 0, len(s.codecOpts)+2)
	opts = append(opts, s.codecOpts...)
	opts = append(opts, codec.WithLogger(l), codec.WithCollector(s.collector))

	params, err := codec.Encode(op, opts...)
	if err != nil {
		return OriginAPI, fmt.Errorf("encode params: %w", err)
	}

	if err := s.applyDeadline(ctx); err != nil {
		s.collector.IncTransportFailure()
		return OriginComms, fmt.Errorf("set deadline: %w", err)
	}
	defer func() { _, _ = transport.SetDeadline(s.stream, time.Time{}) }()

	l.Debug("sending request", map[string]any{"len": len(params)})
	if err := s.enc.WriteMessage(ipc.NewRequest(s.id, command, params)); err != nil {
		s.collector.IncTransportFailure()
		return OriginComms, fmt.Errorf("send request: %w", err)
	}

	payload, err := s.dec.ReadFrame()
	if err != nil {
		s.collector.IncTransportFailure()
		if errors.Is(err, io.EOF) {
			return OriginComms, fmt.Errorf("read response: service closed the session: %w", err)
		}
		return OriginComms, fmt.Errorf("read response: %w", err)
	}
	resp, err := ipc.DecodeResponse(payload)
	if err != nil {
		s.collector.IncTransportFailure()
		return OriginComms, fmt.Errorf("read response: %w", err)
	}

	code := codec.Code(resp.Result)
	l.Debug("received response", map[string]any{
		"result": code.String(),
		"origin": ipc.OriginName(resp.Origin),
		"len":    len(resp.Params),
	})
	s.record(ctx, l, &Exchange{
		Session:  s.id,
		Command:  command,
		Request:  params,
		Response: resp.Params,
		Result:   code,
		Origin:   resp.Origin,
	})

	switch {
	case code == codec.CodeSuccess:
		if err := codec.Decode(op, resp.Params, opts...); err != nil {
			return OriginComms, fmt.Errorf("decode response: %w", err)
		}
		return resp.Origin, nil
	case code == codec.CodeShortBuffer && len(resp.Params) > 0:
		if err := codec.Decode(op, resp.Params, opts...); err != nil {
			return OriginComms, fmt.Errorf("decode response: %w", err)
		}
	}

	s.collector.IncServiceError(code.String())
	l.Info("service returned error", map[string]any{"result": code.String(), "origin": ipc.OriginName(resp.Origin)})
	return resp.Origin, &ResultError{Code: code, Origin: resp.Origin}
}

func (s *Session) applyDeadline(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if s.timeout > 0 {
		if t := time.Now().Add(s.timeout); !ok || t.Before(deadline) {
			deadline, ok = t, true
		}
	}
	if !ok {
		return nil
	}
	_, err := transport.SetDeadline(s.stream, deadline)
	return err
}

func (s *Session) record(ctx context.Context, l *log.Logger, x *Exchange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder(ctx, x); err != nil {
		l.Warn("failed to record exchange", map[string]any{"error": err.Error()})
	}
}
