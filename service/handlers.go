package service

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/ipc"
)

// Built-in command IDs served by NewDefaultMux.
const (
	CommandEcho        uint32 = 0
	CommandShortBuffer uint32 = 1
)

// DefaultRequiredSize is the buffer size ShortBuffer demands when
// NewDefaultMux is used.
const DefaultRequiredSize = 64

// Echo reflects every record back to the caller.
//
// Value records come back incremented by one in both halves, so that
// write-back is observable. Output buffers come back unchanged. Input-only
// records come back with an empty payload, since the caller ignores them.
var Echo Handler = HandlerFunc(echo)

func echo(_ context.Context, call *Call) Reply {
	out := make([]codec.Record, len(call.Records))
	for i, rec := range call.Records {
		switch rec.Kind {
		case codec.KindValueOut, codec.KindValueInOut:
			if len(rec.Payload) != codec.ValueSize {
				return Reply{Result: codec.CodeBadParameters}
			}
			a := binary.LittleEndian.Uint32(rec.Payload[0:4])
			b := binary.LittleEndian.Uint32(rec.Payload[4:8])
			payload := make([]byte, codec.ValueSize)
			binary.LittleEndian.PutUint32(payload[0:4], a+1)
			binary.LittleEndian.PutUint32(payload[4:8], b+1)
			out[i] = codec.Record{Kind: rec.Kind, Payload: payload}
		case codec.KindTempOut, codec.KindTempInOut:
			out[i] = codec.Record{Kind: rec.Kind, Payload: append([]byte(nil), rec.Payload...)}
		default:
			out[i] = codec.Record{Kind: rec.Kind}
		}
	}
	return Reply{Result: codec.CodeSuccess, Records: out}
}

// ShortBuffer answers like Echo, except that any output buffer smaller than
// required bytes is reported as needing required bytes, with result
// SHORT_BUFFER. The reported payload is zero-filled.
func ShortBuffer(required int) Handler {
	return HandlerFunc(func(ctx context.Context, call *Call) Reply {
		reply := echo(ctx, call)
		if reply.Result != codec.CodeSuccess {
			return reply
		}
		for i, rec := range reply.Records {
			if rec.Kind != codec.KindTempOut && rec.Kind != codec.KindTempInOut {
				continue
			}
			if len(rec.Payload) < required {
				reply.Records[i].Payload = make([]byte, required)
				reply.Result = codec.CodeShortBuffer
			}
		}
		return reply
	})
}

// Mux routes calls to handlers by command ID.
type Mux struct {
	mu       sync.RWMutex
	handlers map[uint32]Handler
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[uint32]Handler)}
}

// NewDefaultMux serves Echo on CommandEcho and ShortBuffer on
// CommandShortBuffer.
func NewDefaultMux() *Mux {
	m := NewMux()
	m.Handle(CommandEcho, Echo)
	m.Handle(CommandShortBuffer, ShortBuffer(DefaultRequiredSize))
	return m
}

// Handle registers h for command, replacing any earlier registration.
func (m *Mux) Handle(command uint32, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[command] = h
}

// Commands returns the number of registered commands.
func (m *Mux) Commands() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers)
}

// Invoke implements Handler. Unknown commands fail with NOT_SUPPORTED.
func (m *Mux) Invoke(ctx context.Context, call *Call) Reply {
	m.mu.RLock()
	h, ok := m.handlers[call.Command]
	m.mu.RUnlock()
	if !ok {
		return Reply{Result: codec.CodeNotSupported, Origin: ipc.OriginTrustedApp}
	}
	return h.Invoke(ctx, call)
}
