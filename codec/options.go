package codec

import (
	"encoding/hex"
	"math"

	"github.com/justapithecus/teewire/log"
	"github.com/justapithecus/teewire/metrics"
)

// DefaultMaxBufferSize is the largest buffer Encode will allocate. The wire
// length fields are 32-bit, so nothing larger can be described anyway.
const DefaultMaxBufferSize = maxWireLen

// Option configures the ambient behavior of a single Encode or Decode call.
// Options never change the bytes produced or accepted.
type Option func(*options)

type options struct {
	logger        *log.Logger
	collector     *metrics.Collector
	hexDump       bool
	maxBufferSize uint64
}

// WithLogger routes per-slot diagnostics to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCollector records call counts, byte totals and failures in c.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithHexDump logs a hex dump of every buffer payload at debug level.
func WithHexDump(on bool) Option {
	return func(o *options) { o.hexDump = on }
}

// WithMaxBufferSize lowers the allocation ceiling for Encode. Encoding an
// operation whose buffer would exceed n fails with OUT_OF_MEMORY. Values
// <= 0 or above DefaultMaxBufferSize select the default.
func WithMaxBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 && uint64(n) < DefaultMaxBufferSize {
			o.maxBufferSize = uint64(n)
		}
	}
}

// state is the per-call view of the options.
type state struct {
	options
	phase string
}

func newState(phase string, opts []Option) *state {
	st := &state{
		options: options{maxBufferSize: DefaultMaxBufferSize},
		phase:   phase,
	}
	for _, opt := range opts {
		opt(&st.options)
	}
	if st.maxBufferSize > math.MaxInt {
		st.maxBufferSize = math.MaxInt
	}
	return st
}

func (st *state) dump(slot int, b []byte) {
	if !st.hexDump || len(b) == 0 {
		return
	}
	st.logger.Debug("payload", map[string]any{
		"phase": st.phase,
		"slot":  slot,
		"hex":   hex.Dump(b),
	})
}

func (st *state) failed(err error) {
	fields := map[string]any{
		"phase": st.phase,
		"code":  CodeOf(err).String(),
		"error": err.Error(),
	}
	st.logger.Error("param marshalling failed", fields)
	if st.phase == phaseEncode {
		st.collector.IncEncodeFailure(CodeOf(err).String())
	} else {
		st.collector.IncDecodeFailure(CodeOf(err).String())
	}
}

const (
	phaseEncode = "encode"
	phaseDecode = "decode"
)
