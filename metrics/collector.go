// Package metrics provides per-process call metrics for teewire.
//
// The Collector accumulates counters across encode, decode and invoke calls.
// It is a leaf package with no internal dependencies; result codes are
// recorded by name so that callers do not need to share a code type.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Codec
	EncodeCalls          int64
	EncodeFailures       int64
	EncodedBytes         int64
	DecodeCalls          int64
	DecodeFailures       int64
	DecodedBytes         int64
	TruncatedWriteBacks  int64
	EncodeFailuresByCode map[string]int64
	DecodeFailuresByCode map[string]int64

	// Calls
	Invocations       int64
	InvokeFailures    int64
	TransportFailures int64
	ServiceErrors     map[string]int64

	// Capture
	CaptureWriteSuccess int64
	CaptureWriteFailure int64

	// Dimensions (informational, set at construction)
	Transport string
	Session   uint32
}

// Collector accumulates metrics.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe, so code
// paths without a collector can call them unconditionally.
type Collector struct {
	mu sync.Mutex

	encodeCalls          int64
	encodeFailures       int64
	encodedBytes         int64
	decodeCalls          int64
	decodeFailures       int64
	decodedBytes         int64
	truncatedWriteBacks  int64
	encodeFailuresByCode map[string]int64
	decodeFailuresByCode map[string]int64

	invocations       int64
	invokeFailures    int64
	transportFailures int64
	serviceErrors     map[string]int64

	captureWriteSuccess int64
	captureWriteFailure int64

	transport string
	session   uint32
}

// NewCollector creates a Collector labelled with the transport in use
// ("exec", "unix", "tcp", or "" for pure codec use) and the session ID.
func NewCollector(transport string, session uint32) *Collector {
	return &Collector{
		encodeFailuresByCode: make(map[string]int64),
		decodeFailuresByCode: make(map[string]int64),
		serviceErrors:        make(map[string]int64),
		transport:            transport,
		session:              session,
	}
}

// --- Codec ---

// IncEncode records a successful encode producing n bytes.
func (c *Collector) IncEncode(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.encodeCalls++
	c.encodedBytes += int64(n)
	c.mu.Unlock()
}

// IncEncodeFailure records a failed encode by result code name.
func (c *Collector) IncEncodeFailure(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.encodeFailures++
	c.encodeFailuresByCode[code]++
	c.mu.Unlock()
}

// IncDecode records a successful decode of an n-byte buffer.
func (c *Collector) IncDecode(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeCalls++
	c.decodedBytes += int64(n)
	c.mu.Unlock()
}

// IncDecodeFailure records a failed decode by result code name.
func (c *Collector) IncDecodeFailure(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeFailures++
	c.decodeFailuresByCode[code]++
	c.mu.Unlock()
}

// IncTruncatedWriteBack records a write-back cut short by a destination
// smaller than the returned payload.
func (c *Collector) IncTruncatedWriteBack() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.truncatedWriteBacks++
	c.mu.Unlock()
}

// --- Calls ---

// IncInvoke records an invocation attempt.
func (c *Collector) IncInvoke() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.invocations++
	c.mu.Unlock()
}

// IncTransportFailure records an invocation that failed to reach the
// service or to read its reply.
func (c *Collector) IncTransportFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.invokeFailures++
	c.transportFailures++
	c.mu.Unlock()
}

// IncServiceError records a non-success result returned by the service.
func (c *Collector) IncServiceError(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.invokeFailures++
	c.serviceErrors[code]++
	c.mu.Unlock()
}

// --- Capture ---

// IncCaptureWriteSuccess records a successful capture write.
func (c *Collector) IncCaptureWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.captureWriteSuccess++
	c.mu.Unlock()
}

// IncCaptureWriteFailure records a failed capture write.
func (c *Collector) IncCaptureWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.captureWriteFailure++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		EncodeCalls:          c.encodeCalls,
		EncodeFailures:       c.encodeFailures,
		EncodedBytes:         c.encodedBytes,
		DecodeCalls:          c.decodeCalls,
		DecodeFailures:       c.decodeFailures,
		DecodedBytes:         c.decodedBytes,
		TruncatedWriteBacks:  c.truncatedWriteBacks,
		EncodeFailuresByCode: copyCounts(c.encodeFailuresByCode),
		DecodeFailuresByCode: copyCounts(c.decodeFailuresByCode),

		Invocations:       c.invocations,
		InvokeFailures:    c.invokeFailures,
		TransportFailures: c.transportFailures,
		ServiceErrors:     copyCounts(c.serviceErrors),

		CaptureWriteSuccess: c.captureWriteSuccess,
		CaptureWriteFailure: c.captureWriteFailure,

		Transport: c.transport,
		Session:   c.session,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
