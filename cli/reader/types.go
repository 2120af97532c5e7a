// Package reader provides the read-side view layer for the teewire CLI.
//
// It turns raw buffers, built operations, stored captures and metric
// snapshots into flat response types that the render and tui packages
// display. The same payloads back every output format, TUI included.
package reader

import "time"

// RecordView is one wire record.
type RecordView struct {
	Slot   int     `json:"slot" yaml:"slot"`
	Kind   string  `json:"kind" yaml:"kind"`
	Length int     `json:"length" yaml:"length"`
	A      *uint32 `json:"a,omitempty" yaml:"a,omitempty"`
	B      *uint32 `json:"b,omitempty" yaml:"b,omitempty"`
	Data   string  `json:"data,omitempty" yaml:"data,omitempty"` // hex preview
}

// InspectBufferResponse describes a parameter buffer.
type InspectBufferResponse struct {
	Source   string       `json:"source" yaml:"source"`
	Size     int          `json:"size" yaml:"size"`
	Records  []RecordView `json:"records" yaml:"records"`
	Trailing int          `json:"trailing" yaml:"trailing"` // bytes after the last record
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// SlotView is one parameter slot of an operation.
type SlotView struct {
	Slot int     `json:"slot" yaml:"slot"`
	Kind string  `json:"kind" yaml:"kind"`
	Size int     `json:"size" yaml:"size"`
	A    *uint32 `json:"a,omitempty" yaml:"a,omitempty"`
	B    *uint32 `json:"b,omitempty" yaml:"b,omitempty"`
	Shm  string  `json:"shm,omitempty" yaml:"shm,omitempty"`
	Data string  `json:"data,omitempty" yaml:"data,omitempty"`
}

// SharedView is one named shared memory object.
type SharedView struct {
	Name  string `json:"name" yaml:"name"`
	Flags string `json:"flags" yaml:"flags"`
	Size  int    `json:"size" yaml:"size"`
	Data  string `json:"data,omitempty" yaml:"data,omitempty"`
}

// OperationResponse is an operation's state after encode, decode or invoke.
type OperationResponse struct {
	Result  string       `json:"result,omitempty" yaml:"result,omitempty"`
	Origin  string       `json:"origin,omitempty" yaml:"origin,omitempty"`
	Encoded int          `json:"encoded,omitempty" yaml:"encoded,omitempty"`
	Slots   []SlotView   `json:"slots" yaml:"slots"`
	Shared  []SharedView `json:"shared,omitempty" yaml:"shared,omitempty"`
}

// CaptureListItem is one row of `teewire capture list`.
type CaptureListItem struct {
	ID        string    `json:"id" yaml:"id"`
	CallID    string    `json:"call_id" yaml:"call_id"`
	Session   string    `json:"session" yaml:"session"`
	Command   uint32    `json:"command" yaml:"command"`
	Direction string    `json:"direction" yaml:"direction"`
	Result    string    `json:"result" yaml:"result"`
	Size      int       `json:"size" yaml:"size"`
	Ts        time.Time `json:"ts" yaml:"ts"`
}

// CaptureDetailResponse is `teewire capture show`.
type CaptureDetailResponse struct {
	ID        string                 `json:"id" yaml:"id"`
	CallID    string                 `json:"call_id" yaml:"call_id"`
	Session   string                 `json:"session" yaml:"session"`
	Command   uint32                 `json:"command" yaml:"command"`
	Direction string                 `json:"direction" yaml:"direction"`
	Result    string                 `json:"result" yaml:"result"`
	Origin    string                 `json:"origin" yaml:"origin"`
	Size      int                    `json:"size" yaml:"size"`
	Day       string                 `json:"day" yaml:"day"`
	Ts        time.Time              `json:"ts" yaml:"ts"`
	Buffer    *InspectBufferResponse `json:"buffer" yaml:"buffer"`
}

// MetricsResponse is a flattened metrics snapshot.
type MetricsResponse struct {
	Transport           string           `json:"transport" yaml:"transport"`
	Session             string           `json:"session" yaml:"session"`
	EncodeCalls         int64            `json:"encode_calls" yaml:"encode_calls"`
	EncodeFailures      int64            `json:"encode_failures" yaml:"encode_failures"`
	EncodedBytes        int64            `json:"encoded_bytes" yaml:"encoded_bytes"`
	DecodeCalls         int64            `json:"decode_calls" yaml:"decode_calls"`
	DecodeFailures      int64            `json:"decode_failures" yaml:"decode_failures"`
	DecodedBytes        int64            `json:"decoded_bytes" yaml:"decoded_bytes"`
	TruncatedWriteBacks int64            `json:"truncated_write_backs" yaml:"truncated_write_backs"`
	Invocations         int64            `json:"invocations" yaml:"invocations"`
	TransportFailures   int64            `json:"transport_failures" yaml:"transport_failures"`
	ServiceErrors       map[string]int64 `json:"service_errors" yaml:"service_errors"`
	CaptureWrites       int64            `json:"capture_writes" yaml:"capture_writes"`
	CaptureFailures     int64            `json:"capture_failures" yaml:"capture_failures"`
}

// InvokeResponse is `teewire invoke --stats`: the call and the metrics it
// produced.
type InvokeResponse struct {
	Call    *OperationResponse `json:"call" yaml:"call"`
	Metrics *MetricsResponse   `json:"metrics" yaml:"metrics"`
}
