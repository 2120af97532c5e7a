// Package adapter defines the notification boundary for captured buffers.
//
// Adapters publish a short event each time a capture is stored, so that
// downstream tooling can fetch the buffer from the capture archive.
package adapter

import "context"

// EventTypeCaptureStored is the event type of every CaptureEvent.
const EventTypeCaptureStored = "capture_stored"

// CaptureEvent is the payload published after a capture write.
type CaptureEvent struct {
	EventType string `json:"event_type"` // always "capture_stored"
	CaptureID string `json:"capture_id"`
	CallID    string `json:"call_id,omitempty"`
	Session   uint32 `json:"session"`
	Command   uint32 `json:"command"`
	Direction string `json:"direction"` // request or response
	Result    string `json:"result"`
	Size      int    `json:"size"`
	Day       string `json:"day"`
	Dataset   string `json:"dataset"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// Adapter publishes capture events to a downstream system.
type Adapter interface {
	// Publish sends a capture event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *CaptureEvent) error

	// Close releases adapter resources.
	Close() error
}
