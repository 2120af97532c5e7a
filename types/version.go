// Package types holds values shared by every teewire component.
package types

// Version is the teewire release version. The CLI, the frame envelope and
// the capture row layout are versioned together.
const Version = "0.1.0"
