package config

import (
	"fmt"
	"time"
)

// Config represents a teewire.yaml configuration file.
// All values are optional and act as defaults for teewire flags.
// CLI flags always override config values.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Codec     CodecConfig     `yaml:"codec"`
	Transport TransportConfig `yaml:"transport"`
	Session   uint32          `yaml:"session"`
	Capture   CaptureConfig   `yaml:"capture"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level   string `yaml:"level"`
	HexDump bool   `yaml:"hexdump"`
}

// CodecConfig holds codec limits.
type CodecConfig struct {
	MaxBufferSize int `yaml:"max_buffer_size"`
}

// TransportConfig selects how invoke reaches the service.
// Addr and Command are mutually exclusive.
type TransportConfig struct {
	Addr    string   `yaml:"addr"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	Timeout Duration `yaml:"timeout"`
}

// CaptureConfig holds capture archive defaults.
type CaptureConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig holds capture notification defaults.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
	// SessionChannels publishes on "<channel>:<session>" (redis only).
	SessionChannels bool `yaml:"session_channels,omitempty"`
}

// Validate checks cross-field constraints that YAML decoding cannot.
func (c *Config) Validate() error {
	if c.Transport.Addr != "" && c.Transport.Command != "" {
		return fmt.Errorf("transport.addr and transport.command are mutually exclusive")
	}
	if c.Codec.MaxBufferSize < 0 {
		return fmt.Errorf("codec.max_buffer_size must be >= 0, got %d", c.Codec.MaxBufferSize)
	}
	switch c.Capture.Backend {
	case "", "fs", "s3", "memory":
	default:
		return fmt.Errorf("capture.backend must be fs, s3 or memory, got %q", c.Capture.Backend)
	}
	switch c.Notify.Type {
	case "", "redis", "webhook":
	default:
		return fmt.Errorf("notify.type must be redis or webhook, got %q", c.Notify.Type)
	}
	if c.Notify.Type != "" && c.Notify.URL == "" {
		return fmt.Errorf("notify.url is required for notify.type %s", c.Notify.Type)
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		return fmt.Errorf("notify.retries must be >= 0, got %d", *c.Notify.Retries)
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
