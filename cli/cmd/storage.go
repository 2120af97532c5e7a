package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/teewire/adapter"
	redisadapter "github.com/justapithecus/teewire/adapter/redis"
	"github.com/justapithecus/teewire/adapter/webhook"
	"github.com/justapithecus/teewire/capture"
	"github.com/justapithecus/teewire/cli/config"
	"github.com/justapithecus/teewire/metrics"
)

// storageChoice holds the resolved capture archive settings.
type storageChoice struct {
	backend     string // fs, s3 or memory
	path        string // fs: directory, s3: bucket/prefix
	dataset     string
	s3Region    string
	s3Endpoint  string
	s3PathStyle bool
}

func resolveStorage(c *cli.Context, cfg *config.Config) storageChoice {
	cc := configVal(cfg, func(cf *config.Config) config.CaptureConfig { return cf.Capture })
	return storageChoice{
		backend:     resolveString(c, "capture-backend", cc.Backend),
		path:        resolveString(c, "capture-path", cc.Path),
		dataset:     resolveString(c, "capture-dataset", cc.Dataset),
		s3Region:    resolveString(c, "capture-s3-region", cc.Region),
		s3Endpoint:  resolveString(c, "capture-s3-endpoint", cc.Endpoint),
		s3PathStyle: resolveBool(c, "capture-s3-path-style", cc.S3PathStyle),
	}
}

// validateStorageConfig checks a storage choice before anything is created.
func validateStorageConfig(s storageChoice) error {
	switch s.backend {
	case "":
		return errors.New("--capture-backend is required (fs, s3 or memory)")
	case "fs":
		if s.path == "" {
			return errors.New("--capture-path is required for the fs backend")
		}
		info, err := os.Stat(s.path)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("capture path %s is not a directory", s.path)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("capture path %s: %w", s.path, err)
		}
	case "s3":
		if s.path == "" {
			return errors.New("--capture-path is required for the s3 backend (bucket/prefix)")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid --capture-backend %q (must be fs, s3 or memory)", s.backend)
	}
	return nil
}

// buildCaptureStore opens the capture archive. The fs directory is created
// when missing.
func buildCaptureStore(ctx context.Context, s storageChoice, opts ...capture.Option) (*capture.Store, error) {
	if err := validateStorageConfig(s); err != nil {
		return nil, err
	}
	cfg := capture.Config{Dataset: s.dataset}

	switch s.backend {
	case "fs":
		if err := os.MkdirAll(s.path, 0o755); err != nil {
			return nil, fmt.Errorf("create capture directory: %w", err)
		}
		return capture.NewFSStore(cfg, s.path, opts...)
	case "s3":
		bucket, prefix := capture.ParseS3Path(s.path)
		return capture.NewS3Store(ctx, cfg, capture.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.s3Region,
			Endpoint:     s.s3Endpoint,
			UsePathStyle: s.s3PathStyle,
		}, opts...)
	default:
		return capture.NewStore(cfg, lode.NewMemoryFactory(), opts...)
	}
}

// buildNotifier creates the capture notifier selected by --notify-type or
// the config. Returns nil when notifications are off.
func buildNotifier(c *cli.Context, cfg *config.Config) (adapter.Adapter, error) {
	nc := configVal(cfg, func(cf *config.Config) config.NotifyConfig { return cf.Notify })

	kind := resolveString(c, "notify-type", nc.Type)
	url := resolveString(c, "notify-url", nc.URL)
	timeout := resolveDuration(c, "notify-timeout", nc.Timeout.Duration)
	retries := nc.Retries
	if c.IsSet("notify-retries") {
		n := c.Int("notify-retries")
		retries = &n
	}

	if kind == "" {
		return nil, nil
	}
	if url == "" {
		return nil, fmt.Errorf("--notify-url is required for --notify-type %s", kind)
	}

	switch kind {
	case "redis":
		rc := redisadapter.Config{
			URL:             url,
			Channel:         resolveString(c, "notify-channel", nc.Channel),
			Timeout:         timeout,
			SessionChannels: resolveBool(c, "notify-session-channels", nc.SessionChannels),
		}
		if retries != nil {
			rc.Retries = *retries
		} else {
			rc.Retries = redisadapter.DefaultRetries
		}
		return redisadapter.New(rc)
	case "webhook":
		wc := webhook.Config{
			URL:     url,
			Headers: nc.Headers,
			Timeout: timeout,
		}
		if retries != nil {
			wc.Retries = *retries
		} else {
			wc.Retries = webhook.DefaultRetries
		}
		return webhook.New(wc)
	default:
		return nil, fmt.Errorf("invalid --notify-type %q (must be redis or webhook)", kind)
	}
}

// openCaptureStore resolves storage and notifier settings and opens the
// store with them. The caller closes the store, which closes the notifier.
func openCaptureStore(c *cli.Context, e *env, collector *metrics.Collector) (*capture.Store, error) {
	notifier, err := buildNotifier(c, e.cfg)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("notify: %v", err), exitUsage)
	}

	opts := []capture.Option{
		capture.WithLogger(e.logger),
		capture.WithCollector(collector),
	}
	if notifier != nil {
		opts = append(opts, capture.WithNotifier(notifier))
	}

	store, err := buildCaptureStore(c.Context, resolveStorage(c, e.cfg), opts...)
	if err != nil {
		if notifier != nil {
			_ = notifier.Close()
		}
		return nil, cli.Exit(fmt.Sprintf("capture: %v", err), exitUsage)
	}
	return store, nil
}
