// Package capture archives raw parameter buffers in a Lode dataset.
//
// Each captured buffer is one JSONL row, Hive-partitioned by day, session
// and direction. Captures are written by `teewire encode --capture` and by
// the client recorder during `teewire invoke`, and read back by
// `teewire capture list|show`.
package capture

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/teewire/adapter"
	"github.com/justapithecus/teewire/client"
	"github.com/justapithecus/teewire/log"
	"github.com/justapithecus/teewire/metrics"
)

// DefaultDataset is the dataset name used when Config.Dataset is empty.
const DefaultDataset = "teewire"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "session", "direction"}

// Config configures a capture store.
type Config struct {
	// Dataset is the Lode dataset ID (default "teewire").
	Dataset string
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Day       string
	Session   *uint32
	Direction Direction
	CallID    string
	// Limit caps the number of records returned; 0 means no cap.
	Limit int
}

// Store writes and reads captures.
type Store struct {
	dataset   lode.Dataset
	config    Config
	collector *metrics.Collector
	notifier  adapter.Adapter
	logger    *log.Logger
	now       func() time.Time

	mu sync.Mutex // serializes writes
}

// Option configures a Store.
type Option func(*Store)

// WithCollector counts capture writes in c.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Store) { s.collector = c }
}

// WithNotifier publishes a CaptureEvent for every stored record.
// Publish failures are logged; the capture itself is already durable.
func WithNotifier(a adapter.Adapter) Option {
	return func(s *Store) { s.notifier = a }
}

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over a custom Lode store factory.
// Use lode.NewMemoryFactory() for testing.
func NewStore(cfg Config, factory lode.StoreFactory, opts ...Option) (*Store, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}

	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, wrapError("init", cfg.Dataset, err)
	}

	s := &Store{
		dataset: ds,
		config:  cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFSStore creates a store rooted at a local directory.
func NewFSStore(cfg Config, root string, opts ...Option) (*Store, error) {
	return NewStore(cfg, lode.NewFSFactory(root), opts...)
}

// Dataset returns the dataset ID.
func (s *Store) Dataset() string {
	return s.config.Dataset
}

// Write stores the records in one dataset write. Missing IDs, timestamps
// and days are filled in place.
func (s *Store) Write(ctx context.Context, recs ...*Record) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]any, 0, len(recs))
	for _, r := range recs {
		if r == nil {
			return errors.New("capture: nil record")
		}
		if _, err := ParseDirection(string(r.Direction)); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Ts.IsZero() {
			r.Ts = s.now()
		}
		r.Ts = r.Ts.UTC()
		r.Day = r.Ts.Format(dayFormat)
		if r.Size == 0 {
			r.Size = len(r.Data)
		}
		rows = append(rows, toMap(r))
	}

	if _, err := s.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		s.collector.IncCaptureWriteFailure()
		return wrapError("write", s.config.Dataset, err)
	}
	s.collector.IncCaptureWriteSuccess()

	for _, r := range recs {
		s.logger.Debug("capture stored", map[string]any{
			"id":        r.ID,
			"direction": string(r.Direction),
			"size":      r.Size,
		})
		s.notify(ctx, r)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, r *Record) {
	if s.notifier == nil {
		return
	}
	event := &adapter.CaptureEvent{
		EventType: adapter.EventTypeCaptureStored,
		CaptureID: r.ID,
		CallID:    r.CallID,
		Session:   r.Session,
		Command:   r.Command,
		Direction: string(r.Direction),
		Result:    r.Result,
		Size:      r.Size,
		Day:       r.Day,
		Dataset:   s.config.Dataset,
		Timestamp: r.Ts.Format(time.RFC3339),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("capture notification failed", map[string]any{
			"id":    r.ID,
			"error": err.Error(),
		})
	}
}

// Recorder returns a client.Recorder that stores both halves of every
// exchange under one call ID.
func (s *Store) Recorder() client.Recorder {
	return func(ctx context.Context, x *client.Exchange) error {
		callID := uuid.NewString()
		ts := s.now()
		result := x.Result.String()
		return s.Write(ctx,
			&Record{
				CallID:    callID,
				Session:   x.Session,
				Command:   x.Command,
				Direction: DirectionRequest,
				Result:    result,
				Origin:    x.Origin,
				Size:      len(x.Request),
				Data:      x.Request,
				Ts:        ts,
			},
			&Record{
				CallID:    callID,
				Session:   x.Session,
				Command:   x.Command,
				Direction: DirectionResponse,
				Result:    result,
				Origin:    x.Origin,
				Size:      len(x.Response),
				Data:      x.Response,
				Ts:        ts,
			},
		)
	}
}

// List returns the records matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Record, error) {
	var out []*Record
	err := s.scan(ctx, &f, func(r *Record) bool {
		out = append(out, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *Record) int {
		return b.Ts.Compare(a.Ts)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Get returns the record with the given ID, or ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var found *Record
	err := s.scan(ctx, nil, func(r *Record) bool {
		if r.ID == id {
			found = r
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return found, nil
}

// scan visits records from the newest snapshot backwards until visit
// returns false. A nil filter visits everything.
func (s *Store) scan(ctx context.Context, f *Filter, visit func(*Record) bool) error {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return wrapError("list", s.config.Dataset, err)
	}

	seen := make(map[string]struct{})
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if f != nil && !snapshotMatches(snap, f) {
			continue
		}

		data, err := s.dataset.Read(ctx, snap.ID)
		if err != nil {
			return wrapError("read", fmt.Sprintf("%s/snapshot/%s", s.config.Dataset, snap.ID), err)
		}

		for _, item := range data {
			row, ok := item.(map[string]any)
			if !ok {
				continue
			}
			r, err := fromMap(row)
			if err != nil {
				s.logger.Warn("skipping unreadable capture", map[string]any{"error": err.Error()})
				continue
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			if f != nil && !f.matches(r) {
				continue
			}
			if !visit(r) {
				return nil
			}
		}
	}
	return nil
}

// matches applies the filter to a decoded record. Record fields are
// authoritative; manifest paths are only a coarse pre-filter.
func (f *Filter) matches(r *Record) bool {
	if f.Day != "" && r.Day != f.Day {
		return false
	}
	if f.Session != nil && r.Session != *f.Session {
		return false
	}
	if f.Direction != "" && r.Direction != f.Direction {
		return false
	}
	if f.CallID != "" && r.CallID != f.CallID {
		return false
	}
	return true
}

func snapshotMatches(snap *lode.DatasetSnapshot, f *Filter) bool {
	if !snapshotMatchesFilter(snap, "day", f.Day) {
		return false
	}
	if f.Session != nil && !snapshotMatchesFilter(snap, "session", sessionKey(*f.Session)) {
		return false
	}
	return snapshotMatchesFilter(snap, "direction", string(f.Direction))
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, file := range snap.Manifest.Files {
		if matchesPartitionValue(file.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so session=00000001 never matches session=000000010.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// Close releases the notifier, if any.
func (s *Store) Close() error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Close()
}
