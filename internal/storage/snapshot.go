package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"dexcharts/internal/candles"
)

// DefaultSnapshotInterval is the default pair registry refresh period.
const DefaultSnapshotInterval = 30 * time.Second

// SnapshotterOptions configures the pair snapshotter.
type SnapshotterOptions struct {
	Aggregator *candles.Aggregator
	Store      PairStore
	Interval   time.Duration
	Logger     *log.Logger
}

// Snapshotter periodically copies the aggregator's cumulative pair stats
// into the pair registry so the set of known pairs survives restarts.
type Snapshotter struct {
	aggregator *candles.Aggregator
	store      PairStore
	interval   time.Duration
	logger     *log.Logger

	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
}

// NewSnapshotter creates a pair snapshotter.
func NewSnapshotter(opts SnapshotterOptions) *Snapshotter {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Snapshotter{
		aggregator: opts.Aggregator,
		store:      opts.Store,
		interval:   interval,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start launches the snapshot loop.
func (s *Snapshotter) Start() {
	if s.started.Swap(true) {
		return
	}
	s.wg.Add(1)
	go s.loop()
}

// Close takes a final snapshot and stops the loop. Idempotent.
func (s *Snapshotter) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	if s.started.Load() {
		s.wg.Wait()
	}
}

func (s *Snapshotter) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Snapshot(context.Background())
		case <-s.done:
			s.Snapshot(context.Background())
			return
		}
	}
}

// Snapshot upserts every observed pair once. Per-pair failures are logged
// and do not abort the rest of the snapshot.
func (s *Snapshotter) Snapshot(ctx context.Context) {
	for _, stats := range s.aggregator.AllPairStats() {
		if err := s.store.Upsert(ctx, stats); err != nil {
			s.logger.Printf("[snapshot] upsert pair %s failed: %v", stats.Pair.Key, err)
		}
	}
}
