// Package orchestrator wires the pipeline end to end:
// stream → decode → aggregate, plus running statistics for external callers.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"dexcharts/internal/candles"
	"dexcharts/internal/decode"
	"dexcharts/internal/domain"
	"dexcharts/internal/observability"
	"dexcharts/internal/solana"
)

// Stream abstracts the feed transport.
type Stream interface {
	Connect(ctx context.Context) error
	Events() <-chan *domain.RawTransactionEvent
	Fatal() <-chan error
	State() solana.ConnState
	Disconnect() error
}

// Options for creating an Orchestrator.
type Options struct {
	Stream     Stream
	Registry   *decode.Registry
	Aggregator *candles.Aggregator

	// Enabled gates the whole pipeline; when false Start is a no-op that
	// warns and returns.
	Enabled bool

	// Metrics is optional; nil disables recording.
	Metrics *observability.Metrics

	Logger *log.Logger
}

// Orchestrator drives a single-threaded consumption loop that drains the
// feed one message at a time. Decode-then-aggregate for one message is
// synchronous, so candle updates are linearizable in arrival order.
type Orchestrator struct {
	stream     Stream
	registry   *decode.Registry
	aggregator *candles.Aggregator
	enabled    bool
	metrics    *observability.Metrics
	logger     *log.Logger

	// skipLog rate-limits unrecognized-payload logging on the hot path.
	skipLog *rate.Limiter

	running   atomic.Bool
	realtime  atomic.Bool
	startedAt time.Time

	txSeen       atomic.Int64
	swapsDecoded atomic.Int64
	decodeSkips  atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		stream:     opts.Stream,
		registry:   opts.Registry,
		aggregator: opts.Aggregator,
		enabled:    opts.Enabled,
		metrics:    opts.Metrics,
		logger:     logger,
		skipLog:    rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Start connects the stream and launches the consumption loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.enabled {
		o.logger.Printf("[orchestrator] streaming disabled, not starting")
		return nil
	}
	if o.running.Load() {
		o.logger.Printf("[orchestrator] already running, ignoring Start")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if err := o.stream.Connect(ctx); err != nil {
		cancel()
		return err
	}

	o.running.Store(true)
	o.realtime.Store(true)
	o.startedAt = time.Now()

	o.wg.Add(2)
	go o.consume(ctx)
	go o.watchFatal(ctx)

	o.logger.Printf("[orchestrator] started")
	return nil
}

// Stop terminates the consumption loop with bounded latency and tears
// down the stream. Idempotent; aggregator state is left at its last
// fully-committed candle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running.Swap(false) {
		return
	}
	o.realtime.Store(false)

	o.stream.Disconnect()
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.logger.Printf("[orchestrator] stopped")
}

// consume drains the feed one message at a time.
func (o *Orchestrator) consume(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.stream.Events():
			if !ok {
				return
			}
			o.process(ev)
		}
	}
}

// process runs decode-then-aggregate for one transaction. A failure for
// one message never aborts processing of the next.
func (o *Orchestrator) process(ev *domain.RawTransactionEvent) {
	start := time.Now()
	o.txSeen.Add(1)
	if o.metrics != nil {
		o.metrics.TxsReceived.Inc()
	}

	swap := o.registry.DecodeTransaction(ev)
	if swap == nil {
		o.decodeSkips.Add(1)
		if o.metrics != nil {
			o.metrics.DecodeSkips.Inc()
		}
		if o.skipLog.Allow() {
			o.logger.Printf("[orchestrator] skipping unrecognized tx %s (%d skips total)",
				ev.Signature, o.decodeSkips.Load())
		}
		return
	}

	o.swapsDecoded.Add(1)
	if o.metrics != nil {
		o.metrics.SwapsDecoded.WithLabelValues(swap.Dex).Inc()
	}

	o.aggregator.AddTrade(candles.TradeFromSwap(swap))

	if o.metrics != nil {
		o.metrics.MessageLatency.Observe(time.Since(start).Seconds())
	}
}

// watchFatal flips realtime off when the stream reaches a terminal state.
// The process keeps serving last-known candles; realtime=false tells
// consumers to fall back to a historical source.
func (o *Orchestrator) watchFatal(ctx context.Context) {
	defer o.wg.Done()

	select {
	case <-ctx.Done():
	case err, ok := <-o.stream.Fatal():
		if !ok {
			return
		}
		o.realtime.Store(false)
		o.logger.Printf("[orchestrator] stream terminal failure, serving stale data: %v", err)
	}
}

// Stats is a point-in-time snapshot of pipeline throughput.
type Stats struct {
	Running      bool    `json:"running"`
	Realtime     bool    `json:"realtime"`
	ConnState    string  `json:"conn_state"`
	TxSeen       int64   `json:"tx_seen"`
	SwapsDecoded int64   `json:"swaps_decoded"`
	DecodeSkips  int64   `json:"decode_skips"`
	LateDrops    int64   `json:"late_drops"`
	UniquePairs  int     `json:"unique_pairs"`
	UptimeSec    float64 `json:"uptime_sec"`
	TxPerSec     float64 `json:"tx_per_sec"`
	SwapsPerSec  float64 `json:"swaps_per_sec"`
}

// Stats returns running statistics since Start.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Running:      o.running.Load(),
		Realtime:     o.realtime.Load(),
		ConnState:    o.stream.State().String(),
		TxSeen:       o.txSeen.Load(),
		SwapsDecoded: o.swapsDecoded.Load(),
		DecodeSkips:  o.decodeSkips.Load(),
		LateDrops:    o.aggregator.LateDrops(),
		UniquePairs:  o.aggregator.UniquePairs(),
	}
	if !o.startedAt.IsZero() {
		s.UptimeSec = time.Since(o.startedAt).Seconds()
		if s.UptimeSec > 0 {
			s.TxPerSec = float64(s.TxSeen) / s.UptimeSec
			s.SwapsPerSec = float64(s.SwapsDecoded) / s.UptimeSec
		}
	}
	return s
}

// Realtime reports whether the pipeline is still consuming live data.
func (o *Orchestrator) Realtime() bool {
	return o.realtime.Load()
}

// Running reports whether the consumption loop is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}
