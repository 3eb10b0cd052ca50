package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"dexcharts/internal/candles"
	"dexcharts/internal/domain"
	"dexcharts/internal/observability"
)

// Writer defaults.
const (
	DefaultBatchSize     = 200
	DefaultFlushInterval = 5 * time.Second
	DefaultWriterBuffer  = 4096
)

// WriterOptions configures the candle writer.
type WriterOptions struct {
	Sink          CandleSink
	BatchSize     int
	FlushInterval time.Duration
	Buffer        int
	Metrics       *observability.Metrics // optional
	Logger        *log.Logger
}

// Writer batches closed candles off the aggregator's writer goroutine and
// persists them asynchronously. It implements candles.Subscriber; the
// subscriber callbacks never block, a full buffer drops (and counts) the
// candle rather than stalling the pipeline.
type Writer struct {
	sink          CandleSink
	batchSize     int
	flushInterval time.Duration
	metrics       *observability.Metrics
	logger        *log.Logger

	ch      chan domain.Candle
	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool

	dropped atomic.Int64
}

// NewWriter creates a candle writer.
func NewWriter(opts WriterOptions) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultWriterBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Writer{
		sink:          opts.Sink,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		metrics:       opts.Metrics,
		logger:        logger,
		ch:            make(chan domain.Candle, opts.Buffer),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop.
func (w *Writer) Start() {
	if w.started.Swap(true) {
		return
	}
	w.wg.Add(1)
	go w.loop()
}

// Close flushes buffered candles and stops the loop. Idempotent.
func (w *Writer) Close() {
	if w.closed.Swap(true) {
		return
	}
	close(w.done)
	if w.started.Load() {
		w.wg.Wait()
	}
}

// Dropped returns the number of candles lost to a full buffer.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// OnTrade implements candles.Subscriber.
func (w *Writer) OnTrade(candles.Trade) {}

// OnCandleUpdate implements candles.Subscriber.
func (w *Writer) OnCandleUpdate(domain.Candle) {}

// OnCandleClosed implements candles.Subscriber.
func (w *Writer) OnCandleClosed(c domain.Candle) {
	select {
	case w.ch <- c:
	default:
		w.dropped.Add(1)
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]*domain.Candle, 0, w.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := w.sink.InsertBatch(ctx, batch)
		cancel()
		if err != nil {
			// The in-memory history still holds recent candles; losing one
			// batch is preferable to unbounded buffering.
			w.logger.Printf("[writer] persist %d candles failed: %v", len(batch), err)
			if w.metrics != nil {
				w.metrics.SinkErrors.WithLabelValues("candles").Inc()
			}
		} else if w.metrics != nil {
			w.metrics.CandlesPersisted.Add(float64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case c := <-w.ch:
			cc := c
			batch = append(batch, &cc)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			// Drain whatever is buffered, then final flush.
			for {
				select {
				case c := <-w.ch:
					cc := c
					batch = append(batch, &cc)
					if len(batch) >= w.batchSize {
						flush()
					}
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}
