// Package publish fans aggregator events out over Redis pub/sub for
// external chart consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"dexcharts/internal/candles"
	"dexcharts/internal/domain"
	"dexcharts/internal/observability"
)

// Channel layout.
const (
	ChannelTradesAll = "trades:all"

	tradesPairFmt = "trades:pair:%s"
	candlesFmt    = "candles:%s:%s" // timeframe, pair
)

// DefaultPublishBuffer sizes the internal event queue.
const DefaultPublishBuffer = 8192

// Options configures the publisher.
type Options struct {
	Addr    string
	DB      int
	Buffer  int
	Metrics *observability.Metrics // optional
	Logger  *log.Logger
}

// Publisher implements candles.Subscriber by queueing events onto an
// internal buffer and publishing them from its own goroutine, so the
// aggregator's writer path never blocks on Redis.
type Publisher struct {
	client  *redis.Client
	metrics *observability.Metrics
	logger  *log.Logger

	ch      chan pubEvent
	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
	dropped atomic.Int64
}

type pubEvent struct {
	kind   string // "trade", "update", "closed"
	trade  candles.Trade
	candle domain.Candle
}

// New creates a Redis publisher.
func New(opts Options) *Publisher {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = DefaultPublishBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Publisher{
		client: redis.NewClient(&redis.Options{
			Addr: opts.Addr,
			DB:   opts.DB,
		}),
		metrics: opts.Metrics,
		logger:  logger,
		ch:      make(chan pubEvent, buffer),
		done:    make(chan struct{}),
	}
}

// Start launches the publish loop.
func (p *Publisher) Start() {
	if p.started.Swap(true) {
		return
	}
	p.wg.Add(1)
	go p.loop()
}

// Close stops the publish loop and closes the client. Idempotent.
func (p *Publisher) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.done)
	if p.started.Load() {
		p.wg.Wait()
	}
	p.client.Close()
}

// Dropped returns the number of events lost to a full buffer.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// OnTrade implements candles.Subscriber.
func (p *Publisher) OnTrade(t candles.Trade) {
	p.enqueue(pubEvent{kind: "trade", trade: t})
}

// OnCandleUpdate implements candles.Subscriber.
func (p *Publisher) OnCandleUpdate(c domain.Candle) {
	p.enqueue(pubEvent{kind: "update", candle: c})
}

// OnCandleClosed implements candles.Subscriber.
func (p *Publisher) OnCandleClosed(c domain.Candle) {
	p.enqueue(pubEvent{kind: "closed", candle: c})
}

func (p *Publisher) enqueue(ev pubEvent) {
	select {
	case p.ch <- ev:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case ev := <-p.ch:
			p.publish(ev)
		}
	}
}

func (p *Publisher) publish(ev pubEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var payload []byte
	var channels []string
	var err error

	switch ev.kind {
	case "trade":
		payload, err = json.Marshal(ev.trade)
		channels = TradeChannels(ev.trade.Pair)
	default:
		payload, err = json.Marshal(ev.candle)
		channels = []string{CandleChannel(ev.candle.Timeframe, ev.candle.Pair)}
	}
	if err != nil {
		p.logger.Printf("[publish] marshal %s event: %v", ev.kind, err)
		return
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Printf("[publish] publish %s event: %v", ev.kind, err)
		return
	}
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(ev.kind).Inc()
	}
}

// TradeChannels returns the channels one trade fans out to.
func TradeChannels(pair string) []string {
	return []string{
		ChannelTradesAll,
		fmt.Sprintf(tradesPairFmt, pair),
	}
}

// CandleChannel returns the channel for one candle's (timeframe, pair).
func CandleChannel(timeframe, pair string) string {
	return fmt.Sprintf(candlesFmt, timeframe, pair)
}
