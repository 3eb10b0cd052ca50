// Package candles maintains continuously-updated OHLCV series per trading
// pair across multiple timeframes, for low-latency chart serving.
package candles

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dexcharts/internal/domain"
)

// DefaultHistoryCap is the default number of closed candles retained per
// (pair, timeframe). Older candles are evicted on overflow; an external
// store is assumed to have persisted them already.
const DefaultHistoryCap = 500

// DefaultTimeframes covers the chart intervals the UI serves.
var DefaultTimeframes = []time.Duration{
	time.Second,
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	4 * time.Hour,
	24 * time.Hour,
}

// seriesKey identifies one (pair, timeframe) series.
type seriesKey struct {
	pair string
	tf   time.Duration
}

// series holds one open candle and its bounded closed history.
// Series are stored in an arena slice; the key map holds small integer
// indices so lookups stay O(1) with a fixed layout.
type series struct {
	pair    string
	tf      time.Duration
	tfLabel string
	open    *domain.Candle
	closed  []domain.Candle
}

type pairState struct {
	info        domain.Pair
	lastPrice   float64
	quoteVolume float64
	tradeCount  int64
	firstSeenMs int64
	lastSeenMs  int64
}

// Options configures the aggregator.
type Options struct {
	Timeframes []time.Duration // default DefaultTimeframes
	HistoryCap int             // default DefaultHistoryCap
	Logger     *log.Logger
}

// Aggregator consumes trades and maintains per-(pair, timeframe) candle
// state. Exactly one goroutine calls AddTrade; read accessors may be
// called concurrently from any goroutine.
type Aggregator struct {
	timeframes []time.Duration
	historyCap int
	logger     *log.Logger

	mu     sync.RWMutex
	index  map[seriesKey]int
	series []*series
	pairs  map[string]*pairState

	subs []Subscriber

	lateDrops           atomic.Int64
	invariantViolations atomic.Int64
}

// New creates an aggregator.
func New(opts Options) *Aggregator {
	timeframes := opts.Timeframes
	if len(timeframes) == 0 {
		timeframes = DefaultTimeframes
	}
	historyCap := opts.HistoryCap
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Aggregator{
		timeframes: timeframes,
		historyCap: historyCap,
		logger:     logger,
		index:      make(map[seriesKey]int),
		pairs:      make(map[string]*pairState),
	}
}

// Subscribe registers a lifecycle event subscriber. Not safe to call
// concurrently with AddTrade; register subscribers before starting the
// consume loop.
func (a *Aggregator) Subscribe(s Subscriber) {
	a.subs = append(a.subs, s)
}

// event is a pending notification collected during a mutation and
// delivered after the write lock is released.
type event struct {
	kind   eventKind
	trade  Trade
	candle domain.Candle
}

type eventKind int

const (
	eventTrade eventKind = iota
	eventCandleUpdate
	eventCandleClosed
)

// AddTrade applies one trade to every configured timeframe.
//
// Trades for a given pair are expected in non-decreasing timestamp order;
// a trade older than the current open bucket of a timeframe is dropped
// for that timeframe and counted (drop-late policy). The volume metric is
// the quote-currency amount, uniformly.
func (a *Aggregator) AddTrade(t Trade) {
	events := make([]event, 0, 2*len(a.timeframes)+1)

	a.mu.Lock()

	a.touchPair(t)
	events = append(events, event{kind: eventTrade, trade: t})

	for _, tf := range a.timeframes {
		s := a.seriesFor(t.Pair, tf)
		bucket := domain.BucketStart(t.TimestampMs, tf)

		switch {
		case s.open == nil:
			s.open = newCandle(s, bucket, t)
			events = append(events, event{kind: eventCandleUpdate, candle: *s.open})

		case bucket < s.open.BucketStart:
			// Late arrival for an already-closed bucket.
			a.lateDrops.Add(1)

		case bucket == s.open.BucketStart:
			updated := *s.open
			applyTrade(&updated, t)
			if !updated.Valid() {
				a.invariantViolations.Add(1)
				a.logger.Printf("[candles] INVARIANT VIOLATION pair=%s tf=%s bucket=%d: %+v, keeping last good candle",
					s.pair, s.tfLabel, bucket, updated)
				continue
			}
			*s.open = updated
			events = append(events, event{kind: eventCandleUpdate, candle: updated})

		default:
			// Trade belongs to a later bucket: close the open candle.
			closed := *s.open
			closed.Live = false
			s.closed = append(s.closed, closed)
			if len(s.closed) > a.historyCap {
				s.closed = s.closed[len(s.closed)-a.historyCap:]
			}
			events = append(events, event{kind: eventCandleClosed, candle: closed})

			s.open = newCandle(s, bucket, t)
			events = append(events, event{kind: eventCandleUpdate, candle: *s.open})
		}
	}

	a.mu.Unlock()

	// Deliver after releasing the lock so subscribers may call read
	// accessors. Still single-writer, so event order is preserved.
	for _, ev := range events {
		for _, sub := range a.subs {
			switch ev.kind {
			case eventTrade:
				sub.OnTrade(ev.trade)
			case eventCandleUpdate:
				sub.OnCandleUpdate(ev.candle)
			case eventCandleClosed:
				sub.OnCandleClosed(ev.candle)
			}
		}
	}
}

// seriesFor returns the series for (pair, tf), creating it on first use.
// Caller holds the write lock.
func (a *Aggregator) seriesFor(pair string, tf time.Duration) *series {
	key := seriesKey{pair: pair, tf: tf}
	if idx, ok := a.index[key]; ok {
		return a.series[idx]
	}
	s := &series{pair: pair, tf: tf, tfLabel: domain.TimeframeLabel(tf)}
	a.index[key] = len(a.series)
	a.series = append(a.series, s)
	return s
}

func (a *Aggregator) touchPair(t Trade) {
	p, ok := a.pairs[t.Pair]
	if !ok {
		p = &pairState{
			info: domain.Pair{
				Key:       t.Pair,
				BaseMint:  t.BaseMint,
				QuoteMint: t.QuoteMint,
				Dex:       t.Dex,
			},
			firstSeenMs: t.TimestampMs,
		}
		a.pairs[t.Pair] = p
	}
	p.lastPrice = t.Price
	p.quoteVolume += t.QuoteAmount
	p.tradeCount++
	if t.TimestampMs > p.lastSeenMs {
		p.lastSeenMs = t.TimestampMs
	}
}

func newCandle(s *series, bucket int64, t Trade) *domain.Candle {
	return &domain.Candle{
		Pair:        s.pair,
		Timeframe:   s.tfLabel,
		BucketStart: bucket,
		Open:        t.Price,
		High:        t.Price,
		Low:         t.Price,
		Close:       t.Price,
		Volume:      t.QuoteAmount,
		Trades:      1,
		Live:        true,
	}
}

func applyTrade(c *domain.Candle, t Trade) {
	if t.Price > c.High {
		c.High = t.Price
	}
	if t.Price < c.Low {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume += t.QuoteAmount
	c.Trades++
}

// GetCandles returns up to limit closed candles for (pair, timeframe),
// oldest first, with the current open candle appended as a synthetic
// live last element so chart consumers can render the in-progress bar.
// limit <= 0 means all retained candles.
func (a *Aggregator) GetCandles(pair string, tf time.Duration, limit int) []domain.Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	idx, ok := a.index[seriesKey{pair: pair, tf: tf}]
	if !ok {
		return nil
	}
	s := a.series[idx]

	closed := s.closed
	if limit > 0 && len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}

	out := make([]domain.Candle, len(closed), len(closed)+1)
	copy(out, closed)
	if s.open != nil {
		out = append(out, *s.open)
	}
	return out
}

// GetCurrentCandle returns a copy of the open candle for (pair,
// timeframe), or nil when no trade has opened one.
func (a *Aggregator) GetCurrentCandle(pair string, tf time.Duration) *domain.Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	idx, ok := a.index[seriesKey{pair: pair, tf: tf}]
	if !ok {
		return nil
	}
	if a.series[idx].open == nil {
		return nil
	}
	c := *a.series[idx].open
	return &c
}

// GetLastPrice returns the most recent trade price for a pair.
func (a *Aggregator) GetLastPrice(pair string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.pairs[pair]
	if !ok {
		return 0, false
	}
	return p.lastPrice, true
}

// GetPairStats returns a snapshot of cumulative stats for a pair.
func (a *Aggregator) GetPairStats(pair string) (*domain.PairStats, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.pairs[pair]
	if !ok {
		return nil, false
	}
	return snapshotPair(p), true
}

// GetAllPairs returns every observed pair, sorted by key.
func (a *Aggregator) GetAllPairs() []domain.Pair {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Pair, 0, len(a.pairs))
	for _, p := range a.pairs {
		out = append(out, p.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AllPairStats returns snapshots for every observed pair, sorted by key,
// for periodic persistence into the pair registry.
func (a *Aggregator) AllPairStats() []*domain.PairStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*domain.PairStats, 0, len(a.pairs))
	for _, p := range a.pairs {
		out = append(out, snapshotPair(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.Key < out[j].Pair.Key })
	return out
}

func snapshotPair(p *pairState) *domain.PairStats {
	return &domain.PairStats{
		Pair:        p.info,
		LastPrice:   p.lastPrice,
		QuoteVolume: p.quoteVolume,
		TradeCount:  p.tradeCount,
		FirstSeenMs: p.firstSeenMs,
		LastSeenMs:  p.lastSeenMs,
	}
}

// UniquePairs returns the number of distinct pairs observed.
func (a *Aggregator) UniquePairs() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pairs)
}

// LateDrops returns the number of trades dropped by the drop-late policy.
func (a *Aggregator) LateDrops() int64 {
	return a.lateDrops.Load()
}

// InvariantViolations returns the number of rejected candle updates.
func (a *Aggregator) InvariantViolations() int64 {
	return a.invariantViolations.Load()
}

// Timeframes returns the configured timeframe set.
func (a *Aggregator) Timeframes() []time.Duration {
	return a.timeframes
}
