package observability

import (
	"dexcharts/internal/candles"
	"dexcharts/internal/domain"
)

// CandleRecorder mirrors aggregator lifecycle events into metrics. It is
// invoked on the aggregator's writer goroutine, so the unexported fields
// need no synchronization.
type CandleRecorder struct {
	m   *Metrics
	agg *candles.Aggregator

	lateSeen int64
}

// NewCandleRecorder creates a recorder bound to one aggregator.
func NewCandleRecorder(m *Metrics, agg *candles.Aggregator) *CandleRecorder {
	return &CandleRecorder{m: m, agg: agg}
}

var _ candles.Subscriber = (*CandleRecorder)(nil)

// OnTrade refreshes the pair gauge and the late-drop counter.
func (r *CandleRecorder) OnTrade(candles.Trade) {
	r.m.TrackedPairs.Set(float64(r.agg.UniquePairs()))

	if drops := r.agg.LateDrops(); drops > r.lateSeen {
		r.m.LateDrops.Add(float64(drops - r.lateSeen))
		r.lateSeen = drops
	}
}

// OnCandleUpdate counts candle opens; the first update of a fresh bucket
// carries exactly one trade.
func (r *CandleRecorder) OnCandleUpdate(c domain.Candle) {
	if c.Trades == 1 {
		r.m.CandlesOpened.Inc()
	}
}

// OnCandleClosed counts closes by timeframe.
func (r *CandleRecorder) OnCandleClosed(c domain.Candle) {
	r.m.CandlesClosed.WithLabelValues(c.Timeframe).Inc()
}
