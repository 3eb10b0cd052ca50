package candles

import "dexcharts/internal/domain"

// Trade is one normalized swap reduced to what the aggregator needs.
type Trade struct {
	Pair        string  `json:"pair"`
	BaseMint    string  `json:"base_mint"`
	QuoteMint   string  `json:"quote_mint"`
	Dex         string  `json:"dex"`
	Price       float64 `json:"price"`
	BaseAmount  float64 `json:"base_amount"`
	QuoteAmount float64 `json:"quote_amount"`
	TimestampMs int64   `json:"timestamp_ms"`
	IsBuy       bool    `json:"is_buy"`
}

// TradeFromSwap reduces a normalized swap to an aggregator trade.
func TradeFromSwap(s *domain.NormalizedSwap) Trade {
	return Trade{
		Pair:        domain.PairKey(s.BaseMint, s.QuoteMint),
		BaseMint:    s.BaseMint,
		QuoteMint:   s.QuoteMint,
		Dex:         s.Dex,
		Price:       s.Price,
		BaseAmount:  s.Base,
		QuoteAmount: s.Quote,
		TimestampMs: s.Timestamp,
		IsBuy:       s.IsBuy,
	}
}

// Subscriber receives aggregator lifecycle events.
//
// Handlers are invoked synchronously on the aggregator's single writer
// goroutine, in event order, after the state mutation committed. They must
// not block; anything slow belongs behind a buffered channel on the
// subscriber's side.
type Subscriber interface {
	OnTrade(t Trade)
	OnCandleUpdate(c domain.Candle)
	OnCandleClosed(c domain.Candle)
}
