package domain

// Pair identifies one trading pair by its mints.
type Pair struct {
	Key       string `json:"key"` // "<base>/<quote>"
	BaseMint  string `json:"base_mint"`
	QuoteMint string `json:"quote_mint"`
	Dex       string `json:"dex"` // DEX that first produced a trade for the pair
}

// PairKey builds the canonical map key for a base/quote mint pair.
func PairKey(baseMint, quoteMint string) string {
	return baseMint + "/" + quoteMint
}

// PairStats is a point-in-time summary of activity for one pair.
type PairStats struct {
	Pair        Pair    `json:"pair"`
	LastPrice   float64 `json:"last_price"`
	QuoteVolume float64 `json:"quote_volume"` // cumulative quote-currency volume
	TradeCount  int64   `json:"trade_count"`
	FirstSeenMs int64   `json:"first_seen_ms"`
	LastSeenMs  int64   `json:"last_seen_ms"`
}
