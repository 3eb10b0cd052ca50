package domain

// NormalizedSwap is one decoded swap, normalized across DEX protocols.
// Produced by the decoder, consumed once by the candle aggregator.
type NormalizedSwap struct {
	Signature string // transaction signature
	Slot      int64  // Solana slot number
	Timestamp int64  // Unix timestamp in milliseconds

	Dex       string  // decoder name, e.g. "pumpfun", "raydium-amm"
	BaseMint  string  // traded token mint
	QuoteMint string  // quote mint (wrapped native)
	Base      float64 // traded token amount, > 0
	Quote     float64 // quote amount, > 0
	Price     float64 // Quote / Base
	IsBuy     bool    // true if the maker acquired the base token
	Maker     string  // wallet that signed the swap
}
