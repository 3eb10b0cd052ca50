package domain

// RawTransactionEvent is one confirmed transaction delivered by the feed.
// It is immutable once constructed and consumed exactly once by the decoder.
type RawTransactionEvent struct {
	Signature string // transaction signature (base58)
	Slot      int64  // Solana slot number
	BlockTime int64  // Unix timestamp in seconds

	Instructions []Instruction

	// Token balance tables keyed by account address, raw integer units.
	PreTokenBalances  map[string]TokenBalance
	PostTokenBalances map[string]TokenBalance

	// Native (lamport) balance tables keyed by account address.
	PreNativeBalances  map[string]uint64
	PostNativeBalances map[string]uint64
}

// Instruction is a single top-level instruction of a transaction.
type Instruction struct {
	ProgramID string   // invoked program (base58)
	Data      []byte   // raw instruction payload
	Accounts  []string // account addresses in instruction order
}

// TokenBalance is one side of a token balance table entry.
type TokenBalance struct {
	Mint   string // token mint address
	Amount uint64 // raw integer amount (pre-decimal)
}

// TokenDelta returns the net raw token change for an account, zero if the
// account has no entry on either side or the mints disagree.
func (tx *RawTransactionEvent) TokenDelta(account string) (mint string, delta int64) {
	pre, preOK := tx.PreTokenBalances[account]
	post, postOK := tx.PostTokenBalances[account]

	switch {
	case preOK && postOK:
		if pre.Mint != post.Mint {
			return "", 0
		}
		return post.Mint, int64(post.Amount) - int64(pre.Amount)
	case postOK:
		return post.Mint, int64(post.Amount)
	case preOK:
		return pre.Mint, -int64(pre.Amount)
	default:
		return "", 0
	}
}

// NativeDelta returns the net lamport change for an account.
func (tx *RawTransactionEvent) NativeDelta(account string) int64 {
	return int64(tx.PostNativeBalances[account]) - int64(tx.PreNativeBalances[account])
}
