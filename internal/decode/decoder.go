// Package decode turns raw DEX instructions into normalized swaps.
// Each supported protocol registers a Decoder; unrecognized or malformed
// input is never an error, it just yields no swap.
package decode

import (
	"math"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"dexcharts/internal/domain"
)

// Known DEX program IDs.
const (
	// PumpFun is the pump.fun bonding curve program ID.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// OrcaWhirlpool is the Orca Whirlpool program ID.
	OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
)

// WSOL is the Wrapped SOL mint address.
const WSOL = "So11111111111111111111111111111111111111112"

// Exponents holds the decimal exponents used to convert raw integer
// balance deltas into human-readable amounts. They differ per protocol.
type Exponents struct {
	Token  int // traded token decimals
	Native int // native currency decimals
}

// DefaultExponents returns the exponents most SPL launches use.
func DefaultExponents() Exponents {
	return Exponents{Token: 6, Native: 9}
}

// Decoder decodes swaps for one DEX protocol.
type Decoder interface {
	// Name identifies the protocol, e.g. "pumpfun".
	Name() string

	// ProgramID returns the on-chain program this decoder handles.
	ProgramID() string

	// Matches compares the instruction's leading discriminator against the
	// protocol's known swap signatures.
	Matches(data []byte) bool

	// Decode extracts a normalized swap from one instruction, or nil when
	// the instruction is not a decodable swap. Decode never fails.
	Decode(ix domain.Instruction, tx *domain.RawTransactionEvent) *domain.NormalizedSwap
}

// Registry dispatches transactions to protocol decoders.
// Decoders are tried in registration order; the first match wins, so
// adding a protocol is a registration, not a new conditional branch.
type Registry struct {
	byProgram map[string][]Decoder
	order     []Decoder
}

// NewRegistry creates an empty decoder registry.
func NewRegistry() *Registry {
	return &Registry{byProgram: make(map[string][]Decoder)}
}

// DefaultRegistry registers all built-in protocol decoders in priority
// order. Per-protocol exponent overrides are looked up by decoder name;
// missing entries fall back to DefaultExponents.
func DefaultRegistry(exps map[string]Exponents) *Registry {
	r := NewRegistry()
	r.Register(NewPumpFunDecoder(expFor(exps, "pumpfun")))
	r.Register(NewRaydiumDecoder(expFor(exps, "raydium-amm")))
	r.Register(NewWhirlpoolDecoder(expFor(exps, "whirlpool")))
	return r
}

func expFor(exps map[string]Exponents, name string) Exponents {
	if e, ok := exps[name]; ok {
		return e
	}
	return DefaultExponents()
}

// Register adds a decoder. Registration order is priority order.
func (r *Registry) Register(d Decoder) {
	r.byProgram[d.ProgramID()] = append(r.byProgram[d.ProgramID()], d)
	r.order = append(r.order, d)
}

// Programs returns the program IDs of all registered decoders, in
// registration order, for use as a subscription allow list.
func (r *Registry) Programs() []string {
	seen := make(map[string]bool, len(r.order))
	var out []string
	for _, d := range r.order {
		if !seen[d.ProgramID()] {
			seen[d.ProgramID()] = true
			out = append(out, d.ProgramID())
		}
	}
	return out
}

// DecodeTransaction tries every instruction against the registered
// decoders and returns the first normalized swap, or nil when the
// transaction contains no decodable swap.
func (r *Registry) DecodeTransaction(tx *domain.RawTransactionEvent) *domain.NormalizedSwap {
	if tx == nil {
		return nil
	}
	for _, ix := range tx.Instructions {
		for _, d := range r.byProgram[ix.ProgramID] {
			if !d.Matches(ix.Data) {
				continue
			}
			if swap := d.Decode(ix, tx); swap != nil {
				return swap
			}
		}
	}
	return nil
}

// Shared decode helpers.

// firstTokenDelta scans the instruction accounts in order and returns the
// raw delta of the first account showing a nonzero balance change for the
// given mint. Multi-hop transactions can show deltas on several token
// accounts; taking the first nonzero one in account order is a heuristic,
// but a deterministic one.
func firstTokenDelta(tx *domain.RawTransactionEvent, accounts []string, mint string) int64 {
	for _, acc := range accounts {
		m, delta := tx.TokenDelta(acc)
		if m == mint && delta != 0 {
			return delta
		}
	}
	return 0
}

// vaultMint reads the mint of the token account at a fixed instruction
// position, preferring the non-WSOL side when both indices are valid.
func vaultMint(tx *domain.RawTransactionEvent, accounts []string, primary, secondary int) string {
	for _, idx := range []int{primary, secondary} {
		if idx < 0 || idx >= len(accounts) {
			continue
		}
		if m := balanceMint(tx, accounts[idx]); m != "" && m != WSOL {
			return m
		}
	}
	return ""
}

func balanceMint(tx *domain.RawTransactionEvent, account string) string {
	if b, ok := tx.PostTokenBalances[account]; ok {
		return b.Mint
	}
	if b, ok := tx.PreTokenBalances[account]; ok {
		return b.Mint
	}
	return ""
}

// isOnCurve reports whether an address is a valid ed25519 point.
// User wallets are on-curve keypairs; program-derived vault and authority
// addresses are not, which filters them out as maker candidates.
func isOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// scale converts a raw integer magnitude into a human-readable amount
// using the protocol's decimal exponent.
func scale(raw uint64, exp int) float64 {
	return float64(raw) / math.Pow10(exp)
}

func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
