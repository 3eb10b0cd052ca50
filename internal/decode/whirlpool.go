package decode

import (
	"bytes"

	"dexcharts/internal/domain"
)

// Anchor discriminator for the Whirlpool swap instruction.
var whirlpoolSwapDisc = []byte{248, 198, 158, 145, 225, 117, 135, 200}

// Swap account layout positions.
const (
	whirlpoolAuthorityIndex = 1 // token authority (maker)
	whirlpoolVaultAIndex    = 4 // token vault A
	whirlpoolVaultBIndex    = 6 // token vault B
	// discriminator + amount u64 + otherAmountThreshold u64 +
	// sqrtPriceLimit u128 + amountSpecifiedIsInput + aToB
	whirlpoolMinLen = 42
)

// WhirlpoolDecoder decodes concentrated-liquidity swaps.
// Like Raydium, the discriminator carries no buy/sell direction, so the
// maker's native balance sign decides it.
type WhirlpoolDecoder struct {
	exp Exponents
}

// NewWhirlpoolDecoder creates a Whirlpool decoder with the given exponents.
func NewWhirlpoolDecoder(exp Exponents) *WhirlpoolDecoder {
	return &WhirlpoolDecoder{exp: exp}
}

func (d *WhirlpoolDecoder) Name() string { return "whirlpool" }

func (d *WhirlpoolDecoder) ProgramID() string { return OrcaWhirlpool }

func (d *WhirlpoolDecoder) Matches(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], whirlpoolSwapDisc)
}

// Decode extracts a normalized swap from a Whirlpool swap instruction.
func (d *WhirlpoolDecoder) Decode(ix domain.Instruction, tx *domain.RawTransactionEvent) *domain.NormalizedSwap {
	if len(ix.Data) < whirlpoolMinLen {
		return nil
	}
	if len(ix.Accounts) <= whirlpoolVaultBIndex {
		return nil
	}

	mint := vaultMint(tx, ix.Accounts, whirlpoolVaultAIndex, whirlpoolVaultBIndex)
	if mint == "" {
		return nil
	}

	maker := ix.Accounts[whirlpoolAuthorityIndex]
	if !isOnCurve(maker) {
		return nil
	}

	nativeDelta := tx.NativeDelta(maker)
	tokenRaw := magnitude(firstTokenDelta(tx, ix.Accounts, mint))
	nativeRaw := magnitude(nativeDelta)

	base := scale(tokenRaw, d.exp.Token)
	quote := scale(nativeRaw, d.exp.Native)
	if base == 0 || quote == 0 {
		return nil
	}

	return &domain.NormalizedSwap{
		Signature: tx.Signature,
		Slot:      tx.Slot,
		Timestamp: tx.BlockTime * 1000,
		Dex:       d.Name(),
		BaseMint:  mint,
		QuoteMint: WSOL,
		Base:      base,
		Quote:     quote,
		Price:     quote / base,
		IsBuy:     nativeDelta < 0,
		Maker:     maker,
	}
}
