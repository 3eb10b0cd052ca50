package decode

import (
	"bytes"

	"dexcharts/internal/domain"
)

// Anchor instruction discriminators for the pump.fun bonding curve program.
var (
	pumpBuyDisc  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	pumpSellDisc = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// Buy/sell account layout positions.
const (
	pumpMintIndex = 2  // token mint
	pumpUserIndex = 6  // maker wallet
	pumpMinLen    = 24 // discriminator + amount u64 + limit u64
)

// PumpFunDecoder decodes bonding-curve buys and sells.
// The curve quotes every token against native SOL, so the quote mint is
// always WSOL and the direction is explicit in the discriminator.
type PumpFunDecoder struct {
	exp Exponents
}

// NewPumpFunDecoder creates a pump.fun decoder with the given exponents.
func NewPumpFunDecoder(exp Exponents) *PumpFunDecoder {
	return &PumpFunDecoder{exp: exp}
}

func (d *PumpFunDecoder) Name() string { return "pumpfun" }

func (d *PumpFunDecoder) ProgramID() string { return PumpFun }

// Matches checks the 8-byte Anchor discriminator against buy and sell.
func (d *PumpFunDecoder) Matches(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return bytes.Equal(data[:8], pumpBuyDisc) || bytes.Equal(data[:8], pumpSellDisc)
}

// Decode extracts a normalized swap from a buy or sell instruction.
func (d *PumpFunDecoder) Decode(ix domain.Instruction, tx *domain.RawTransactionEvent) *domain.NormalizedSwap {
	if len(ix.Data) < pumpMinLen {
		return nil
	}
	if len(ix.Accounts) <= pumpUserIndex {
		return nil
	}

	mint := ix.Accounts[pumpMintIndex]
	maker := ix.Accounts[pumpUserIndex]
	if !isOnCurve(maker) {
		return nil
	}

	tokenRaw := magnitude(firstTokenDelta(tx, ix.Accounts, mint))
	nativeRaw := magnitude(tx.NativeDelta(maker))

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
		IsBuy:     bytes.Equal(ix.Data[:8], pumpBuyDisc),
		Maker:     maker,
	}
}
