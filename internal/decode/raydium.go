package decode

import "dexcharts/internal/domain"

// Raydium AMM v4 swap discriminators (single-byte instruction tags).
const (
	raydiumSwapBaseIn  = 0x09
	raydiumSwapBaseOut = 0x0b
)

// Swap account layout positions (swapBaseIn/swapBaseOut).
const (
	raydiumCoinVaultIndex = 5  // pool coin token account
	raydiumPCVaultIndex   = 6  // pool PC token account
	raydiumOwnerIndex     = 17 // user owner
	raydiumMinLen         = 17 // tag + amountIn u64 + minAmountOut u64
	raydiumMinAccounts    = 18
)

// RaydiumDecoder decodes constant-product AMM swaps.
// The instruction tag does not carry a buy/sell direction, so direction
// falls back to the sign of the maker's native balance change.
type RaydiumDecoder struct {
	exp Exponents
}

// NewRaydiumDecoder creates a Raydium AMM v4 decoder with the given exponents.
func NewRaydiumDecoder(exp Exponents) *RaydiumDecoder {
	return &RaydiumDecoder{exp: exp}
}

func (d *RaydiumDecoder) Name() string { return "raydium-amm" }

func (d *RaydiumDecoder) ProgramID() string { return RaydiumAMMV4 }

func (d *RaydiumDecoder) Matches(data []byte) bool {
	if len(data) < 1 {
		return false
	}
	return data[0] == raydiumSwapBaseIn || data[0] == raydiumSwapBaseOut
}

// Decode extracts a normalized swap from a swapBaseIn/swapBaseOut instruction.
func (d *RaydiumDecoder) Decode(ix domain.Instruction, tx *domain.RawTransactionEvent) *domain.NormalizedSwap {
	if len(ix.Data) < raydiumMinLen {
		return nil
	}
	if len(ix.Accounts) < raydiumMinAccounts {
		return nil
	}

	mint := vaultMint(tx, ix.Accounts, raydiumCoinVaultIndex, raydiumPCVaultIndex)
	if mint == "" {
		return nil
	}

	maker := ix.Accounts[raydiumOwnerIndex]
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
		IsBuy:     nativeDelta < 0, // spent native to acquire the token
		Maker:     maker,
	}
}
