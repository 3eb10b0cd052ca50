package decode

import (
	"reflect"
	"testing"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"dexcharts/internal/domain"
)

// onCurveAddr is a guaranteed on-curve address (the ed25519 generator).
var onCurveAddr = base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

// offCurveAddr is 32 zero bytes, which is not a valid point encoding.
var offCurveAddr = base58.Encode(make([]byte, 32))

const testMint = "mintAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// makePumpBuyTx builds a pump.fun buy transaction:
// the maker gains tokenRaw units of testMint and pays nativeRaw lamports.
func makePumpBuyTx(disc []byte, tokenRaw, nativeRaw uint64) *domain.RawTransactionEvent {
	data := make([]byte, pumpMinLen)
	copy(data, disc)

	accounts := []string{
		"global", "feeRecipient", testMint, "bondingCurve",
		"curveTokenAccount", "userTokenAccount", onCurveAddr,
	}

	return &domain.RawTransactionEvent{
		Signature: "sig-1",
		Slot:      1000,
		BlockTime: 1700000000,
		Instructions: []domain.Instruction{{
			ProgramID: PumpFun,
			Data:      data,
			Accounts:  accounts,
		}},
		PreTokenBalances: map[string]domain.TokenBalance{
			"userTokenAccount": {Mint: testMint, Amount: 0},
		},
		PostTokenBalances: map[string]domain.TokenBalance{
			"userTokenAccount": {Mint: testMint, Amount: tokenRaw},
		},
		PreNativeBalances:  map[string]uint64{onCurveAddr: 10_000_000_000},
		PostNativeBalances: map[string]uint64{onCurveAddr: 10_000_000_000 - nativeRaw},
	}
}

func TestDecodePumpFunBuy(t *testing.T) {
	reg := DefaultRegistry(nil)

	// +1,000,000 raw token units at 6 decimals, -500,000,000 lamports at 9.
	tx := makePumpBuyTx(pumpBuyDisc, 1_000_000, 500_000_000)

	swap := reg.DecodeTransaction(tx)
	if swap == nil {
		t.Fatal("expected swap, got nil")
	}

	if swap.Base != 1.0 {
		t.Errorf("expected base 1.0, got %v", swap.Base)
	}
	if swap.Quote != 0.5 {
		t.Errorf("expected quote 0.5, got %v", swap.Quote)
	}
	if swap.Price != 0.5 {
		t.Errorf("expected price 0.5, got %v", swap.Price)
	}
	if !swap.IsBuy {
		t.Error("expected buy direction")
	}
	if swap.BaseMint != testMint {
		t.Errorf("expected base mint %s, got %s", testMint, swap.BaseMint)
	}
	if swap.QuoteMint != WSOL {
		t.Errorf("expected quote mint WSOL, got %s", swap.QuoteMint)
	}
	if swap.Timestamp != 1700000000*1000 {
		t.Errorf("expected ms timestamp, got %d", swap.Timestamp)
	}
}

func TestDecodePumpFunSell(t *testing.T) {
	reg := DefaultRegistry(nil)

	tx := makePumpBuyTx(pumpSellDisc, 2_000_000, 900_000_000)
	// Sell: maker receives native.
	tx.PostNativeBalances[onCurveAddr] = 10_000_000_000 + 900_000_000

	swap := reg.DecodeTransaction(tx)
	if swap == nil {
		t.Fatal("expected swap, got nil")
	}
	if swap.IsBuy {
		t.Error("expected sell direction")
	}
	if swap.Base != 2.0 {
		t.Errorf("expected base 2.0, got %v", swap.Base)
	}
	if swap.Price != 0.45 {
		t.Errorf("expected price 0.45, got %v", swap.Price)
	}
}

func TestDecodeIsPure(t *testing.T) {
	reg := DefaultRegistry(nil)
	tx := makePumpBuyTx(pumpBuyDisc, 1_000_000, 500_000_000)

	first := reg.DecodeTransaction(tx)
	second := reg.DecodeTransaction(tx)

	if first == nil || second == nil {
		t.Fatal("expected swaps")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("decode is not deterministic: %+v != %+v", first, second)
	}
}

func TestDecodeShortPayload(t *testing.T) {
	reg := DefaultRegistry(nil)

	tx := makePumpBuyTx(pumpBuyDisc, 1_000_000, 500_000_000)
	tx.Instructions[0].Data = tx.Instructions[0].Data[:10] // below pumpMinLen

	if swap := reg.DecodeTransaction(tx); swap != nil {
		t.Errorf("expected nil for short payload, got %+v", swap)
	}
}

func TestDecodeUnknownProgram(t *testing.T) {
	reg := DefaultRegistry(nil)

	tx := makePumpBuyTx(pumpBuyDisc, 1_000_000, 500_000_000)
	tx.Instructions[0].ProgramID = "someOtherProgram"

	if swap := reg.DecodeTransaction(tx); swap != nil {
		t.Errorf("expected nil for unknown program, got %+v", swap)
	}
}

func TestDecodeUnknownDiscriminator(t *testing.T) {
	reg := DefaultRegistry(nil)

	tx := makePumpBuyTx([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 1_000_000, 500_000_000)

	if swap := reg.DecodeTransaction(tx); swap != nil {
		t.Errorf("expected nil for unknown discriminator, got %+v", swap)
	}
}

func TestDecodeZeroAmounts(t *testing.T) {
	reg := DefaultRegistry(nil)

	// Zero token delta.
	tx := makePumpBuyTx(pumpBuyDisc, 0, 500_000_000)
	if swap := reg.DecodeTransaction(tx); swap != nil {
		t.Errorf("expected nil for zero token delta, got %+v", swap)
	}

	// Zero native delta.
	tx = makePumpBuyTx(pumpBuyDisc, 1_000_000, 0)
	if swap := reg.DecodeTransaction(tx); swap != nil {
		t.Errorf("expected nil for zero native delta, got %+v", swap)
	}
}

func TestDecodeOffCurveMaker(t *testing.T) {
	reg := DefaultRegistry(nil)

	tx := makePumpBuyTx(pumpBuyDisc, 1_000_000, 500_000_000)
	tx.Instructions[0].Accounts[pumpUserIndex] = offCurveAddr

	if swap := reg.DecodeTransaction(tx); swap != nil {
		t.Errorf("expected nil for off-curve maker, got %+v", swap)
	}
}

// makeRaydiumTx builds a Raydium swapBaseIn transaction where the maker
// receives native (a sell of the token).
func makeRaydiumTx() *domain.RawTransactionEvent {
	data := make([]byte, raydiumMinLen)
	data[0] = raydiumSwapBaseIn

	accounts := make([]string, raydiumMinAccounts)
	for i := range accounts {
		accounts[i] = "acc" + string(rune('A'+i))
	}
	accounts[raydiumCoinVaultIndex] = "coinVault"
	accounts[raydiumPCVaultIndex] = "pcVault"
	accounts[raydiumOwnerIndex] = onCurveAddr

	return &domain.RawTransactionEvent{
		Signature: "sig-ray",
		Slot:      2000,
		BlockTime: 1700000100,
		Instructions: []domain.Instruction{{
			ProgramID: RaydiumAMMV4,
			Data:      data,
			Accounts:  accounts,
		}},
		PreTokenBalances: map[string]domain.TokenBalance{
			"coinVault": {Mint: testMint, Amount: 5_000_000},
			"pcVault":   {Mint: WSOL, Amount: 100_000_000_000},
		},
		PostTokenBalances: map[string]domain.TokenBalance{
			"coinVault": {Mint: testMint, Amount: 9_000_000}, // pool gained 4 tokens
			"pcVault":   {Mint: WSOL, Amount: 98_000_000_000},
		},
		PreNativeBalances:  map[string]uint64{onCurveAddr: 1_000_000_000},
		PostNativeBalances: map[string]uint64{onCurveAddr: 3_000_000_000}, // maker gained 2 SOL
	}
}

func TestDecodeRaydiumDirectionFallback(t *testing.T) {
	reg := DefaultRegistry(nil)

	swap := reg.DecodeTransaction(makeRaydiumTx())
	if swap == nil {
		t.Fatal("expected swap, got nil")
	}
	if swap.Dex != "raydium-amm" {
		t.Errorf("expected raydium-amm, got %s", swap.Dex)
	}
	if swap.IsBuy {
		t.Error("maker gained native, expected sell")
	}
	if swap.Base != 4.0 {
		t.Errorf("expected base 4.0, got %v", swap.Base)
	}
	if swap.Quote != 2.0 {
		t.Errorf("expected quote 2.0, got %v", swap.Quote)
	}
	if swap.Price != 0.5 {
		t.Errorf("expected price 0.5, got %v", swap.Price)
	}
	if swap.BaseMint != testMint {
		t.Errorf("expected traded mint from coin vault, got %s", swap.BaseMint)
	}
}

func TestDecodeCustomExponents(t *testing.T) {
	reg := DefaultRegistry(map[string]Exponents{
		"pumpfun": {Token: 9, Native: 9},
	})

	tx := makePumpBuyTx(pumpBuyDisc, 1_000_000_000, 500_000_000)
	swap := reg.DecodeTransaction(tx)
	if swap == nil {
		t.Fatal("expected swap, got nil")
	}
	if swap.Base != 1.0 {
		t.Errorf("expected base 1.0 at 9 decimals, got %v", swap.Base)
	}
}

func TestRegistryPrograms(t *testing.T) {
	reg := DefaultRegistry(nil)

	programs := reg.Programs()
	want := []string{PumpFun, RaydiumAMMV4, OrcaWhirlpool}
	if !reflect.DeepEqual(programs, want) {
		t.Errorf("expected %v, got %v", want, programs)
	}
}
