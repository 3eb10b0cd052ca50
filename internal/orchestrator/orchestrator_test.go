package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"dexcharts/internal/candles"
	"dexcharts/internal/decode"
	"dexcharts/internal/domain"
	"dexcharts/internal/solana"
)

// fakeStream is a controllable Stream for pipeline tests.
type fakeStream struct {
	events       chan *domain.RawTransactionEvent
	fatal        chan error
	connectErr   error
	connected    bool
	disconnected bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan *domain.RawTransactionEvent, 16),
		fatal:  make(chan error, 1),
	}
}

func (f *fakeStream) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeStream) Events() <-chan *domain.RawTransactionEvent { return f.events }
func (f *fakeStream) Fatal() <-chan error                        { return f.fatal }
func (f *fakeStream) State() solana.ConnState                    { return solana.StateConnected }
func (f *fakeStream) Disconnect() error {
	if !f.disconnected {
		f.disconnected = true
		close(f.events)
	}
	return nil
}

var makerAddr = base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

const swapMint = "mintAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// pumpSwapTx is a decodable pump.fun buy.
func pumpSwapTx(sig string, blockTime int64) *domain.RawTransactionEvent {
	data := make([]byte, 24)
	copy(data, []byte{102, 6, 61, 18, 1, 218, 235, 234})

	return &domain.RawTransactionEvent{
		Signature: sig,
		Slot:      100,
		BlockTime: blockTime,
		Instructions: []domain.Instruction{{
			ProgramID: decode.PumpFun,
			Data:      data,
			Accounts: []string{
				"global", "feeRecipient", swapMint, "bondingCurve",
				"curveTokenAccount", "userTokenAccount", makerAddr,
			},
		}},
		PreTokenBalances: map[string]domain.TokenBalance{
			"userTokenAccount": {Mint: swapMint, Amount: 0},
		},
		PostTokenBalances: map[string]domain.TokenBalance{
			"userTokenAccount": {Mint: swapMint, Amount: 1_000_000},
		},
		PreNativeBalances:  map[string]uint64{makerAddr: 10_000_000_000},
		PostNativeBalances: map[string]uint64{makerAddr: 9_500_000_000},
	}
}

// junkTx does not match any decoder.
func junkTx(sig string) *domain.RawTransactionEvent {
	return &domain.RawTransactionEvent{
		Signature: sig,
		Instructions: []domain.Instruction{{
			ProgramID: "unknownProgram",
			Data:      []byte{1, 2, 3},
		}},
	}
}

func newTestOrchestrator(stream Stream, enabled bool) *Orchestrator {
	return New(Options{
		Stream:     stream,
		Registry:   decode.DefaultRegistry(nil),
		Aggregator: candles.New(candles.Options{Timeframes: []time.Duration{time.Minute}}),
		Enabled:    enabled,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestOrchestrator_DecodeAndAggregate(t *testing.T) {
	stream := newFakeStream()
	o := newTestOrchestrator(stream, true)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	stream.events <- pumpSwapTx("sig-1", 1700000000)
	stream.events <- junkTx("sig-2")
	stream.events <- pumpSwapTx("sig-3", 1700000001)

	waitFor(t, func() bool { return o.Stats().TxSeen == 3 })

	stats := o.Stats()
	if stats.SwapsDecoded != 2 {
		t.Errorf("expected 2 swaps decoded, got %d", stats.SwapsDecoded)
	}
	if stats.DecodeSkips != 1 {
		t.Errorf("expected 1 decode skip, got %d", stats.DecodeSkips)
	}
	if stats.UniquePairs != 1 {
		t.Errorf("expected 1 unique pair, got %d", stats.UniquePairs)
	}
	if !stats.Realtime || !stats.Running {
		t.Errorf("expected running realtime pipeline: %+v", stats)
	}

	pair := domain.PairKey(swapMint, decode.WSOL)
	price, ok := o.aggregator.GetLastPrice(pair)
	if !ok || price != 0.5 {
		t.Errorf("expected last price 0.5, got %v (%v)", price, ok)
	}
}

func TestOrchestrator_DisabledStart(t *testing.T) {
	stream := newFakeStream()
	o := newTestOrchestrator(stream, false)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.Running() {
		t.Error("disabled pipeline must not run")
	}
	if stream.connected {
		t.Error("disabled pipeline must not connect")
	}
}

func TestOrchestrator_StartTwice(t *testing.T) {
	stream := newFakeStream()
	o := newTestOrchestrator(stream, true)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	// Second Start is ignored, not an error.
	if err := o.Start(context.Background()); err != nil {
		t.Errorf("second Start: %v", err)
	}
}

func TestOrchestrator_ConnectError(t *testing.T) {
	stream := newFakeStream()
	stream.connectErr = errors.New("boom")
	o := newTestOrchestrator(stream, true)

	if err := o.Start(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if o.Running() {
		t.Error("pipeline must not be running after connect failure")
	}
}

func TestOrchestrator_FatalFlipsRealtime(t *testing.T) {
	stream := newFakeStream()
	o := newTestOrchestrator(stream, true)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	stream.events <- pumpSwapTx("sig-1", 1700000000)
	waitFor(t, func() bool { return o.Stats().TxSeen == 1 })

	stream.fatal <- errors.New("reconnect exhausted")
	waitFor(t, func() bool { return !o.Realtime() })

	// Query API keeps serving last-known candles.
	pair := domain.PairKey(swapMint, decode.WSOL)
	got := o.aggregator.GetCandles(pair, time.Minute, 0)
	if len(got) == 0 {
		t.Error("expected candles to survive stream failure")
	}
	if !o.Running() {
		t.Error("loop keeps running on fatal; only realtime flips")
	}
}

func TestOrchestrator_StopIdempotent(t *testing.T) {
	stream := newFakeStream()
	o := newTestOrchestrator(stream, true)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	o.Stop()
	if o.Running() {
		t.Error("expected stopped pipeline")
	}
	if !stream.disconnected {
		t.Error("expected stream disconnect")
	}
	o.Stop() // no-op
}
