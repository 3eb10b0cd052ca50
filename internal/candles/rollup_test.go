package candles

import (
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func TestRollupValidation(t *testing.T) {
	if _, err := Rollup(nil, 0, time.Minute); err == nil {
		t.Error("expected error for zero source timeframe")
	}
	if _, err := Rollup(nil, time.Minute, time.Minute); err == nil {
		t.Error("expected error for equal timeframes")
	}
	if _, err := Rollup(nil, time.Minute, 90*time.Second); err == nil {
		t.Error("expected error for non-multiple target")
	}
}

func TestRollupUnsortedInput(t *testing.T) {
	agg := newTestAggregator(time.Minute)
	agg.AddTrade(makeTrade(1.0, 1, 0, true))
	agg.AddTrade(makeTrade(1.0, 1, 60_000, true))
	agg.AddTrade(makeTrade(1.0, 1, 120_000, true))

	candles := agg.GetCandles(testPair, time.Minute, 0)
	candles[0], candles[1] = candles[1], candles[0]

	if _, err := Rollup(candles, time.Minute, 5*time.Minute); err == nil {
		t.Error("expected error for unsorted input")
	}
}

func TestRollupMatchesDirectAggregation(t *testing.T) {
	// Rolling 1m candles up to 5m must match feeding the same trades into
	// a 5m aggregator directly.
	rng := rand.New(rand.NewSource(7))
	fine := newTestAggregator(time.Minute)
	coarse := newTestAggregator(5 * time.Minute)

	ts := int64(0)
	for i := 0; i < 1000; i++ {
		ts += rng.Int63n(10_000)
		tr := makeTrade(0.5+rng.Float64(), rng.Float64()*20, ts, i%2 == 0)
		fine.AddTrade(tr)
		coarse.AddTrade(tr)
	}
	// Final trade far in the future closes every open bucket.
	final := makeTrade(1.0, 1, ts+10*int64(time.Minute/time.Millisecond), true)
	fine.AddTrade(final)
	coarse.AddTrade(final)

	fineCandles := fine.GetCandles(testPair, time.Minute, 0)
	want := coarse.GetCandles(testPair, 5*time.Minute, 0)

	// Drop the live candles; rollup covers closed history only.
	fineCandles = fineCandles[:len(fineCandles)-1]
	want = want[:len(want)-1]

	got, err := Rollup(fineCandles, time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("rollup failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d candles, got %d", len(want), len(got))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.BucketStart != w.BucketStart || g.Open != w.Open || g.Close != w.Close {
			t.Errorf("candle %d mismatch: got %+v want %+v", i, g, w)
		}
		if g.High != w.High || g.Low != w.Low {
			t.Errorf("candle %d high/low mismatch: got %+v want %+v", i, g, w)
		}
		if diff := g.Volume - w.Volume; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("candle %d volume mismatch: got %v want %v", i, g.Volume, w.Volume)
		}
		if g.Trades != w.Trades {
			t.Errorf("candle %d trade count mismatch: got %d want %d", i, g.Trades, w.Trades)
		}
	}
}

func TestRollupLabels(t *testing.T) {
	agg := newTestAggregator(time.Minute)
	agg.AddTrade(makeTrade(1.0, 1, 0, true))
	agg.AddTrade(makeTrade(1.5, 2, 60_000, true))
	agg.AddTrade(makeTrade(2.0, 3, 600_000, true))

	candles := agg.GetCandles(testPair, time.Minute, 0)
	got, err := Rollup(candles[:len(candles)-1], time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("rollup failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 rolled-up candle, got %d", len(got))
	}
	c := got[0]
	if c.Timeframe != "5m" {
		t.Errorf("expected timeframe label 5m, got %s", c.Timeframe)
	}
	want := []float64{c.Open, c.High, c.Low, c.Close, c.Volume}
	if !reflect.DeepEqual(want, []float64{1.0, 1.5, 1.0, 1.5, 3}) {
		t.Errorf("unexpected rolled-up candle: %+v", c)
	}
}
