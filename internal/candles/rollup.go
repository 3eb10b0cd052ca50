package candles

import (
	"fmt"
	"time"

	"dexcharts/internal/domain"
)

// Rollup re-buckets closed candles of timeframe from into timeframe to.
// to must be a whole multiple of from and the input must be sorted by
// non-decreasing bucket start. The result uses the same quote-volume
// convention as the streaming path:
//
//	open  = first bucket's open
//	high  = max(highs)
//	low   = min(lows)
//	close = last bucket's close
//	volume = sum(volumes)
func Rollup(candles []domain.Candle, from, to time.Duration) ([]domain.Candle, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("rollup: non-positive timeframe (from=%v to=%v)", from, to)
	}
	if to%from != 0 || to <= from {
		return nil, fmt.Errorf("rollup: %v is not a whole multiple of %v", to, from)
	}

	label := domain.TimeframeLabel(to)

	var out []domain.Candle
	var cur *domain.Candle
	prevStart := int64(-1 << 62)

	for i := range candles {
		c := &candles[i]
		if c.BucketStart < prevStart {
			return nil, fmt.Errorf("rollup: input not sorted at bucket %d", c.BucketStart)
		}
		prevStart = c.BucketStart

		bucket := domain.BucketStart(c.BucketStart, to)
		if cur == nil || cur.BucketStart != bucket {
			out = append(out, domain.Candle{
				Pair:        c.Pair,
				Timeframe:   label,
				BucketStart: bucket,
				Open:        c.Open,
				High:        c.High,
				Low:         c.Low,
				Close:       c.Close,
				Volume:      c.Volume,
				Trades:      c.Trades,
			})
			cur = &out[len(out)-1]
			continue
		}

		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
		cur.Trades += c.Trades
	}

	return out, nil
}
