package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Candle is an OHLCV bucket for one (pair, timeframe).
// Open candles are mutated only by the aggregator's writer goroutine;
// closed candles are immutable.
type Candle struct {
	Pair        string  `json:"pair"`
	Timeframe   string  `json:"timeframe"`    // e.g. "1m"
	BucketStart int64   `json:"bucket_start"` // ms, aligned to timeframe boundary
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"` // quote-currency volume
	Trades      int     `json:"trades"`
	Live        bool    `json:"live"` // true for the in-progress bucket
}

// Valid reports whether the candle satisfies its OHLC invariants.
func (c *Candle) Valid() bool {
	if c.High < c.Open || c.High < c.Close || c.High < c.Low {
		return false
	}
	if c.Low > c.Open || c.Low > c.Close {
		return false
	}
	return c.Volume >= 0
}

// BucketStart aligns a millisecond timestamp down to a timeframe boundary.
func BucketStart(timestampMs int64, tf time.Duration) int64 {
	d := tf.Milliseconds()
	return timestampMs / d * d
}

// TimeframeLabel formats a timeframe the way chart consumers expect
// ("1s", "1m", "5m", "1h", "1d").
func TimeframeLabel(tf time.Duration) string {
	switch {
	case tf >= 24*time.Hour && tf%(24*time.Hour) == 0:
		return strconv.FormatInt(int64(tf/(24*time.Hour)), 10) + "d"
	case tf >= time.Hour && tf%time.Hour == 0:
		return strconv.FormatInt(int64(tf/time.Hour), 10) + "h"
	case tf >= time.Minute && tf%time.Minute == 0:
		return strconv.FormatInt(int64(tf/time.Minute), 10) + "m"
	default:
		return strconv.FormatInt(int64(tf/time.Second), 10) + "s"
	}
}

// ParseTimeframe is the inverse of TimeframeLabel.
func ParseTimeframe(label string) (time.Duration, error) {
	if len(label) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", label)
	}
	n, err := strconv.ParseInt(label[:len(label)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", label)
	}

	var unit time.Duration
	switch label[len(label)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe %q", label)
	}
	return time.Duration(n) * unit, nil
}
