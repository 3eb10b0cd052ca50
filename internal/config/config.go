// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dexcharts/internal/decode"
	"dexcharts/internal/domain"
)

type Config struct {
	// Feed settings
	FeedEndpoint  string
	FeedAuthToken string
	StreamEnabled bool

	// Programs is the subscription allow list; empty means every
	// program the decoder registry handles.
	Programs             []string
	MaxReconnectAttempts int
	BackoffBase          time.Duration
	BackoffCap           time.Duration

	// Exponents holds per-protocol decimal exponents, keyed by decoder
	// name. <PROTOCOL>_TOKEN_DECIMALS / <PROTOCOL>_NATIVE_DECIMALS (e.g.
	// PUMPFUN_TOKEN_DECIMALS, RAYDIUM_AMM_NATIVE_DECIMALS) override the
	// global TOKEN_DECIMALS / NATIVE_DECIMALS pair.
	Exponents map[string]decode.Exponents

	// Aggregation settings
	Timeframes []time.Duration
	HistoryCap int

	// Storage settings (empty DSN/addr disables the component)
	ClickHouseDSN string
	PostgresDSN   string
	RedisAddr     string

	// HTTP settings
	APIAddr     string
	MetricsAddr string
}

// Load reads configuration from the environment, after best-effort
// loading of a local .env file.
func Load() *Config {
	godotenv.Load()

	return &Config{
		FeedEndpoint:         getEnv("FEED_ENDPOINT", "wss://api.mainnet-beta.solana.com"),
		FeedAuthToken:        getEnv("FEED_AUTH_TOKEN", ""),
		StreamEnabled:        getBoolEnv("STREAM_ENABLED", true),
		Programs:             getListEnv("PROGRAM_ALLOW_LIST", nil),
		MaxReconnectAttempts: getIntEnv("MAX_RECONNECT_ATTEMPTS", 10),
		BackoffBase:          getDurationEnv("BACKOFF_BASE", time.Second),
		BackoffCap:           getDurationEnv("BACKOFF_CAP", 30*time.Second),

		Exponents: getExponentsEnv(),

		Timeframes: getTimeframesEnv("TIMEFRAMES", nil),
		HistoryCap: getIntEnv("HISTORY_CAP", 500),

		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),

		APIAddr:     getEnv("API_ADDR", ":8090"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9091"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// protocolNames are the decoder names that accept exponent overrides.
var protocolNames = []string{"pumpfun", "raydium-amm", "whirlpool"}

// getExponentsEnv builds the per-protocol exponent table. Per-protocol
// keys fall back to the global TOKEN_DECIMALS / NATIVE_DECIMALS pair,
// which in turn defaults to 6 token / 9 native.
func getExponentsEnv() map[string]decode.Exponents {
	token := getIntEnv("TOKEN_DECIMALS", 6)
	native := getIntEnv("NATIVE_DECIMALS", 9)

	out := make(map[string]decode.Exponents, len(protocolNames))
	for _, name := range protocolNames {
		prefix := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		out[name] = decode.Exponents{
			Token:  getIntEnv(prefix+"_TOKEN_DECIMALS", token),
			Native: getIntEnv(prefix+"_NATIVE_DECIMALS", native),
		}
	}
	return out
}

// getTimeframesEnv parses a comma-separated timeframe list like
// "1s,1m,5m,1h". Malformed entries invalidate the whole list.
func getTimeframesEnv(key string, defaultVal []time.Duration) []time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []time.Duration
	for _, label := range strings.Split(val, ",") {
		tf, err := domain.ParseTimeframe(strings.TrimSpace(label))
		if err != nil {
			return defaultVal
		}
		out = append(out, tf)
	}
	return out
}
