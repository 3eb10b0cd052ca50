package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"dexcharts/internal/candles"
	"dexcharts/internal/domain"
	"dexcharts/internal/orchestrator"
)

// Handlers contains the dependencies for the API endpoints.
type Handlers struct {
	Aggregator   *candles.Aggregator
	Orchestrator *orchestrator.Orchestrator
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *Handlers) err(c echo.Context, code int, msg string) error {
	return c.JSON(code, ErrorResponse{Error: msg, Code: code})
}

// pairParam reassembles the pair key from its path segments.
func pairParam(c echo.Context) (string, error) {
	base := strings.TrimSpace(c.Param("base"))
	quote := strings.TrimSpace(c.Param("quote"))
	if base == "" || quote == "" {
		return "", errors.New("missing pair")
	}
	return domain.PairKey(base, quote), nil
}

// Health returns a simple liveness response.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Status returns pipeline statistics, including the realtime flag chart
// consumers use to decide whether to fall back to a historical source.
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Orchestrator.Stats())
}

// Pairs lists every observed trading pair.
func (h *Handlers) Pairs(c echo.Context) error {
	pairs := h.Aggregator.GetAllPairs()
	return c.JSON(http.StatusOK, map[string]any{
		"count": len(pairs),
		"pairs": pairs,
	})
}

// Candles returns the candle series for one (pair, timeframe). The last
// element is the live in-progress candle; limit bounds closed candles
// only (default 100, max 500).
func (h *Handlers) Candles(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid pair")
	}

	tf, err := domain.ParseTimeframe(c.Param("tf"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid timeframe")
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return h.err(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	series := h.Aggregator.GetCandles(pair, tf, limit)
	if series == nil {
		return h.err(c, http.StatusNotFound, "unknown pair or timeframe")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"pair":      pair,
		"timeframe": domain.TimeframeLabel(tf),
		"realtime":  h.Orchestrator.Realtime(),
		"candles":   series,
	})
}

// Price returns the most recent trade price for a pair.
func (h *Handlers) Price(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid pair")
	}

	price, ok := h.Aggregator.GetLastPrice(pair)
	if !ok {
		return h.err(c, http.StatusNotFound, "unknown pair")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"pair":     pair,
		"price":    price,
		"realtime": h.Orchestrator.Realtime(),
	})
}

// PairStats returns cumulative stats for a pair.
func (h *Handlers) PairStats(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid pair")
	}

	stats, ok := h.Aggregator.GetPairStats(pair)
	if !ok {
		return h.err(c, http.StatusNotFound, "unknown pair")
	}
	return c.JSON(http.StatusOK, stats)
}
