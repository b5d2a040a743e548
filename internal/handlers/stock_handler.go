package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/quotes"
	"github.com/ternarybob/screener/internal/services/stocks"
)

// StockHandler serves the stock query endpoints
type StockHandler struct {
	stocks *stocks.Service
	logger arbor.ILogger
}

func NewStockHandler(stocks *stocks.Service, logger arbor.ILogger) *StockHandler {
	return &StockHandler{
		stocks: stocks,
		logger: logger,
	}
}

// MetaHandler returns column groups, column meta, industries, sectors and the stock count
func (h *StockHandler) MetaHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	meta, err := h.stocks.Meta(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build meta")
		WriteError(w, http.StatusInternalServerError, "Failed to load metadata")
		return
	}

	WriteJSON(w, http.StatusOK, meta)
}

// ListHandler returns the filtered stock listing
func (h *StockHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	filter, err := parseStockFilter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.stocks.List(r.Context(), filter, queryBool(r, "shortlist_only"))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list stocks")
		WriteError(w, http.StatusInternalServerError, "Failed to list stocks")
		return
	}

	WriteJSON(w, http.StatusOK, rows)
}

// DetailHandler returns one stock with history, peers and live price fields
func (h *StockHandler) DetailHandler(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	data, err := h.stocks.Detail(r.Context(), ticker)
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("Failed to load stock")
		WriteError(w, http.StatusInternalServerError, "Failed to load stock")
		return
	}

	WriteJSON(w, http.StatusOK, data)
}

// QuoteHandler returns a live quote or the stored price
func (h *StockHandler) QuoteHandler(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	quote, err := h.stocks.Quote(r.Context(), ticker)
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("Failed to load quote")
		WriteError(w, http.StatusInternalServerError, "Failed to load quote")
		return
	}

	WriteJSON(w, http.StatusOK, quote)
}

// PriceHistoryHandler returns OHLCV points and a summary for ?period=
func (h *StockHandler) PriceHistoryHandler(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	period := r.URL.Query().Get("period")
	history, err := h.stocks.PriceHistory(r.Context(), ticker, period)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, history)
	case errors.Is(err, stocks.ErrQuotesDisabled):
		WriteError(w, http.StatusServiceUnavailable, "Live quotes are disabled on this server")
	case errors.Is(err, quotes.ErrInvalidPeriod):
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid period. Use: %s", strings.Join(quotes.PeriodKeys(), ", ")))
	case errors.Is(err, interfaces.ErrNoPriceData):
		WriteError(w, http.StatusNotFound, fmt.Sprintf("No price data found for %s", ticker))
	default:
		h.logger.Error().Err(err).Str("ticker", ticker).Str("period", period).Msg("Price history failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// IndustryStatsHandler returns per-industry aggregates
func (h *StockHandler) IndustryStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rows, err := h.stocks.IndustryStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load industry stats")
		WriteError(w, http.StatusInternalServerError, "Failed to load industry stats")
		return
	}

	WriteJSON(w, http.StatusOK, rows)
}

func parseStockFilter(r *http.Request) (models.StockFilter, error) {
	q := r.URL.Query()
	filter := models.StockFilter{
		Industry: q.Get("industry"),
		Sector:   q.Get("sector"),
	}

	var err error
	if filter.MinCap, err = queryInt64(r, "min_cap"); err != nil {
		return filter, err
	}
	if filter.MaxCap, err = queryInt64(r, "max_cap"); err != nil {
		return filter, err
	}
	if filter.MinRSI, err = queryFloat(r, "min_rsi"); err != nil {
		return filter, err
	}
	if filter.MaxRSI, err = queryFloat(r, "max_rsi"); err != nil {
		return filter, err
	}
	if filter.MinPE, err = queryFloat(r, "min_pe"); err != nil {
		return filter, err
	}
	if filter.MaxPE, err = queryFloat(r, "max_pe"); err != nil {
		return filter, err
	}
	return filter, nil
}
