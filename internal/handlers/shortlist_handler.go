package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/services/shortlist"
	"github.com/ternarybob/screener/internal/services/stocks"
)

type shortlistUpdateRequest struct {
	Ticker string   `json:"ticker" validate:"required,max=16"`
	Action string   `json:"action" validate:"omitempty,oneof=add remove toggle"`
	Price  *float64 `json:"price" validate:"omitempty,gte=0"`
}

type shortlistBulkRequest struct {
	Tickers []string `json:"tickers" validate:"dive,max=16"`
	Action  string   `json:"action" validate:"omitempty,oneof=add remove set"`
}

// ShortlistHandler serves the watchlist endpoints
type ShortlistHandler struct {
	shortlist *shortlist.Service
	validate  *validator.Validate
	logger    arbor.ILogger
}

func NewShortlistHandler(shortlist *shortlist.Service, logger arbor.ILogger) *ShortlistHandler {
	return &ShortlistHandler{
		shortlist: shortlist,
		validate:  validator.New(),
		logger:    logger,
	}
}

// GetHandler returns the tickers, or the full entries with ?detailed=true
func (h *ShortlistHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if queryBool(r, "detailed") {
		entries, err := h.shortlist.Entries(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to load shortlist")
			WriteError(w, http.StatusInternalServerError, "Failed to load shortlist")
			return
		}
		WriteJSON(w, http.StatusOK, entries)
		return
	}

	tickers, err := h.shortlist.Tickers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load shortlist")
		WriteError(w, http.StatusInternalServerError, "Failed to load shortlist")
		return
	}
	WriteJSON(w, http.StatusOK, tickers)
}

// UpdateHandler applies add, remove or toggle to one ticker
func (h *ShortlistHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req shortlistUpdateRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticker := stocks.NormalizeTicker(req.Ticker)
	shortlisted, err := h.shortlist.Update(r.Context(), ticker, req.Action, req.Price)
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("Failed to update shortlist")
		WriteError(w, http.StatusInternalServerError, "Failed to update shortlist")
		return
	}

	h.writeState(w, r, map[string]interface{}{
		"ticker":      ticker,
		"shortlisted": shortlisted,
	})
}

// BulkHandler applies add, remove or set to many tickers
func (h *ShortlistHandler) BulkHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req shortlistBulkRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tickers := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		tickers = append(tickers, stocks.NormalizeTicker(t))
	}

	if err := h.shortlist.Bulk(r.Context(), tickers, req.Action); err != nil {
		h.logger.Error().Err(err).Str("action", req.Action).Msg("Failed to apply bulk shortlist update")
		WriteError(w, http.StatusInternalServerError, "Failed to update shortlist")
		return
	}

	h.writeState(w, r, nil)
}

// writeState responds with the shortlist in both forms plus any extra fields
func (h *ShortlistHandler) writeState(w http.ResponseWriter, r *http.Request, extra map[string]interface{}) {
	entries, err := h.shortlist.Entries(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load shortlist")
		WriteError(w, http.StatusInternalServerError, "Failed to load shortlist")
		return
	}

	tickers := make([]string, 0, len(entries))
	for _, e := range entries {
		tickers = append(tickers, e.Ticker)
	}

	body := map[string]interface{}{
		"shortlist":          tickers,
		"shortlist_detailed": entries,
	}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, http.StatusOK, body)
}
