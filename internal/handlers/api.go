package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/interfaces"
)

type APIHandler struct {
	stocks interfaces.StockStorage
	logger arbor.ILogger
}

func NewAPIHandler(stocks interfaces.StockStorage, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		stocks: stocks,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, common.VersionInfo())
}

// HealthHandler reports whether storage answers
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	count, err := h.stocks.CountStocks(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"error":  "storage unavailable",
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"stocks": count,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
