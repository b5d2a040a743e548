package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/services/refresh"
)

// RefreshHandler triggers and reports refresh runs
type RefreshHandler struct {
	refresh *refresh.Service
	logger  arbor.ILogger
}

func NewRefreshHandler(refresh *refresh.Service, logger arbor.ILogger) *RefreshHandler {
	return &RefreshHandler{
		refresh: refresh,
		logger:  logger,
	}
}

// StatusHandler reports whether a run is in progress and the last outcome
func (h *RefreshHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.refresh.Running(),
		"last":    h.refresh.LastResult(),
	})
}

// TriggerHandler starts a refresh in the background. 409 when one is running.
func (h *RefreshHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if h.refresh.Running() {
		WriteError(w, http.StatusConflict, refresh.ErrAlreadyRunning.Error())
		return
	}

	common.SafeGo(h.logger, "refresh", func() {
		// detached from the request, which ends before the run does
		if _, err := h.refresh.Run(context.Background()); err != nil {
			h.logger.Error().Err(err).Msg("Manual refresh failed")
		}
	})

	WriteStarted(w, "Refresh started")
}
