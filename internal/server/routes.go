package server

import (
	"net/http"

	"github.com/ternarybob/screener/internal/handlers"
	"github.com/ternarybob/screener/internal/services/stocks"
)

const stockPrefix = "/api/stock/"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Stocks
	mux.HandleFunc("/api/meta", s.app.StockHandler.MetaHandler)
	mux.HandleFunc("/api/stocks", s.app.StockHandler.ListHandler)
	mux.HandleFunc("/api/industry_stats", s.app.StockHandler.IndustryStatsHandler)
	mux.HandleFunc(stockPrefix, s.handleStockRoutes) // /{ticker}, /{ticker}/quote, /{ticker}/price_history

	// API routes - Shortlist
	mux.HandleFunc("/api/shortlist", s.handleShortlistRoute) // GET (list), POST (update)
	mux.HandleFunc("/api/shortlist/bulk", s.app.ShortlistHandler.BulkHandler)

	// API routes - Refresh
	mux.HandleFunc("/api/refresh", s.handleRefreshRoute) // GET (status), POST (trigger)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleStockRoutes routes /api/stock/{ticker}[/quote|/price_history]
func (s *Server) handleStockRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, stockPrefix)
	if len(segments) == 0 || len(segments) > 2 {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	ticker := stocks.NormalizeTicker(segments[0])
	if len(segments) == 1 {
		s.app.StockHandler.DetailHandler(w, r, ticker)
		return
	}

	switch segments[1] {
	case "quote":
		s.app.StockHandler.QuoteHandler(w, r, ticker)
	case "price_history":
		s.app.StockHandler.PriceHistoryHandler(w, r, ticker)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

func (s *Server) handleShortlistRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.ShortlistHandler.GetHandler, s.app.ShortlistHandler.UpdateHandler)
}

func (s *Server) handleRefreshRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.RefreshHandler.StatusHandler, s.app.RefreshHandler.TriggerHandler)
}
