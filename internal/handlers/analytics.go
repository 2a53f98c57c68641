package handlers

import (
	"net/http"

	"github.com/diewo77/ap-invoices/httpx"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/rs/zerolog"
)

type AnalyticsHandler struct {
	analytics *services.AnalyticsService
	log       zerolog.Logger
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, log: logger.WithComponent("analytics-handler")}
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), false)
	if err != nil {
		writeFilterError(w, err)
		return
	}
	summary, err := h.analytics.Summarize(r.Context(), f)
	if err != nil {
		requestLogger(r, &h.log).Error().Err(err).Str("endpoint", "GET /api/analytics/summary").Msg("summary failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to fetch analytics summary")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *AnalyticsHandler) Vendors(w http.ResponseWriter, r *http.Request) {
	names, err := h.analytics.VendorList(r.Context())
	if err != nil {
		requestLogger(r, &h.log).Error().Err(err).Str("endpoint", "GET /api/vendors").Msg("vendor list failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to fetch vendors")
		return
	}
	httpx.JSON(w, http.StatusOK, names)
}

func (h *AnalyticsHandler) VendorSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.analytics.VendorSummary(r.Context())
	if err != nil {
		requestLogger(r, &h.log).Error().Err(err).Str("endpoint", "GET /api/vendors/summary").Msg("vendor summary failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to fetch vendor summary")
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}
