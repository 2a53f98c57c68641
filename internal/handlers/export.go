package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/diewo77/ap-invoices/httpx"
	"github.com/diewo77/ap-invoices/internal/export"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/rs/zerolog"
)

type ExportHandler struct {
	invoices *services.InvoiceService
	log      zerolog.Logger
}

func NewExportHandler(invoices *services.InvoiceService) *ExportHandler {
	return &ExportHandler{invoices: invoices, log: logger.WithComponent("export-handler")}
}

// Invoices sends every invoice matching the list filters as an xlsx file.
func (h *ExportHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), true)
	if err != nil {
		writeFilterError(w, err)
		return
	}

	log := requestLogger(r, &h.log)
	invoices, _, err := h.invoices.List(r.Context(), 1, 0, f)
	if err != nil {
		log.Error().Err(err).Str("endpoint", "GET /api/export/invoices").Msg("export query failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to export invoices")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteInvoices(&buf, invoices); err != nil {
		log.Error().Err(err).Str("endpoint", "GET /api/export/invoices").Msg("workbook write failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to export invoices")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
