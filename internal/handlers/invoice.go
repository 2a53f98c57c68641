package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/diewo77/ap-invoices/httpx"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/diewo77/ap-invoices/validation"
	"github.com/rs/zerolog"
)

// maxUpdateBody bounds PUT bodies; pdf_base64 makes them large.
const maxUpdateBody = 25 << 20

type InvoiceHandler struct {
	invoices *services.InvoiceService
	log      zerolog.Logger
}

func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, log: logger.WithComponent("invoice-handler")}
}

type pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type invoiceList struct {
	Invoices   []models.Invoice `json:"invoices"`
	Pagination pagination       `json:"pagination"`
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q, "page", defaultPage)
	limit := positiveInt(q, "limit", defaultLimit)

	f, err := parseFilter(q, true)
	if err != nil {
		writeFilterError(w, err)
		return
	}

	invoices, total, err := h.invoices.List(r.Context(), page, limit, f)
	if err != nil {
		requestLogger(r, &h.log).Error().Err(err).Str("endpoint", "GET /api/invoices").Msg("list invoices failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to fetch invoices")
		return
	}

	httpx.JSON(w, http.StatusOK, invoiceList{
		Invoices: invoices,
		Pagination: pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	num := r.PathValue("invoice_num")
	inv, err := h.invoices.Get(r.Context(), num)
	if err != nil {
		h.writeLookupError(w, r, "GET /api/invoices/{invoice_num}", num, err, "Failed to fetch invoice")
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	num := r.PathValue("invoice_num")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		httpx.ValidationError(w, "Invalid invoice data", validation.Violations{"body": "too_large_or_unreadable"})
		return
	}
	patch, err := services.ParseHeaderPatch(body)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			httpx.ValidationError(w, "Invalid invoice data", verr.Violations)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, "Invalid invoice data")
		return
	}

	inv, err := h.invoices.UpdateHeader(r.Context(), num, patch)
	if errors.Is(err, services.ErrConflict) {
		httpx.JSONError(w, http.StatusConflict, fmt.Sprintf("Invoice %s was modified concurrently, please retry", num))
		return
	}
	if err != nil {
		h.writeLookupError(w, r, "PUT /api/invoices/{invoice_num}", num, err, "Failed to update invoice")
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// PDF serves the invoice document: a redirect for a link, the decoded bytes
// for an embedded document.
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	num := r.PathValue("invoice_num")
	inv, err := h.invoices.Get(r.Context(), num)
	if err != nil {
		h.writeLookupError(w, r, "GET /api/invoices/{invoice_num}/pdf", num, err, "Failed to fetch invoice")
		return
	}

	if !inv.Header.HasPDF() {
		httpx.JSONError(w, http.StatusNotFound, fmt.Sprintf("No PDF available for invoice %s", num))
		return
	}
	if link := inv.Header.PDFLink; isHTTPURL(link) {
		http.Redirect(w, r, link, http.StatusFound)
		return
	}
	if inv.Header.PDFBase64 != "" {
		data, err := decodePDF(inv.Header.PDFBase64)
		if err != nil {
			requestLogger(r, &h.log).Error().Err(err).Str("invoice_num", num).Msg("stored pdf is not valid base64")
			httpx.JSONError(w, http.StatusInternalServerError, "Failed to decode invoice PDF")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", num+".pdf"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	httpx.JSONError(w, http.StatusNotFound, fmt.Sprintf("No PDF available for invoice %s", num))
}

func (h *InvoiceHandler) writeLookupError(w http.ResponseWriter, r *http.Request, endpoint, num string, err error, msg string) {
	if errors.Is(err, services.ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, fmt.Sprintf("Invoice %s not found", num))
		return
	}
	requestLogger(r, &h.log).Error().Err(err).Str("endpoint", endpoint).Str("invoice_num", num).Msg(msg)
	httpx.JSONError(w, http.StatusInternalServerError, msg)
}

func isHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// decodePDF accepts plain base64 or a data URL, with or without line breaks.
func decodePDF(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Join(strings.Fields(s), "")
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, nil
}
