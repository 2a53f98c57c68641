package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diewo77/ap-invoices/httpx"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/diewo77/ap-invoices/validation"
	"github.com/rs/zerolog"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// positiveInt parses key from q, falling back to def for missing, invalid or
// non-positive values.
func positiveInt(q url.Values, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get(key)))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// parseFilter reads the invoice filter query parameters. The analytics
// endpoints pass full=false and ignore invoiceType and search.
func parseFilter(q url.Values, full bool) (services.InvoiceFilter, error) {
	f := services.InvoiceFilter{
		Vendor:   q.Get("vendor"),
		Currency: q.Get("currency"),
	}
	if full {
		f.InvoiceType = q.Get("invoiceType")
		f.Search = q.Get("search")
	}
	start, end := q.Get("startDate"), q.Get("endDate")
	if start != "" || end != "" {
		f.DateRange = &services.DateRange{Start: start, End: end}
	}
	return f, f.Validate()
}

// writeFilterError answers a rejected filter with a 400.
func writeFilterError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		httpx.ValidationError(w, "Invalid filter parameters", verr.Violations)
		return
	}
	httpx.JSONError(w, http.StatusBadRequest, "Invalid filter parameters")
}

// requestLogger prefers the request-scoped logger set by the server middleware.
func requestLogger(r *http.Request, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}
