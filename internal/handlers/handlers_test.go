package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/ap-invoices/internal/assistant"
	"github.com/diewo77/ap-invoices/internal/export"
	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/diewo77/ap-invoices/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestMux(t *testing.T) (*http.ServeMux, *gorm.DB) {
	t.Helper()
	conn := testutil.NewDB(t)
	invoices := services.NewInvoiceService(conn)
	ih := NewInvoiceHandler(invoices)
	ah := NewAnalyticsHandler(services.NewAnalyticsService(conn, false))
	eh := NewExportHandler(invoices)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/invoices", ih.List)
	mux.HandleFunc("GET /api/invoices/{invoice_num}", ih.Get)
	mux.HandleFunc("PUT /api/invoices/{invoice_num}", ih.Update)
	mux.HandleFunc("GET /api/invoices/{invoice_num}/pdf", ih.PDF)
	mux.HandleFunc("GET /api/analytics/summary", ah.Summary)
	mux.HandleFunc("GET /api/vendors", ah.Vendors)
	mux.HandleFunc("GET /api/vendors/summary", ah.VendorSummary)
	mux.HandleFunc("GET /api/export/invoices", eh.Invoices)
	return mux, conn
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body=%s", w.Body.String())
	return v
}

func TestListInvoicesPagination(t *testing.T) {
	mux, conn := newTestMux(t)
	for _, num := range []string{"INV-01", "INV-02", "INV-03", "INV-04", "INV-05"} {
		testutil.Insert(t, conn, testutil.Invoice(num, "2024-01-"+num[4:], "Acme", "USD", models.InvoiceTypeStandard, 10))
	}

	w := do(mux, http.MethodGet, "/api/invoices?page=2&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[invoiceList](t, w)
	assert.Equal(t, pagination{Total: 5, Page: 2, Limit: 2, TotalPages: 3}, got.Pagination)
	require.Len(t, got.Invoices, 2)
	assert.Equal(t, "INV-03", got.Invoices[0].Header.InvoiceNum)
	assert.Equal(t, "INV-02", got.Invoices[1].Header.InvoiceNum)

	w = do(mux, http.MethodGet, "/api/invoices?page=0&limit=abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[invoiceList](t, w)
	assert.Equal(t, pagination{Total: 5, Page: 1, Limit: 10, TotalPages: 1}, got.Pagination)
}

func TestListInvoicesEmptyIsArray(t *testing.T) {
	mux, _ := newTestMux(t)
	w := do(mux, http.MethodGet, "/api/invoices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invoices":[],"pagination":{"total":0,"page":1,"limit":10,"totalPages":0}}`, w.Body.String())
}

func TestListInvoicesRejectsBadDate(t *testing.T) {
	mux, _ := newTestMux(t)
	w := do(mux, http.MethodGet, "/api/invoices?startDate=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "startDate")
}

func TestGetInvoice(t *testing.T) {
	mux, conn := newTestMux(t)
	inv := testutil.Invoice("INV-9", "2024-05-01", "Acme", "EUR", models.InvoiceTypeStandard, 60, 40)
	inv.Header.InvoiceAmount = 1
	testutil.Insert(t, conn, inv)

	w := do(mux, http.MethodGet, "/api/invoices/INV-9", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]map[string]any](t, w)
	assert.EqualValues(t, 100, body["invoice_header"]["invoice_amount"])
	assert.EqualValues(t, 108, body["invoice_header"]["to_usd"])

	w = do(mux, http.MethodGet, "/api/invoices/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Invoice NOPE not found"}`, w.Body.String())
}

func TestUpdateInvoice(t *testing.T) {
	mux, conn := newTestMux(t)
	testutil.Insert(t, conn, testutil.Invoice("INV-U", "2024-05-01", "Acme", "USD", models.InvoiceTypeStandard, 830))

	w := do(mux, http.MethodPut, "/api/invoices/INV-U", `{"currency_code":"INR","invoice_num":"OTHER","invoice_amount":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Invoice](t, w)
	assert.Equal(t, "INV-U", got.Header.InvoiceNum)
	assert.Equal(t, 830.0, got.Header.InvoiceAmount)
	assert.Equal(t, 10.0, got.Header.USDValue())

	again := do(mux, http.MethodPut, "/api/invoices/INV-U", `{"currency_code":"INR","invoice_num":"OTHER","invoice_amount":5}`)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, got.Header, decode[models.Invoice](t, again).Header)

	var count int64
	require.NoError(t, conn.Model(&models.Invoice{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpdateInvoiceValidation(t *testing.T) {
	mux, conn := newTestMux(t)
	testutil.Insert(t, conn, testutil.Invoice("INV-V", "2024-05-01", "Acme", "USD", models.InvoiceTypeStandard, 1))

	w := do(mux, http.MethodPut, "/api/invoices/INV-V", `{"invoice_amount":"lots","currency_code":840}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Invalid invoice data","errors":[
		{"field":"currency_code","message":"must_be_string"},
		{"field":"invoice_amount","message":"must_be_number"}
	]}`, w.Body.String())

	w = do(mux, http.MethodPut, "/api/invoices/MISSING", `{"vendor_name":"X"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateInvoiceKeepsIngestedValues(t *testing.T) {
	mux, conn := newTestMux(t)
	inv := testutil.Invoice("INV-DM", "2024-05-01", "Acme", "USD", models.InvoiceType("Debit Memo"), 20)
	inv.Header.PaymentTerm = "2/10 NET30"
	testutil.Insert(t, conn, inv)

	w := do(mux, http.MethodPut, "/api/invoices/INV-DM", `{"vendor_name":"Acme 2","invoice_type":"Debit Memo"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Invoice](t, w)
	assert.Equal(t, "Acme 2", got.Header.VendorName)
	assert.Equal(t, models.InvoiceType("Debit Memo"), got.Header.InvoiceType)

	w = do(mux, http.MethodPut, "/api/invoices/INV-DM", `{"payment_term":"2/10 NET30","invoice_type":"Pro Forma"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := testutil.Stored(t, conn, "INV-DM")
	assert.Equal(t, models.PaymentTerm("2/10 NET30"), stored.Header.PaymentTerm)
	assert.Equal(t, models.InvoiceType("Pro Forma"), stored.Header.InvoiceType)
}

func TestUpdateInvoiceNormalisesKnownType(t *testing.T) {
	mux, conn := newTestMux(t)
	testutil.Insert(t, conn, testutil.Invoice("INV-S", "2024-05-01", "Acme", "USD", models.InvoiceTypeCredit, 20))

	w := do(mux, http.MethodPut, "/api/invoices/INV-S", `{"invoice_type":" standard "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(mux, http.MethodGet, "/api/invoices?invoiceType=Standard", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[invoiceList](t, w)
	require.Len(t, got.Invoices, 1)
	assert.Equal(t, "INV-S", got.Invoices[0].Header.InvoiceNum)
	assert.Equal(t, models.InvoiceTypeStandard, got.Invoices[0].Header.InvoiceType)
}

func TestUpdateInvoiceConflict(t *testing.T) {
	mux, conn := newTestMux(t)
	testutil.Insert(t, conn, testutil.Invoice("INV-C", "2024-05-01", "Acme", "USD", models.InvoiceTypeStandard, 20))
	testutil.InterceptInvoiceUpdates(t, conn, nil)

	w := do(mux, http.MethodPut, "/api/invoices/INV-C", `{"vendor_name":"Acme 2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"message":"Invoice INV-C was modified concurrently, please retry"}`, w.Body.String())
}

func TestGetInvoiceSurvivesFailedWriteBack(t *testing.T) {
	mux, conn := newTestMux(t)
	inv := testutil.Invoice("INV-W", "2024-05-01", "Acme", "EUR", models.InvoiceTypeStandard, 100)
	inv.Header.InvoiceAmount = 3
	testutil.Insert(t, conn, inv)
	testutil.InterceptInvoiceUpdates(t, conn, errors.New("database is locked"))

	w := do(mux, http.MethodGet, "/api/invoices/INV-W", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Invoice](t, w)
	assert.Equal(t, 100.0, got.Header.InvoiceAmount)
	assert.Equal(t, 108.0, got.Header.USDValue())
}

func TestInvoicePDF(t *testing.T) {
	mux, conn := newTestMux(t)
	pdf := []byte("%PDF-1.4 test")

	linked := testutil.Invoice("INV-L", "2024-01-01", "Acme", "USD", models.InvoiceTypeStandard, 1)
	linked.Header.PDFLink = "https://files.example.com/inv-l.pdf"
	embedded := testutil.Invoice("INV-E", "2024-01-01", "Acme", "USD", models.InvoiceTypeStandard, 1)
	embedded.Header.PDFBase64 = "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)
	none := testutil.Invoice("INV-N", "2024-01-01", "Acme", "USD", models.InvoiceTypeStandard, 1)
	testutil.Insert(t, conn, linked, embedded, none)

	w := do(mux, http.MethodGet, "/api/invoices/INV-L/pdf", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://files.example.com/inv-l.pdf", w.Header().Get("Location"))

	w = do(mux, http.MethodGet, "/api/invoices/INV-E/pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, pdf, w.Body.Bytes())

	w = do(mux, http.MethodGet, "/api/invoices/INV-N/pdf", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecodePDF(t *testing.T) {
	raw := []byte("hello pdf bytes")
	enc := base64.StdEncoding.EncodeToString(raw)

	for _, in := range []string{
		enc,
		enc[:8] + "\n" + enc[8:],
		"data:application/pdf;base64," + enc,
		strings.TrimRight(enc, "="),
	} {
		got, err := decodePDF(in)
		require.NoError(t, err, in)
		assert.Equal(t, raw, got)
	}
	_, err := decodePDF("!!!")
	assert.Error(t, err)
}

func TestAnalyticsEndpoints(t *testing.T) {
	mux, conn := newTestMux(t)
	a := testutil.Invoice("INV-A", "2024-01-05", "Acme", "USD", models.InvoiceTypeStandard, 50)
	a.Header.ToUSD = testutil.Float(50)
	b := testutil.Invoice("INV-B", "2024-02-05", "Acme", "EUR", models.InvoiceTypeStandard, 100)
	b.Header.ToUSD = testutil.Float(108)
	c := testutil.Invoice("INV-C", "2024-02-07", "Globex", "USD", models.InvoiceTypeCredit, 10)
	c.Header.ToUSD = testutil.Float(10)
	testutil.Insert(t, conn, a, b, c)

	w := do(mux, http.MethodGet, "/api/analytics/summary?vendor=Acme", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[models.InvoiceSummary](t, w)
	assert.EqualValues(t, 2, summary.TotalInvoices)
	assert.InDelta(t, 158, summary.TotalAmount, 1e-9)
	assert.Len(t, summary.MonthlyTotals, 2)

	w = do(mux, http.MethodGet, "/api/vendors", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["Acme","Globex"]`, w.Body.String())

	w = do(mux, http.MethodGet, "/api/vendors/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	vendors := decode[[]models.VendorSummary](t, w)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme", vendors[0].VendorName)
	assert.ElementsMatch(t, []string{"USD", "EUR"}, vendors[0].Currencies)
	assert.Equal(t, "2024-02-05", vendors[0].LastInvoiceDate)
}

func TestExportInvoices(t *testing.T) {
	mux, conn := newTestMux(t)
	testutil.Insert(t, conn, testutil.Invoice("INV-X", "2024-01-01", "Acme", "USD", models.InvoiceTypeStandard, 3, 4))

	w := do(mux, http.MethodGet, "/api/export/invoices?vendor=Acme", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=invoices_export.xlsx", w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}

type stubAnswerer struct {
	res *assistant.Result
	err error
}

func (s stubAnswerer) Answer(context.Context, string) (*assistant.Result, error) { return s.res, s.err }

func TestAssistantQuery(t *testing.T) {
	tests := []struct {
		name   string
		stub   stubAnswerer
		body   string
		status int
		want   string
	}{
		{"ok", stubAnswerer{res: &assistant.Result{Message: "hi"}}, `{"query":"hello"}`, 200, `{"message":"hi"}`},
		{"missing query", stubAnswerer{}, `{}`, 400, `{"message":"Invalid query format"}`},
		{"non-string query", stubAnswerer{}, `{"query":42}`, 400, `{"message":"Invalid query format"}`},
		{"not configured", stubAnswerer{err: assistant.ErrNotConfigured}, `{"query":"hello"}`, 500, `{"message":"Gemini API key is not configured","needsApiKey":true}`},
		{"upstream", stubAnswerer{err: &assistant.UpstreamError{Provider: "fake", Err: errors.New("secret detail")}}, `{"query":"hello"}`, 500, `{"message":"Failed to process your query"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAssistantHandler(tt.stub, "gemini")
			req := httptest.NewRequest(http.MethodPost, "/api/ai-assistant/query", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Query(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}
