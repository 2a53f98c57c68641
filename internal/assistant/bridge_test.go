package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeModel) Name() string { return "fake" }

type fakeStore struct {
	invoices  []models.Invoice
	summary   models.InvoiceSummary
	lastLimit int
}

func (s *fakeStore) List(_ context.Context, _, limit int, _ services.InvoiceFilter) ([]models.Invoice, int64, error) {
	s.lastLimit = limit
	return s.invoices, int64(len(s.invoices)), nil
}

func (s *fakeStore) Summarize(context.Context, services.InvoiceFilter) (*models.InvoiceSummary, error) {
	return &s.summary, nil
}

func newStore() *fakeStore {
	inv := func(num, vendor string) models.Invoice {
		return models.Invoice{Header: models.InvoiceHeader{
			InvoiceNum:    num,
			InvoiceDate:   "2024-01-15",
			VendorName:    vendor,
			InvoiceAmount: 250,
			CurrencyCode:  "USD",
			InvoiceType:   models.InvoiceTypeStandard,
		}}
	}
	return &fakeStore{
		invoices: []models.Invoice{inv("INV-1", "Acme"), inv("INV-2", "Globex")},
		summary: models.InvoiceSummary{
			TotalInvoices: 2,
			TotalAmount:   500,
			InvoiceTypes:  []models.TypeBreakdown{{Type: "Standard", Count: 2, Amount: 500}},
			MonthlyTotals: []models.MonthlyTotal{{Month: "2024-01", Amount: 500}},
		},
	}
}

func answer(t *testing.T, reply string) *Result {
	t.Helper()
	b := NewBridge(&fakeModel{reply: reply}, newStore(), newStore(), Options{})
	res, err := b.Answer(context.Background(), "which invoices are from Acme?")
	require.NoError(t, err)
	return res
}

func TestAnswerKeepsKnownInvoices(t *testing.T) {
	res := answer(t, `{"message":"Two invoices.","invoices":[{"invoice_num":"INV-1"},{"invoice_num":"INV-2"}],"total":500,"confidence":"high"}`)
	assert.Equal(t, "Two invoices.", res.Message)
	assert.Len(t, res.Invoices, 2)
	assert.EqualValues(t, 500, res.Total)
	assert.Equal(t, "high", res.Confidence)
}

func TestAnswerDropsUnknownInvoice(t *testing.T) {
	res := answer(t, `{"message":"Found some.","invoices":[{"invoice_num":"INV-1"},{"invoice_num":"INV-9"}]}`)
	require.Len(t, res.Invoices, 1)
	assert.Equal(t, "INV-1", res.Invoices[0].(map[string]any)["invoice_num"])
	assert.Equal(t, "Found some. (Note: 1 invalid result was removed from the results to ensure accuracy.)", res.Message)
}

func TestAnswerPluralNote(t *testing.T) {
	res := answer(t, `{"message":"Found.","invoices":[{"invoice_num":"INV-2"},{"invoice_num":"X"},{"invoice_num":7},"INV-1"]}`)
	assert.Len(t, res.Invoices, 1)
	assert.True(t, strings.HasSuffix(res.Message, "(Note: 3 invalid results were removed from the results to ensure accuracy.)"))
}

func TestAnswerAllInvoicesDropped(t *testing.T) {
	res := answer(t, `{"message":"INV-9 matches.","invoices":[{"invoice_num":"INV-9"}]}`)
	assert.Equal(t, noMatchMessage, res.Message)
	assert.NotNil(t, res.Invoices)
	assert.Empty(t, res.Invoices)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"`+noMatchMessage+`","invoices":[]}`, string(body))
}

func TestAnswerWithoutInvoicesOmitsField(t *testing.T) {
	res := answer(t, `{"message":"Total is 500.","total":500}`)
	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Total is 500.","total":500}`, string(body))
}

func TestAnswerStripsCodeFence(t *testing.T) {
	res := answer(t, "Here you go:\n```json\n{\"message\":\"fenced\",\"invoices\":[{\"invoice_num\":\"INV-2\"}]}\n```")
	assert.Equal(t, "fenced", res.Message)
	assert.Len(t, res.Invoices, 1)
}

func TestAnswerUnparseableReply(t *testing.T) {
	res := answer(t, "```json\nnot json at all\n```")
	assert.Equal(t, "not json at all", res.Message)
	assert.Nil(t, res.Invoices)

	res = answer(t, "```\n```")
	assert.Equal(t, fallbackMessage, res.Message)
}

func TestAnswerPromptCarriesContext(t *testing.T) {
	model := &fakeModel{reply: `{"message":"ok"}`}
	store := newStore()
	b := NewBridge(model, store, store, Options{ContextSize: 25})

	_, err := b.Answer(context.Background(), "largest vendor?")
	require.NoError(t, err)
	require.Len(t, model.prompts, 1)
	assert.Equal(t, 25, store.lastLimit)

	p := model.prompts[0]
	assert.Contains(t, p, "- Total invoices: 2")
	assert.Contains(t, p, "- Total amount: 500")
	assert.Contains(t, p, `- Invoice types: [{"type":"Standard","count":2,"amount":500}]`)
	assert.Contains(t, p, `"invoice_num": "INV-2"`)
	assert.Contains(t, p, "USER QUERY: largest vendor?")

	_, err = b.Answer(context.Background(), "largest vendor?")
	require.NoError(t, err)
	assert.Equal(t, model.prompts[0], model.prompts[1])
}

func TestAnswerErrors(t *testing.T) {
	store := newStore()

	_, err := NewBridge(&fakeModel{}, store, store, Options{}).Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	unconfigured := NewBridge(nil, store, store, Options{})
	_, err = unconfigured.Answer(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)

	boom := errors.New("connection reset")
	model := &fakeModel{err: boom}
	_, err = NewBridge(model, store, store, Options{}).Answer(context.Background(), "hello")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "fake", upstream.Provider)
}

func TestNotConfiguredMakesNoCall(t *testing.T) {
	store := &fakeStore{}
	_, err := NewBridge(nil, store, store, Options{}).Answer(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, store.lastLimit)
}
