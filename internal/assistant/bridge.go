// Package assistant answers natural-language questions about stored invoices
// through an external language model, and never surfaces an invoice the model
// was not shown.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/rs/zerolog"
)

const (
	DefaultContextSize = 100
	DefaultTimeout     = 60 * time.Second

	noMatchMessage  = "I couldn't find any matching invoices in the available data. Please try a different query or check if the data contains the information you're looking for."
	fallbackMessage = "I processed your query, but couldn't format the result properly."
)

// InvoiceLister supplies the recent invoices sent as context.
type InvoiceLister interface {
	List(ctx context.Context, page, limit int, f services.InvoiceFilter) ([]models.Invoice, int64, error)
}

// Summarizer supplies the analytics summary sent as context.
type Summarizer interface {
	Summarize(ctx context.Context, f services.InvoiceFilter) (*models.InvoiceSummary, error)
}

// Options tunes a Bridge. Zero values take the defaults.
type Options struct {
	ContextSize int
	Timeout     time.Duration
}

// Bridge builds the prompt, calls the model and filters its reply.
type Bridge struct {
	model       Model
	invoices    InvoiceLister
	analytics   Summarizer
	contextSize int
	timeout     time.Duration
	log         zerolog.Logger
}

// NewBridge creates a Bridge. model may be nil, in which case every Answer
// fails with ErrNotConfigured.
func NewBridge(model Model, invoices InvoiceLister, analytics Summarizer, opts Options) *Bridge {
	if opts.ContextSize <= 0 {
		opts.ContextSize = DefaultContextSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Bridge{
		model:       model,
		invoices:    invoices,
		analytics:   analytics,
		contextSize: opts.ContextSize,
		timeout:     opts.Timeout,
		log:         logger.WithComponent("assistant"),
	}
}

// Result is the reply returned to the caller. Invoices is omitted when the
// model did not return any, and is an empty array when all were filtered out.
type Result struct {
	Message    string `json:"message"`
	Invoices   []any  `json:"invoices,omitzero"`
	Total      any    `json:"total,omitempty"`
	Analysis   any    `json:"analysis,omitempty"`
	ChartData  any    `json:"chart_data,omitempty"`
	Confidence any    `json:"confidence,omitempty"`
}

// contextInvoice is the projection of an invoice the model is shown.
type contextInvoice struct {
	InvoiceNum    string  `json:"invoice_num"`
	InvoiceDate   string  `json:"invoice_date"`
	VendorName    string  `json:"vendor_name"`
	InvoiceAmount float64 `json:"invoice_amount"`
	CurrencyCode  string  `json:"currency_code"`
	InvoiceType   string  `json:"invoice_type"`
}

// Answer runs query against the model with the current invoice context.
func (b *Bridge) Answer(ctx context.Context, query string) (*Result, error) {
	const op = "assistant.Bridge.Answer"

	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}
	if b.model == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	invoices, _, err := b.invoices.List(ctx, 1, b.contextSize, services.InvoiceFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: load invoices: %w", op, err)
	}
	summary, err := b.analytics.Summarize(ctx, services.InvoiceFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: load summary: %w", op, err)
	}

	shown := make([]contextInvoice, len(invoices))
	known := make(map[string]struct{}, len(invoices))
	for i, inv := range invoices {
		h := inv.Header
		shown[i] = contextInvoice{
			InvoiceNum:    h.InvoiceNum,
			InvoiceDate:   h.InvoiceDate,
			VendorName:    h.VendorName,
			InvoiceAmount: h.InvoiceAmount,
			CurrencyCode:  h.CurrencyCode,
			InvoiceType:   string(h.InvoiceType),
		}
		known[h.InvoiceNum] = struct{}{}
	}

	prompt, err := buildPrompt(query, summary, shown)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	raw, err := b.model.Generate(ctx, prompt)
	if err != nil {
		return nil, &UpstreamError{Provider: b.model.Name(), Err: err}
	}
	b.log.Debug().
		Str("model", b.model.Name()).
		Int("context_invoices", len(shown)).
		Dur("took", time.Since(start)).
		Msg("model replied")

	res, err := b.parseReply(raw, known)
	if err != nil {
		b.log.Warn().Err(err).Msg("returning model reply as plain text")
		return plainResult(raw), nil
	}
	return res, nil
}

var (
	fencedJSON  = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")
	fenceMarker = regexp.MustCompile("```(?:json)?\\s*|\\s*```")
)

// parseReply decodes the model text and drops every invoice whose number is
// not in known.
func (b *Bridge) parseReply(raw string, known map[string]struct{}) (*Result, error) {
	body := raw
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}

	var res Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	if len(res.Invoices) == 0 {
		return &res, nil
	}

	kept := make([]any, 0, len(res.Invoices))
	for _, entry := range res.Invoices {
		if num, ok := invoiceNum(entry); ok {
			if _, found := known[num]; found {
				kept = append(kept, entry)
				continue
			}
		}
		b.log.Warn().Interface("entry", entry).Msg("removing invoice not present in context")
	}

	removed := len(res.Invoices) - len(kept)
	res.Invoices = kept
	switch {
	case removed == 0:
	case len(kept) == 0:
		res.Message = noMatchMessage
	case removed == 1:
		res.Message += " (Note: 1 invalid result was removed from the results to ensure accuracy.)"
	default:
		res.Message += fmt.Sprintf(" (Note: %d invalid results were removed from the results to ensure accuracy.)", removed)
	}
	return &res, nil
}

func invoiceNum(entry any) (string, bool) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return "", false
	}
	num, ok := obj["invoice_num"].(string)
	return num, ok
}

// plainResult turns an unparseable reply into a message-only result.
func plainResult(raw string) *Result {
	msg := strings.TrimSpace(fenceMarker.ReplaceAllString(raw, ""))
	if msg == "" {
		msg = fallbackMessage
	}
	return &Result{Message: msg}
}
