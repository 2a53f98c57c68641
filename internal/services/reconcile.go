package services

import (
	"github.com/diewo77/ap-invoices/internal/currency"
	"github.com/diewo77/ap-invoices/internal/models"
)

// Reconcile derives invoice_amount and to_usd from the invoice lines.
//
// It returns the corrected header and whether it differs from the stored one:
// the amount drifted from the line sum, to_usd was never set, or a currency
// override was given. The override is the update path's new currency code;
// to_usd is then recomputed against it even if the amount is unchanged.
func Reconcile(inv *models.Invoice, currencyOverride string) (models.InvoiceHeader, bool) {
	h := inv.Header
	total := currency.Sum(inv.LineAmounts()...)

	code := h.CurrencyCode
	if currencyOverride != "" {
		code = currencyOverride
	}
	if currencyOverride == "" && total == h.InvoiceAmount && h.ToUSD != nil {
		return h, false
	}

	usd := currency.ToUSD(total, code)
	h.InvoiceAmount = total
	h.CurrencyCode = code
	h.ToUSD = &usd
	return h, true
}

// amountDrifted reports whether the stored amount differs from the line sum.
func amountDrifted(inv *models.Invoice) (float64, bool) {
	total := currency.Sum(inv.LineAmounts()...)
	return total, total != inv.Header.InvoiceAmount
}

// headerColumns lists every mutable header column for a single UPDATE.
func headerColumns(h models.InvoiceHeader) map[string]any {
	return map[string]any{
		"organization_code": h.OrganizationCode,
		"invoice_date":      h.InvoiceDate,
		"vendor_name":       h.VendorName,
		"vendor_site_code":  h.VendorSiteCode,
		"invoice_amount":    h.InvoiceAmount,
		"currency_code":     h.CurrencyCode,
		"payment_term":      h.PaymentTerm,
		"invoice_type":      h.InvoiceType,
		"pdf_link":          h.PDFLink,
		"pdf_base64":        h.PDFBase64,
		"to_usd":            h.ToUSD,
	}
}

// derivedColumns lists only the columns the reconciler owns.
func derivedColumns(h models.InvoiceHeader) map[string]any {
	return map[string]any{
		"invoice_amount": h.InvoiceAmount,
		"to_usd":         h.ToUSD,
	}
}
