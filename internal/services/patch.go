package services

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/diewo77/ap-invoices/validation"
)

// HeaderPatch is a partial header update. Nil fields keep the stored value.
// invoice_num and to_usd are not patchable; invoice_amount is accepted but
// always replaced by the line total.
type HeaderPatch struct {
	OrganizationCode *int
	InvoiceDate      *string
	VendorName       *string
	VendorSiteCode   *string
	InvoiceAmount    *float64
	CurrencyCode     *string
	PaymentTerm      *string
	InvoiceType      *string
	PDFLink          *string
	PDFBase64        *string
}

// ParseHeaderPatch decodes a JSON object into a patch, type-checking every
// known field. Unknown fields are ignored. currency_code, payment_term and
// invoice_type are free text, as ingestion stores them. The error is a
// *validation.Error.
func ParseHeaderPatch(body []byte) (HeaderPatch, error) {
	var p HeaderPatch

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return p, validation.Violations{"body": "must_be_json_object"}.Err()
	}

	v := validation.Violations{}
	p.OrganizationCode = decodeInt(raw, "organization_code", v)
	p.InvoiceDate = decodeString(raw, "invoice_date", v)
	p.VendorName = decodeString(raw, "vendor_name", v)
	p.VendorSiteCode = decodeString(raw, "vendor_site_code", v)
	p.InvoiceAmount = decodeNumber(raw, "invoice_amount", v)
	p.CurrencyCode = decodeString(raw, "currency_code", v)
	p.PaymentTerm = decodeString(raw, "payment_term", v)
	p.InvoiceType = decodeString(raw, "invoice_type", v)
	p.PDFLink = decodeString(raw, "pdf_link", v)
	p.PDFBase64 = decodeString(raw, "pdf_base64", v)

	if p.InvoiceDate != nil {
		validation.ISODate("invoice_date", *p.InvoiceDate, v)
	}
	if p.VendorName != nil {
		validation.Required("vendor_name", *p.VendorName, v)
	}
	if p.InvoiceAmount != nil && (math.IsNaN(*p.InvoiceAmount) || math.IsInf(*p.InvoiceAmount, 0)) {
		v.Add("invoice_amount", "must_be_number")
	}

	if err := v.Err(); err != nil {
		return HeaderPatch{}, err
	}
	return p, nil
}

// Apply returns h with every set field of p copied over.
func (p HeaderPatch) Apply(h models.InvoiceHeader) models.InvoiceHeader {
	if p.OrganizationCode != nil {
		h.OrganizationCode = *p.OrganizationCode
	}
	if p.InvoiceDate != nil {
		h.InvoiceDate = *p.InvoiceDate
	}
	if p.VendorName != nil {
		h.VendorName = *p.VendorName
	}
	if p.VendorSiteCode != nil {
		h.VendorSiteCode = *p.VendorSiteCode
	}
	if p.InvoiceAmount != nil {
		h.InvoiceAmount = *p.InvoiceAmount
	}
	if p.CurrencyCode != nil {
		h.CurrencyCode = *p.CurrencyCode
	}
	if p.PaymentTerm != nil {
		h.PaymentTerm = models.PaymentTerm(*p.PaymentTerm)
	}
	if p.InvoiceType != nil {
		h.InvoiceType = models.InvoiceType(*p.InvoiceType).Canonical()
	}
	if p.PDFLink != nil {
		h.PDFLink = *p.PDFLink
	}
	if p.PDFBase64 != nil {
		h.PDFBase64 = *p.PDFBase64
	}
	return h
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

func decodeString(raw map[string]json.RawMessage, field string, v validation.Violations) *string {
	msg, ok := raw[field]
	if !ok {
		return nil
	}
	var s string
	if isNull(msg) || json.Unmarshal(msg, &s) != nil {
		v.Add(field, "must_be_string")
		return nil
	}
	return &s
}

func decodeNumber(raw map[string]json.RawMessage, field string, v validation.Violations) *float64 {
	msg, ok := raw[field]
	if !ok {
		return nil
	}
	var f float64
	if isNull(msg) || json.Unmarshal(msg, &f) != nil {
		v.Add(field, "must_be_number")
		return nil
	}
	return &f
}

func decodeInt(raw map[string]json.RawMessage, field string, v validation.Violations) *int {
	f := decodeNumber(raw, field, v)
	if f == nil {
		if _, present := raw[field]; present {
			v[field] = "must_be_integer"
		}
		return nil
	}
	if *f != math.Trunc(*f) || *f > math.MaxInt32 || *f < math.MinInt32 {
		v.Add(field, "must_be_integer")
		return nil
	}
	n := int(*f)
	return &n
}
