package models

import "strings"

// InvoiceType is the stored invoice type. Ingestion may have written values
// outside the known set, so the raw text is kept and Kind classifies it.
type InvoiceType string

const (
	InvoiceTypeStandard   InvoiceType = "Standard"
	InvoiceTypeCredit     InvoiceType = "Credit"
	InvoiceTypePrepayment InvoiceType = "Prepayment"
)

// InvoiceKind is the closed classification of an InvoiceType.
type InvoiceKind int

const (
	KindOther InvoiceKind = iota
	KindStandard
	KindCredit
	KindPrepayment
)

func (k InvoiceKind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindCredit:
		return "credit"
	case KindPrepayment:
		return "prepayment"
	default:
		return "other"
	}
}

// Kind classifies the type. Matching ignores case and surrounding spaces.
func (t InvoiceType) Kind() InvoiceKind {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "standard":
		return KindStandard
	case "credit", "credit memo":
		return KindCredit
	case "prepayment":
		return KindPrepayment
	default:
		return KindOther
	}
}

// Canonical returns the known spelling of t when t differs from it only by
// case or surrounding spaces. Any other value is returned trimmed.
func (t InvoiceType) Canonical() InvoiceType {
	s := strings.TrimSpace(string(t))
	if k := InvoiceType(s).Kind(); k != KindOther && strings.EqualFold(s, k.String()) {
		return knownTypes[k]
	}
	return InvoiceType(s)
}

var knownTypes = map[InvoiceKind]InvoiceType{
	KindStandard:   InvoiceTypeStandard,
	KindCredit:     InvoiceTypeCredit,
	KindPrepayment: InvoiceTypePrepayment,
}

// PaymentTerm is a payment term token such as "NET30" or "Immediate".
// Stored values are free text.
type PaymentTerm string
