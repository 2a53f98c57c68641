package models

import (
	"time"
)

// Invoice is the aggregate root: one header plus its ordered lines.
// The header columns live on the invoices table; lines are owned rows in
// invoice_lines and have no lifecycle of their own.
type Invoice struct {
	Header InvoiceHeader `gorm:"embedded" json:"invoice_header"`
	Lines  []InvoiceLine `gorm:"foreignKey:InvoiceNum;references:InvoiceNum;constraint:OnDelete:CASCADE" json:"invoice_lines"`

	// Revision is bumped on every write and guards concurrent updates.
	Revision  int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// InvoiceHeader is the single-row summary of an invoice.
type InvoiceHeader struct {
	InvoiceNum       string      `gorm:"primaryKey;size:100" json:"invoice_num"`
	OrganizationCode int         `json:"organization_code"`
	InvoiceDate      string      `gorm:"size:32;index" json:"invoice_date"`
	VendorName       string      `gorm:"size:255;index" json:"vendor_name"`
	VendorSiteCode   string      `gorm:"size:100" json:"vendor_site_code"`
	InvoiceAmount    float64     `gorm:"type:numeric;not null;default:0" json:"invoice_amount"`
	CurrencyCode     string      `gorm:"size:10;index" json:"currency_code"`
	PaymentTerm      PaymentTerm `gorm:"size:50" json:"payment_term"`
	InvoiceType      InvoiceType `gorm:"size:50;index" json:"invoice_type"`
	PDFLink          string      `gorm:"size:2048" json:"pdf_link,omitempty"`
	PDFBase64        string      `gorm:"type:text" json:"pdf_base64,omitempty"`
	ToUSD            *float64    `gorm:"column:to_usd;type:numeric" json:"to_usd,omitempty"`
}

// InvoiceLine is one billable entry of an invoice.
type InvoiceLine struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	InvoiceNum  string  `gorm:"size:100;index;not null" json:"-"`
	LineNumber  int     `json:"line_number"`
	LineType    string  `gorm:"size:50" json:"line_type"`
	Description string  `gorm:"size:500" json:"description"`
	Quantity    float64 `gorm:"type:numeric" json:"quantity"`
	UnitPrice   float64 `gorm:"type:numeric" json:"unit_price"`
	LineAmount  float64 `gorm:"type:numeric" json:"line_amount"`
}

// LineAmounts returns the line_amount of every line in order.
func (i *Invoice) LineAmounts() []float64 {
	amounts := make([]float64, len(i.Lines))
	for n, l := range i.Lines {
		amounts[n] = l.LineAmount
	}
	return amounts
}

// HasPDF reports whether the invoice carries a link or an embedded document.
func (h *InvoiceHeader) HasPDF() bool {
	return h.PDFLink != "" || h.PDFBase64 != ""
}

// USDValue returns to_usd, or zero when it has never been computed.
func (h *InvoiceHeader) USDValue() float64 {
	if h.ToUSD == nil {
		return 0
	}
	return *h.ToUSD
}
