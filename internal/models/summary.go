package models

// InvoiceSummary is the analytics view over a filtered invoice set.
type InvoiceSummary struct {
	TotalInvoices int64           `json:"total_invoices"`
	TotalAmount   float64         `json:"total_amount"`
	InvoiceTypes  []TypeBreakdown `json:"invoice_types"`
	MonthlyTotals []MonthlyTotal  `json:"monthly_totals"`
}

// TypeBreakdown is the count and USD amount for one invoice type.
type TypeBreakdown struct {
	Type   string  `json:"type"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// MonthlyTotal is the USD amount for one YYYY-MM month.
type MonthlyTotal struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// VendorSummary rolls up all invoices of one vendor.
type VendorSummary struct {
	VendorName      string   `json:"vendor_name"`
	TotalInvoices   int64    `json:"total_invoices"`
	TotalAmountUSD  float64  `json:"total_amount_usd"`
	LastInvoiceDate string   `json:"last_invoice_date"`
	Currencies      []string `json:"currencies"`
}
