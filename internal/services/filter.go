package services

import (
	"strings"

	"github.com/diewo77/ap-invoices/validation"
	"gorm.io/gorm"
)

// DateRange bounds invoice_date inclusively. Either side may be empty.
type DateRange struct {
	Start string
	End   string
}

// InvoiceFilter enumerates the recognised invoice predicates.
// Empty fields do not filter.
type InvoiceFilter struct {
	Vendor      string
	Currency    string
	InvoiceType string
	Search      string
	DateRange   *DateRange
}

// Validate checks the date bounds. Callers at the HTTP boundary run it once.
func (f InvoiceFilter) Validate() error {
	v := validation.Violations{}
	if f.DateRange != nil {
		if f.DateRange.Start != "" {
			validation.ISODate("startDate", f.DateRange.Start, v)
		}
		if f.DateRange.End != "" {
			validation.ISODate("endDate", f.DateRange.End, v)
		}
		if v.Empty() && f.DateRange.Start != "" && f.DateRange.End != "" && f.DateRange.Start > f.DateRange.End {
			v.Add("endDate", "before_start_date")
		}
	}
	return v.Err()
}

func (f InvoiceFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Vendor != "" {
		q = q.Where("vendor_name = ?", f.Vendor)
	}
	if f.Currency != "" {
		q = q.Where("currency_code = ?", f.Currency)
	}
	if f.InvoiceType != "" {
		q = q.Where("invoice_type = ?", f.InvoiceType)
	}
	if f.DateRange != nil {
		if f.DateRange.Start != "" {
			q = q.Where("invoice_date >= ?", f.DateRange.Start)
		}
		if f.DateRange.End != "" {
			q = q.Where("invoice_date <= ?", f.DateRange.End)
		}
	}
	// SQLite's LOWER folds ASCII only, so non-ASCII search is case-sensitive
	// there. Postgres folds the full Unicode range.
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where(`LOWER(invoice_num) LIKE ? ESCAPE '\' OR LOWER(vendor_name) LIKE ? ESCAPE '\'`, like, like)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
