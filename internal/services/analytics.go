package services

import (
	"context"
	"fmt"

	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// AnalyticsService computes dashboard aggregates over stored invoices.
//
// Before summarising, it repairs invoice_amount on every in-scope invoice.
// to_usd is left alone unless fullRepair is set, so totals follow whatever
// to_usd already holds.
type AnalyticsService struct {
	db         *gorm.DB
	fullRepair bool
	log        zerolog.Logger
}

func NewAnalyticsService(db *gorm.DB, fullRepair bool) *AnalyticsService {
	return &AnalyticsService{db: db, fullRepair: fullRepair, log: logger.WithComponent("analytics")}
}

// Summarize returns counts and USD totals for invoices matching f.
func (s *AnalyticsService) Summarize(ctx context.Context, f InvoiceFilter) (*models.InvoiceSummary, error) {
	const op = "services.AnalyticsService.Summarize"

	if err := s.repairScope(ctx, f); err != nil {
		return nil, fmt.Errorf("%s: repair: %w", op, err)
	}

	base := func() *gorm.DB {
		return f.apply(s.db.WithContext(ctx).Model(&models.Invoice{}))
	}

	summary := &models.InvoiceSummary{}
	if err := base().Count(&summary.TotalInvoices).Error; err != nil {
		return nil, fmt.Errorf("%s: count: %w", op, err)
	}
	if err := base().Select("COALESCE(SUM(to_usd), 0)").Row().Scan(&summary.TotalAmount); err != nil {
		return nil, fmt.Errorf("%s: total: %w", op, err)
	}

	types := []models.TypeBreakdown{}
	err := base().
		Select("invoice_type AS type, COUNT(*) AS count, COALESCE(SUM(to_usd), 0) AS amount").
		Group("invoice_type").
		Order("COUNT(*) DESC, invoice_type ASC").
		Scan(&types).Error
	if err != nil {
		return nil, fmt.Errorf("%s: types: %w", op, err)
	}

	months := []models.MonthlyTotal{}
	err = base().
		Select("SUBSTR(invoice_date, 1, 7) AS month, COALESCE(SUM(to_usd), 0) AS amount").
		Group("SUBSTR(invoice_date, 1, 7)").
		Order("SUBSTR(invoice_date, 1, 7) ASC").
		Scan(&months).Error
	if err != nil {
		return nil, fmt.Errorf("%s: months: %w", op, err)
	}

	summary.InvoiceTypes = nonNil(types)
	summary.MonthlyTotals = nonNil(months)
	return summary, nil
}

type vendorRow struct {
	VendorName      string  `gorm:"column:vendor_name"`
	TotalInvoices   int64   `gorm:"column:total_invoices"`
	TotalAmountUSD  float64 `gorm:"column:total_amount_usd"`
	LastInvoiceDate string  `gorm:"column:last_invoice_date"`
}

type vendorCurrency struct {
	VendorName   string `gorm:"column:vendor_name"`
	CurrencyCode string `gorm:"column:currency_code"`
}

// VendorSummary returns one row per vendor, largest USD total first.
func (s *AnalyticsService) VendorSummary(ctx context.Context) ([]models.VendorSummary, error) {
	const op = "services.AnalyticsService.VendorSummary"

	var rows []vendorRow
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("vendor_name, COUNT(*) AS total_invoices, COALESCE(SUM(to_usd), 0) AS total_amount_usd, MAX(invoice_date) AS last_invoice_date").
		Group("vendor_name").
		Order("COALESCE(SUM(to_usd), 0) DESC, vendor_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: totals: %w", op, err)
	}

	var pairs []vendorCurrency
	err = s.db.WithContext(ctx).Model(&models.Invoice{}).
		Distinct("vendor_name", "currency_code").
		Order("vendor_name ASC, currency_code ASC").
		Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("%s: currencies: %w", op, err)
	}
	currencies := make(map[string][]string, len(rows))
	for _, p := range pairs {
		currencies[p.VendorName] = append(currencies[p.VendorName], p.CurrencyCode)
	}

	out := make([]models.VendorSummary, 0, len(rows))
	for _, r := range rows {
		cs := currencies[r.VendorName]
		if cs == nil {
			cs = []string{}
		}
		out = append(out, models.VendorSummary{
			VendorName:      r.VendorName,
			TotalInvoices:   r.TotalInvoices,
			TotalAmountUSD:  r.TotalAmountUSD,
			LastInvoiceDate: r.LastInvoiceDate,
			Currencies:      cs,
		})
	}
	return out, nil
}

// VendorList returns the distinct vendor names in ascending order.
func (s *AnalyticsService) VendorList(ctx context.Context) ([]string, error) {
	names := []string{}
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Distinct().
		Order("vendor_name ASC").
		Pluck("vendor_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("services.AnalyticsService.VendorList: %w", err)
	}
	return nonNil(names), nil
}

// repairScope fixes drifted amounts on the invoices a summary is about to read.
func (s *AnalyticsService) repairScope(ctx context.Context, f InvoiceFilter) error {
	var invoices []models.Invoice
	err := f.apply(s.db.WithContext(ctx).Model(&models.Invoice{})).
		Preload("Lines").
		Find(&invoices).Error
	if err != nil {
		return err
	}

	repaired := 0
	for i := range invoices {
		inv := &invoices[i]

		var cols map[string]any
		if s.fullRepair {
			header, changed := Reconcile(inv, "")
			if !changed {
				continue
			}
			cols = derivedColumns(header)
		} else {
			total, drifted := amountDrifted(inv)
			if !drifted {
				continue
			}
			cols = map[string]any{"invoice_amount": total}
		}

		cols["revision"] = gorm.Expr("revision + 1")
		res := s.db.WithContext(ctx).Model(&models.Invoice{}).
			Where("invoice_num = ? AND revision = ?", inv.Header.InvoiceNum, inv.Revision).
			Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			repaired++
		}
	}
	if repaired > 0 {
		s.log.Debug().Int("repaired", repaired).Msg("amounts repaired before summary")
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
