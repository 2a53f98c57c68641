package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	maxUpdateAttempts = 3
	repairBatchSize   = 200
)

// InvoiceService is the invoice repository. Every read reconciles the header
// against its lines and writes the correction back before returning.
type InvoiceService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db, log: logger.WithComponent("invoices")}
}

// RepairReport summarises a RepairAll run.
type RepairReport struct {
	Scanned   int `json:"scanned"`
	Repaired  int `json:"repaired"`
	Conflicts int `json:"conflicts"`
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_number ASC, id ASC")
}

// List returns one page of invoices matching f, newest first, plus the total
// match count. A limit of zero or less returns every match.
func (s *InvoiceService) List(ctx context.Context, page, limit int, f InvoiceFilter) ([]models.Invoice, int64, error) {
	const op = "services.InvoiceService.List"

	filtered := func() *gorm.DB {
		return f.apply(s.db.WithContext(ctx).Model(&models.Invoice{}))
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	q := filtered().Preload("Lines", orderLines).Order("invoice_date DESC, invoice_num ASC")
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * limit).Limit(limit)
	}

	invoices := []models.Invoice{}
	if err := q.Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("%s: find: %w", op, err)
	}
	for i := range invoices {
		s.reconcile(ctx, &invoices[i])
	}
	return invoices, total, nil
}

// Get returns the invoice with the given number, reconciled.
func (s *InvoiceService) Get(ctx context.Context, invoiceNum string) (*models.Invoice, error) {
	inv, err := s.load(ctx, invoiceNum)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, inv)
	return inv, nil
}

func (s *InvoiceService) load(ctx context.Context, invoiceNum string) (*models.Invoice, error) {
	const op = "services.InvoiceService.load"

	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Lines", orderLines).
		Where("invoice_num = ?", invoiceNum).
		Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &inv, nil
}

// UpdateHeader merges patch into the stored header, recomputes the derived
// fields and persists the result. Lines are never touched.
func (s *InvoiceService) UpdateHeader(ctx context.Context, invoiceNum string, patch HeaderPatch) (*models.Invoice, error) {
	const op = "services.InvoiceService.UpdateHeader"

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		inv, err := s.load(ctx, invoiceNum)
		if err != nil {
			return nil, err
		}

		merged := patch.Apply(inv.Header)
		header, _ := Reconcile(&models.Invoice{Header: merged, Lines: inv.Lines}, merged.CurrencyCode)

		ok, err := s.persist(ctx, invoiceNum, inv.Revision, headerColumns(header))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			inv.Header = header
			inv.Revision++
			s.log.Info().Str("invoice_num", invoiceNum).Msg("invoice header updated")
			return inv, nil
		}
		s.log.Debug().Str("invoice_num", invoiceNum).Int("attempt", attempt).Msg("revision conflict, retrying")
	}
	return nil, ErrConflict
}

// RepairAll reconciles every stored invoice in batches.
func (s *InvoiceService) RepairAll(ctx context.Context) (RepairReport, error) {
	const op = "services.InvoiceService.RepairAll"

	var report RepairReport
	var batch []models.Invoice
	res := s.db.WithContext(ctx).
		Preload("Lines", orderLines).
		FindInBatches(&batch, repairBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				report.Scanned++
				inv := &batch[i]
				header, changed := Reconcile(inv, "")
				if !changed {
					continue
				}
				ok, err := s.persist(ctx, header.InvoiceNum, inv.Revision, derivedColumns(header))
				if err != nil {
					return err
				}
				if ok {
					report.Repaired++
				} else {
					report.Conflicts++
				}
			}
			return ctx.Err()
		})
	if res.Error != nil {
		return report, fmt.Errorf("%s: %w", op, res.Error)
	}
	s.log.Info().
		Int("scanned", report.Scanned).
		Int("repaired", report.Repaired).
		Int("conflicts", report.Conflicts).
		Msg("repair finished")
	return report, nil
}

// reconcile corrects inv in place and writes the correction back. A failed
// or lost write only costs a repeat on the next read.
func (s *InvoiceService) reconcile(ctx context.Context, inv *models.Invoice) {
	header, changed := Reconcile(inv, "")
	if !changed {
		return
	}
	inv.Header = header

	ok, err := s.persist(ctx, header.InvoiceNum, inv.Revision, derivedColumns(header))
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("invoice_num", header.InvoiceNum).Msg("write-back failed")
	case !ok:
		s.log.Debug().Str("invoice_num", header.InvoiceNum).Msg("write-back lost to a newer revision")
	default:
		inv.Revision++
	}
}

// persist applies cols if the stored revision still equals rev.
// It reports false when another writer got there first.
func (s *InvoiceService) persist(ctx context.Context, invoiceNum string, rev int64, cols map[string]any) (bool, error) {
	cols["revision"] = gorm.Expr("revision + 1")
	res := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("invoice_num = ? AND revision = ?", invoiceNum, rev).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
