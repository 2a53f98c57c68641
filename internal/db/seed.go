package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	applog "github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/models"
	"gorm.io/gorm"
)

// SeedReport counts what a Seed run did.
type SeedReport struct {
	Inserted int
	Skipped  int
}

// Seed loads a JSON array of invoices in the API shape and inserts every
// invoice whose number is not already stored. Stored amounts are kept as-is;
// reads reconcile them.
func Seed(ctx context.Context, conn *gorm.DB, r io.Reader) (SeedReport, error) {
	var report SeedReport

	var invoices []models.Invoice
	if err := json.NewDecoder(r).Decode(&invoices); err != nil {
		return report, fmt.Errorf("db.Seed: decode: %w", err)
	}

	log := applog.WithComponent("seed")
	for i := range invoices {
		inv := &invoices[i]
		if inv.Header.InvoiceNum == "" {
			return report, fmt.Errorf("db.Seed: entry %d has no invoice_num", i)
		}

		var existing models.Invoice
		err := conn.WithContext(ctx).Where("invoice_num = ?", inv.Header.InvoiceNum).Take(&existing).Error
		if err == nil {
			report.Skipped++
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return report, fmt.Errorf("db.Seed: lookup %s: %w", inv.Header.InvoiceNum, err)
		}

		if err := conn.WithContext(ctx).Create(inv).Error; err != nil {
			return report, fmt.Errorf("db.Seed: insert %s: %w", inv.Header.InvoiceNum, err)
		}
		report.Inserted++
	}

	log.Info().Int("inserted", report.Inserted).Int("skipped", report.Skipped).Msg("seed finished")
	return report, nil
}
