// Package testutil provides an in-memory invoice store and fixtures for tests.
package testutil

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/diewo77/ap-invoices/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var dsnReplacer = strings.NewReplacer("/", "_", " ", "_")

// NewDB opens a migrated in-memory sqlite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + dsnReplacer.Replace(t.Name()) + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(&models.Invoice{}, &models.InvoiceLine{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// Invoice builds an invoice with one line per amount. InvoiceAmount is the
// line total unless overridden by the caller; ToUSD is left unset.
func Invoice(num, date, vendor, currency string, typ models.InvoiceType, lineAmounts ...float64) models.Invoice {
	inv := models.Invoice{
		Header: models.InvoiceHeader{
			InvoiceNum:       num,
			OrganizationCode: 101,
			InvoiceDate:      date,
			VendorName:       vendor,
			VendorSiteCode:   "MAIN",
			CurrencyCode:     currency,
			PaymentTerm:      "NET30",
			InvoiceType:      typ,
		},
	}
	var total float64
	for i, a := range lineAmounts {
		inv.Lines = append(inv.Lines, models.InvoiceLine{
			LineNumber:  i + 1,
			LineType:    "ITEM",
			Description: "line",
			Quantity:    1,
			UnitPrice:   a,
			LineAmount:  a,
		})
		total += a
	}
	inv.Header.InvoiceAmount = total
	return inv
}

// Insert stores the invoices, failing the test on error.
func Insert(t testing.TB, conn *gorm.DB, invoices ...models.Invoice) {
	t.Helper()
	for i := range invoices {
		if err := conn.Create(&invoices[i]).Error; err != nil {
			t.Fatalf("insert %s: %v", invoices[i].Header.InvoiceNum, err)
		}
	}
}

// Stored reads the raw row for num without reconciling it.
func Stored(t testing.TB, conn *gorm.DB, num string) models.Invoice {
	t.Helper()
	var inv models.Invoice
	if err := conn.Preload("Lines").Where("invoice_num = ?", num).Take(&inv).Error; err != nil {
		t.Fatalf("load %s: %v", num, err)
	}
	return inv
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// InterceptInvoiceUpdates hooks every UPDATE on the invoices table until the
// test ends. With a nil err the statement matches no rows, as if another
// writer had bumped the revision first; otherwise it fails with err.
// The returned counter reports how many updates were intercepted.
func InterceptInvoiceUpdates(t testing.TB, conn *gorm.DB, err error) *atomic.Int32 {
	t.Helper()
	var hits atomic.Int32
	name := "testutil:intercept_invoice_updates"
	cbErr := conn.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != "invoices" {
			return
		}
		hits.Add(1)
		if err != nil {
			_ = tx.AddError(err)
			return
		}
		tx.Statement.AddClause(clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "1 = 0"}}})
	})
	if cbErr != nil {
		t.Fatalf("register update callback: %v", cbErr)
	}
	t.Cleanup(func() { _ = conn.Callback().Update().Remove(name) })
	return &hits
}
