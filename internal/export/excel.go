// Package export writes invoices to an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/diewo77/ap-invoices/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	HeadersSheet = "Invoice Headers"
	LinesSheet   = "Invoice Lines"

	// Filename is the download name used by the export endpoint.
	Filename    = "invoices_export.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	headerColumns = []any{
		"Invoice Number", "Invoice Date", "Vendor", "Vendor Site", "Amount",
		"Currency", "Payment Terms", "Type", "Organization Code",
	}
	lineColumns = []any{
		"Invoice Number", "Line Number", "Line Type", "Description",
		"Quantity", "Unit Price", "Line Amount",
	}
)

// WriteInvoices writes a two-sheet workbook: one row per invoice header and
// one row per invoice line.
func WriteInvoices(w io.Writer, invoices []models.Invoice) error {
	const op = "export.WriteInvoices"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", HeadersSheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.NewSheet(LinesSheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%s: style: %w", op, err)
	}

	headers := make([][]any, 0, len(invoices))
	var lines [][]any
	for _, inv := range invoices {
		h := inv.Header
		headers = append(headers, []any{
			h.InvoiceNum, h.InvoiceDate, h.VendorName, h.VendorSiteCode, h.InvoiceAmount,
			h.CurrencyCode, string(h.PaymentTerm), string(h.InvoiceType), h.OrganizationCode,
		})
		for _, l := range inv.Lines {
			lines = append(lines, []any{
				h.InvoiceNum, l.LineNumber, l.LineType, l.Description,
				l.Quantity, l.UnitPrice, l.LineAmount,
			})
		}
	}

	if err := writeSheet(f, HeadersSheet, headerColumns, headers, bold); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := writeSheet(f, LinesSheet, lineColumns, lines, bold); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, columns []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return fmt.Errorf("sheet %s: header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("sheet %s: style: %w", sheet, err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("sheet %s: row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("sheet %s: width: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
