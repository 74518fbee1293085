package settlement

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/xuri/excelize/v2"
)

const statementSheet = "Statement"

var statementHeaders = []string{
	"Load", "Leg", "Description", "Category", "Source", "Quantity", "Rate", "Amount", "Locked",
}

// WriteStatement renders a settlement and its rows as an XLSX workbook.
// Rows are grouped by load, manual rows without a load last. Totals are
// the frozen snapshot when present, otherwise the sum of the rows.
func WriteStatement(w io.Writer, st freight.Settlement, payeeName string, payables []freight.Payable) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(statementSheet)
	if err != nil {
		return fmt.Errorf("failed to create statement sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	header := [][2]string{
		{"Statement", st.StatementNumber},
		{"Payee", payeeName},
		{"Payee type", string(st.PayeeType)},
		{"Period", st.PeriodStart.Format("2006-01-02") + " - " + st.PeriodEnd.Format("2006-01-02")},
		{"Status", string(st.Status)},
	}
	for i, kv := range header {
		row := i + 1
		if err := f.SetCellValue(statementSheet, fmt.Sprintf("A%d", row), kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(statementSheet, fmt.Sprintf("B%d", row), kv[1]); err != nil {
			return err
		}
	}

	tableStart := len(header) + 2
	for i, h := range statementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableStart)
		if err := f.SetCellValue(statementSheet, cell, h); err != nil {
			return err
		}
	}

	rows := make([]freight.Payable, len(payables))
	copy(rows, payables)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.LoadID == "") != (b.LoadID == "") {
			return b.LoadID == ""
		}
		if a.LoadID != b.LoadID {
			return a.LoadID < b.LoadID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	sum := decimal.Zero
	for i, p := range rows {
		r := tableStart + 1 + i
		values := []any{
			p.LoadID,
			p.LegID,
			p.Description,
			string(p.Category),
			string(p.SourceType),
			p.Quantity.InexactFloat64(),
			p.Rate.InexactFloat64(),
			p.TotalAmount.InexactFloat64(),
			p.IsLocked,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			if err := f.SetCellValue(statementSheet, cell, v); err != nil {
				return err
			}
		}
		sum = sum.Add(p.TotalAmount)
	}

	gross := sum.Round(2)
	if st.GrossTotal != nil {
		gross = *st.GrossTotal
	}
	totalRow := tableStart + len(rows) + 2
	if err := f.SetCellValue(statementSheet, fmt.Sprintf("G%d", totalRow), "Gross"); err != nil {
		return err
	}
	if err := f.SetCellValue(statementSheet, fmt.Sprintf("H%d", totalRow), gross.InexactFloat64()); err != nil {
		return err
	}
	if st.TotalManualAdjustments != nil {
		if err := f.SetCellValue(statementSheet, fmt.Sprintf("G%d", totalRow+1), "Adjustments"); err != nil {
			return err
		}
		if err := f.SetCellValue(statementSheet, fmt.Sprintf("H%d", totalRow+1), st.TotalManualAdjustments.InexactFloat64()); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(statementSheet, "C", "C", 40)
	return f.Write(w)
}
