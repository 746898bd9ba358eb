package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"salesboard/internal/engine"
	"salesboard/internal/models"
)

// Sheet names of the exported workbook.
const (
	SheetMonthly     = "Monthly"
	SheetWeekly      = "Weekly"
	SheetStores      = "Stores"
	SheetDepartments = "Departments"
	SheetComparison  = "Comparison"
)

// WriteWorkbook writes the four summary tables, and the comparison when cmp
// is non-nil, as an .xlsx document.
func WriteWorkbook(w io.Writer, d *engine.Dashboard, cmp *models.Comparison) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMonthly); err != nil {
		return err
	}

	monthly := [][]any{{"month_index", "month", "total_sales", "holiday_sales"}}
	for _, m := range d.Monthly() {
		monthly = append(monthly, []any{m.MonthIndex, m.Month, m.TotalSales, m.HolidaySales})
	}
	weekly := [][]any{{"month_index", "month", "date", "week_number", "weekly_sales"}}
	for _, r := range d.Weekly() {
		weekly = append(weekly, []any{r.MonthIndex, r.Month, r.Date, r.WeekNumber, r.WeeklySales})
	}
	stores := [][]any{{"month_index", "month", "store_id", "store", "total_sales"}}
	for _, r := range d.Stores() {
		stores = append(stores, []any{r.MonthIndex, r.Month, r.StoreID, r.Store, r.TotalSales})
	}
	depts := [][]any{{"month_index", "month", "dept_id", "dept", "total_sales"}}
	for _, r := range d.Depts() {
		depts = append(depts, []any{r.MonthIndex, r.Month, r.DeptID, r.Dept, r.TotalSales})
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetMonthly, monthly},
		{SheetWeekly, weekly},
		{SheetStores, stores},
		{SheetDepartments, depts},
	}
	if cmp != nil {
		sheets = append(sheets, struct {
			name string
			rows [][]any
		}{SheetComparison, comparisonRows(cmp)})
	}

	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				return fmt.Errorf("export: new sheet %s: %w", s.name, err)
			}
		}
		if err := writeRows(f, s.name, s.rows); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func comparisonRows(cmp *models.Comparison) [][]any {
	rows := [][]any{
		{"metric", cmp.Current, cmp.Reference, "delta"},
		{"total_sales", cmp.TotalSales.Current, cmp.TotalSales.Reference, cmp.TotalSales.Delta},
		{"holiday_sales", cmp.HolidaySales.Current, cmp.HolidaySales.Reference, cmp.HolidaySales.Delta},
		{"store_count", cmp.StoreCount.Current, cmp.StoreCount.Reference, cmp.StoreCount.Delta},
		{},
		{cmp.Departments.Header},
		{"dept", "current_sales", "reference_sales", "difference"},
	}
	for _, r := range cmp.Departments.Rows {
		row := []any{r.Dept, r.CurrentSales, nil, nil}
		if r.ReferenceSales != nil {
			row[2] = *r.ReferenceSales
		}
		if r.Difference != nil {
			row[3] = *r.Difference
		}
		rows = append(rows, row)
	}
	return rows
}
