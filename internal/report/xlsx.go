// Package report выгружает отчёты в XLSX.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/rentshop/internal/analytics"
)

// ContentType задаёт MIME-тип XLSX-файла.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const incomeSheet = "Income"

var incomeHeadings = []any{"Period", "Start", "End", "Real income", "Future income", "Orders"}

// IncomeFileName возвращает имя файла выгрузки отчёта о доходе.
func IncomeFileName(r *analytics.IncomeReport) string {
	return fmt.Sprintf("income_%s_%s_%s.xlsx", r.Granularity, r.From.Format("20060102"), r.To.Format("20060102"))
}

// WriteIncomeXLSX записывает отчёт о доходе в w: строка на интервал и итоговая строка.
func WriteIncomeXLSX(w io.Writer, r *analytics.IncomeReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", incomeSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(incomeSheet, "A1", &incomeHeadings); err != nil {
		return fmt.Errorf("write headings: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	row := 2
	for _, b := range r.Buckets {
		values := []any{
			b.Period,
			b.Start.Format("2006-01-02 15:04:05"),
			b.End.Format("2006-01-02 15:04:05"),
			b.Income.InexactFloat64(),
			b.FutureIncome.InexactFloat64(),
			b.OrderCount,
		}
		if err := setRow(f, row, values); err != nil {
			return err
		}
		row++
	}

	totals := []any{"Total", "", "", r.TotalIncome.InexactFloat64(), r.TotalFutureIncome.InexactFloat64(), r.TotalOrders}
	if err := setRow(f, row, totals); err != nil {
		return err
	}

	if err := f.SetCellStyle(incomeSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style headings: %w", err)
	}
	if err := f.SetCellStyle(incomeSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}
	if err := f.SetCellStyle(incomeSheet, "D2", fmt.Sprintf("E%d", row), money); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}
	if err := f.SetColWidth(incomeSheet, "A", "F", 20); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(incomeSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
