package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/rentshop/internal/analytics"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/revenue"
)

func TestWriteIncomeXLSX(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{Type: model.OrderTypeSale, Status: model.OrderStatusCompleted, TotalAmount: decimal.NewFromInt(500), CreatedAt: created},
		{Type: model.OrderTypeRent, Status: model.OrderStatusReserved, TotalAmount: decimal.NewFromInt(200),
			DepositAmount: decimal.RequireFromString("50.25"), CreatedAt: created.AddDate(0, 0, 1)},
	}

	rep, err := analytics.BuildIncomeReport(orders, created, created.AddDate(0, 0, 1), analytics.GranularityDay, revenue.NewResolver(time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteIncomeXLSX(&buf, rep))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(incomeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"Period", "Start", "End", "Real income", "Future income", "Orders"}, rows[0])
	assert.Equal(t, "2024-01-01", rows[1][0])
	assert.Equal(t, "1", rows[1][5])
	assert.Equal(t, "2024-01-02", rows[2][0])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "2", rows[3][5])

	raw, err := f.GetCellValue(incomeSheet, "D4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "550.25", raw)
}

func TestIncomeFileName(t *testing.T) {
	rep := &analytics.IncomeReport{
		Granularity: analytics.GranularityMonth,
		From:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
	}
	assert.Equal(t, "income_month_20240101_20240331.xlsx", IncomeFileName(rep))
}
