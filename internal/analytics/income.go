// Package analytics строит отчёты по заказам: доход за период, сводку и календарь выдач.
package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/revenue"
)

// Granularity задаёт шаг группировки отчёта.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

const (
	maxDayBuckets   = 366
	maxMonthBuckets = 120
)

var (
	// ErrInvalidGranularity возвращается для неизвестного шага группировки.
	ErrInvalidGranularity = errors.New("invalid granularity")
	// ErrInvalidPeriod возвращается, если начало периода позже конца.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrPeriodTooLong возвращается, если период содержит слишком много интервалов.
	ErrPeriodTooLong = errors.New("period too long")
)

// ParseGranularity разбирает шаг группировки; пустая строка означает группировку по дням.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", GranularityDay:
		return GranularityDay, nil
	case GranularityMonth:
		return GranularityMonth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

// Bucket содержит агрегаты за один интервал отчёта.
type Bucket struct {
	Period       string          `json:"period"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Until        time.Time       `json:"-"`
	Income       decimal.Decimal `json:"realIncome"`
	FutureIncome decimal.Decimal `json:"futureIncome"`
	OrderCount   int             `json:"orderCount"`
}

// IncomeReport содержит доход за период с разбивкой по интервалам.
type IncomeReport struct {
	Granularity       Granularity     `json:"groupBy"`
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	Buckets           []Bucket        `json:"data"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	TotalFutureIncome decimal.Decimal `json:"totalFutureIncome"`
	TotalOrders       int             `json:"totalOrders"`
}

// StartOfDay возвращает начало календарного дня t в часовом поясе loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, dd := t.In(loc).Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}

// EndOfDay возвращает момент 23:59:59.999 календарного дня t в часовом поясе loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	y, m, _ := t.In(loc).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

// Buckets разбивает период [from, to] на интервалы. End показывает 23:59:59.999 последнего
// дня интервала, а принадлежность момента интервалу проверяется по [Start, Until).
func Buckets(from, to time.Time, g Granularity, loc *time.Location) ([]Bucket, error) {
	if loc == nil {
		loc = time.UTC
	}
	if to.Before(from) {
		return nil, ErrInvalidPeriod
	}

	var (
		start time.Time
		next  func(time.Time) time.Time
		label string
		limit int
	)

	switch g {
	case GranularityDay:
		start = StartOfDay(from, loc)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
		label = "2006-01-02"
		limit = maxDayBuckets
	case GranularityMonth:
		start = startOfMonth(from, loc)
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		label = "2006-01"
		limit = maxMonthBuckets
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}

	end := EndOfDay(to, loc)
	var res []Bucket
	for s := start; !s.After(end); s = next(s) {
		if len(res) == limit {
			return nil, ErrPeriodTooLong
		}
		res = append(res, Bucket{
			Period:       s.Format(label),
			Start:        s,
			End:          next(s).Add(-time.Millisecond),
			Until:        next(s),
			Income:       decimal.Zero,
			FutureIncome: decimal.Zero,
		})
	}

	return res, nil
}

// inRange проверяет t по полуоткрытому интервалу [start, until).
func inRange(t, start, until time.Time) bool {
	return !t.Before(start) && t.Before(until)
}

// BuildIncomeReport группирует заказы по интервалам. Доход и число заказов считаются
// по дате создания заказа, будущий доход по плановой дате выдачи активных заказов.
func BuildIncomeReport(orders []model.Order, from, to time.Time, g Granularity, r revenue.Resolver) (*IncomeReport, error) {
	buckets, err := Buckets(from, to, g, r.Location())
	if err != nil {
		return nil, err
	}

	report := &IncomeReport{
		Granularity:       g,
		From:              buckets[0].Start,
		To:                buckets[len(buckets)-1].End,
		TotalIncome:       decimal.Zero,
		TotalFutureIncome: decimal.Zero,
	}

	for _, o := range orders {
		for i := range buckets {
			b := &buckets[i]
			if inRange(o.CreatedAt, b.Start, b.Until) {
				b.Income = b.Income.Add(r.Resolve(o))
				b.OrderCount++
			}
			if o.Status.Active() && o.PickupPlanAt != nil && inRange(*o.PickupPlanAt, b.Start, b.Until) {
				b.FutureIncome = b.FutureIncome.Add(o.TotalAmount)
			}
		}
	}

	for _, b := range buckets {
		report.TotalIncome = report.TotalIncome.Add(b.Income)
		report.TotalFutureIncome = report.TotalFutureIncome.Add(b.FutureIncome)
		report.TotalOrders += b.OrderCount
	}
	report.Buckets = buckets

	return report, nil
}
