package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/revenue"
)

// Dashboard содержит сводные показатели для главной страницы.
// OrdersByStatus считает только заказы, созданные в текущем месяце.
type Dashboard struct {
	OrdersByStatus map[model.OrderStatus]int `json:"ordersByStatus"`
	TodayIncome    decimal.Decimal           `json:"todayIncome"`
	MonthIncome    decimal.Decimal           `json:"monthIncome"`
	ActiveRentals  int                       `json:"activeRentals"`
	OverdueRentals int                       `json:"overdueRentals"`
	UpcomingPickup int                       `json:"upcomingPickups"`
}

// BuildDashboard считает сводку по заказам на момент now.
func BuildDashboard(orders []model.Order, now time.Time, r revenue.Resolver) Dashboard {
	loc := r.Location()
	dayStart := StartOfDay(now, loc)
	dayUntil := dayStart.AddDate(0, 0, 1)
	monthStart := startOfMonth(now, loc)
	monthUntil := monthStart.AddDate(0, 1, 0)

	res := Dashboard{
		OrdersByStatus: make(map[model.OrderStatus]int),
		TodayIncome:    decimal.Zero,
		MonthIncome:    decimal.Zero,
	}

	for _, o := range orders {
		if inRange(o.CreatedAt, monthStart, monthUntil) {
			res.OrdersByStatus[o.Status]++
			res.MonthIncome = res.MonthIncome.Add(r.Resolve(o))
		}
		if inRange(o.CreatedAt, dayStart, dayUntil) {
			res.TodayIncome = res.TodayIncome.Add(r.Resolve(o))
		}

		if o.Type != model.OrderTypeRent {
			continue
		}
		switch o.Status {
		case model.OrderStatusPickuped:
			res.ActiveRentals++
			if IsOverdue(o, now) {
				res.OverdueRentals++
			}
		case model.OrderStatusReserved:
			if o.PickupPlanAt != nil && inRange(*o.PickupPlanAt, dayStart, dayUntil) {
				res.UpcomingPickup++
			}
		}
	}

	return res
}

// IsOverdue сообщает, просрочен ли возврат выданного заказа.
func IsOverdue(o model.Order, now time.Time) bool {
	return o.Type == model.OrderTypeRent &&
		o.Status == model.OrderStatusPickuped &&
		o.ReturnPlanAt != nil &&
		o.ReturnPlanAt.Before(now)
}

// CalendarEntry описывает плановое событие по заказу.
type CalendarEntry struct {
	OrderID    int64             `json:"orderId"`
	Number     string            `json:"orderNumber"`
	OutletID   int64             `json:"outletId"`
	CustomerID *int64            `json:"customerId,omitempty"`
	Status     model.OrderStatus `json:"status"`
	At         time.Time         `json:"at"`
}

// CalendarDay содержит плановые выдачи и возвраты за день.
type CalendarDay struct {
	Date    string          `json:"date"`
	Pickups []CalendarEntry `json:"pickups"`
	Returns []CalendarEntry `json:"returns"`
}

// BuildCalendar раскладывает плановые выдачи и возвраты заказов проката по дням месяца.
// Отменённые и завершённые заказы не попадают в календарь.
func BuildCalendar(orders []model.Order, month time.Time, loc *time.Location) []CalendarDay {
	if loc == nil {
		loc = time.UTC
	}
	start := startOfMonth(month, loc)
	end := start.AddDate(0, 1, 0)

	days := make([]CalendarDay, 0, 31)
	index := make(map[string]int, 31)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		index[key] = len(days)
		days = append(days, CalendarDay{
			Date:    key,
			Pickups: []CalendarEntry{},
			Returns: []CalendarEntry{},
		})
	}

	place := func(o model.Order, at *time.Time, pickup bool) {
		if at == nil {
			return
		}
		i, ok := index[at.In(loc).Format("2006-01-02")]
		if !ok {
			return
		}
		e := CalendarEntry{
			OrderID:    o.ID,
			Number:     o.Number,
			OutletID:   o.OutletID,
			CustomerID: o.CustomerID,
			Status:     o.Status,
			At:         *at,
		}
		if pickup {
			days[i].Pickups = append(days[i].Pickups, e)
		} else {
			days[i].Returns = append(days[i].Returns, e)
		}
	}

	for _, o := range orders {
		if o.Type != model.OrderTypeRent {
			continue
		}
		switch o.Status {
		case model.OrderStatusReserved:
			place(o, o.PickupPlanAt, true)
			place(o, o.ReturnPlanAt, false)
		case model.OrderStatusPickuped:
			place(o, o.ReturnPlanAt, false)
		}
	}

	for i := range days {
		sortEntries(days[i].Pickups)
		sortEntries(days[i].Returns)
	}

	return days
}

func sortEntries(entries []CalendarEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entries[i].OrderID < entries[j].OrderID
		}
		return entries[i].At.Before(entries[j].At)
	})
}
