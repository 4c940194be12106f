// Package revenue вычисляет фактический доход, который приносит заказ на момент построения отчёта.
package revenue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
)

// Resolver вычисляет доход по заказу. Сравнение календарных дней выполняется
// в часовом поясе отчётов; нулевое значение использует UTC.
type Resolver struct {
	loc *time.Location
}

// NewResolver создаёт Resolver для указанного часового пояса отчётов.
func NewResolver(loc *time.Location) Resolver {
	return Resolver{loc: loc}
}

// Location возвращает часовой пояс, в котором сравниваются календарные дни.
func (r Resolver) Location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// Resolve возвращает доход, признанный по заказу в его текущем статусе.
// Для неизвестных сочетаний типа и статуса возвращается ноль.
func (r Resolver) Resolve(o model.Order) decimal.Decimal {
	switch o.Type {
	case model.OrderTypeSale:
		return o.TotalAmount
	case model.OrderTypeRent:
		return r.resolveRent(o)
	default:
		return decimal.Zero
	}
}

func (r Resolver) resolveRent(o model.Order) decimal.Decimal {
	switch o.Status {
	case model.OrderStatusReserved:
		return o.DepositAmount
	case model.OrderStatusPickuped:
		// остаток к оплате плюс залог, полученный при выдаче
		return o.TotalAmount.Sub(o.DepositAmount).Add(o.SecurityDeposit)
	case model.OrderStatusReturned:
		if o.PickedUpAt != nil && o.ReturnedAt != nil && r.SameDay(*o.PickedUpAt, *o.ReturnedAt) {
			return o.TotalAmount.Sub(o.SecurityDeposit).Add(o.DamageFee)
		}
		return o.SecurityDeposit.Sub(o.DamageFee)
	case model.OrderStatusCompleted, model.OrderStatusCancelled:
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// SameDay сообщает, приходятся ли моменты a и b на один календарный день.
func (r Resolver) SameDay(a, b time.Time) bool {
	loc := r.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Total суммирует доход по списку заказов.
func (r Resolver) Total(orders []model.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(r.Resolve(o))
	}
	return total
}

// Resolve вычисляет доход по заказу, сравнивая дни в UTC.
func Resolve(o model.Order) decimal.Decimal {
	return Resolver{}.Resolve(o)
}
