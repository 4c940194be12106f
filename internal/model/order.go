package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType описывает тип заказа.
type OrderType string

const (
	OrderTypeRent OrderType = "RENT"
	OrderTypeSale OrderType = "SALE"
)

// Valid сообщает, является ли тип заказа известным.
func (t OrderType) Valid() bool {
	return t == OrderTypeRent || t == OrderTypeSale
}

// OrderStatus описывает этап жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusReserved  OrderStatus = "RESERVED"
	OrderStatusPickuped  OrderStatus = "PICKUPED"
	OrderStatusReturned  OrderStatus = "RETURNED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid сообщает, является ли статус заказа известным.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusReserved, OrderStatusPickuped, OrderStatusReturned,
		OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Active сообщает, удерживает ли заказ в этом статусе товар на складе.
func (s OrderStatus) Active() bool {
	return s == OrderStatusReserved || s == OrderStatusPickuped
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusReserved: {OrderStatusPickuped, OrderStatusCancelled},
	OrderStatusPickuped: {OrderStatusReturned, OrderStatusCancelled},
	OrderStatusReturned: {OrderStatusCompleted},
}

// CanTransition сообщает, допустим ли переход заказа из статуса from в статус to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Order описывает заказ проката или продажи.
type Order struct {
	ID              int64           `json:"id"`
	Number          string          `json:"number"`
	MerchantID      int64           `json:"merchantId"`
	OutletID        int64           `json:"outletId"`
	CustomerID      *int64          `json:"customerId,omitempty"`
	CreatedBy       int64           `json:"createdBy"`
	Type            OrderType       `json:"orderType"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DepositAmount   decimal.Decimal `json:"depositAmount"`
	SecurityDeposit decimal.Decimal `json:"securityDeposit"`
	DamageFee       decimal.Decimal `json:"damageFee"`
	PickupPlanAt    *time.Time      `json:"pickupPlanAt,omitempty"`
	ReturnPlanAt    *time.Time      `json:"returnPlanAt,omitempty"`
	PickedUpAt      *time.Time      `json:"pickedUpAt,omitempty"`
	ReturnedAt      *time.Time      `json:"returnedAt,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderItem описывает позицию заказа.
type OrderItem struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"orderId"`
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Deposit    decimal.Decimal `json:"deposit"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// OrderFilter задаёт условия выборки заказов.
type OrderFilter struct {
	MerchantID *int64
	OutletID   *int64
	CustomerID *int64
	Status     OrderStatus
	Type       OrderType
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// PeriodOrdersFilter задаёт выборку заказов для отчётов за период [From, Until):
// заказы, созданные в периоде, и активные заказы с плановой выдачей в периоде.
type PeriodOrdersFilter struct {
	MerchantID *int64
	OutletID   *int64
	From       time.Time
	Until      time.Time
}
