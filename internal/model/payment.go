package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod описывает способ оплаты.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// PaymentType описывает назначение платежа.
type PaymentType string

const (
	PaymentTypeDeposit         PaymentType = "DEPOSIT"
	PaymentTypeRentalFee       PaymentType = "RENTAL_FEE"
	PaymentTypeSecurityDeposit PaymentType = "SECURITY_DEPOSIT"
	PaymentTypeDamageFee       PaymentType = "DAMAGE_FEE"
	PaymentTypeRefund          PaymentType = "REFUND"
	PaymentTypeSale            PaymentType = "SALE"
)

// PaymentStatus описывает статус обработки платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment описывает платёж по заказу.
type Payment struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Type        PaymentType     `json:"type"`
	Status      PaymentStatus   `json:"status"`
	Reference   string          `json:"reference,omitempty"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AuditLog описывает запись журнала изменений.
type AuditLog struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"requestId"`
	UserID     *int64    `json:"userId,omitempty"`
	MerchantID *int64    `json:"merchantId,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Details    string    `json:"details,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuditFilter задаёт условия выборки журнала изменений.
type AuditFilter struct {
	MerchantID *int64
	UserID     *int64
	Action     string
	EntityType string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
