package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/rentshop/internal/gateway"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/validation"
)

const paymentSyncBatch = 100

// NewPaymentInput содержит данные платежа, принимаемого по заказу вручную.
type NewPaymentInput struct {
	Amount    decimal.Decimal
	Method    model.PaymentMethod `validate:"required,oneof=CASH CARD BANK_TRANSFER"`
	Type      model.PaymentType   `validate:"required,oneof=DEPOSIT RENTAL_FEE SECURITY_DEPOSIT DAMAGE_FEE REFUND SALE"`
	Reference string              `validate:"max=128"`
}

// AddPayment принимает платёж по заказу.
func (s *Service) AddPayment(ctx context.Context, p model.Principal, orderID int64, in NewPaymentInput) (*model.Payment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", validation.ErrInvalid)
	}

	o, err := s.GetOrder(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == model.OrderStatusCancelled && in.Type != model.PaymentTypeRefund {
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}

	pay := s.newPayment(in.Method, in.Reference, in.Type, in.Amount.Round(2))
	pay.OrderID = o.ID

	created, err := s.repo.CreatePayment(ctx, *pay)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "payment.create", "payment", strconv.FormatInt(created.ID, 10), map[string]any{
		"orderId": o.ID,
		"amount":  created.Amount,
		"method":  created.Method,
		"type":    created.Type,
		"status":  created.Status,
	})

	return created, nil
}

// ListPayments возвращает платежи заказа.
func (s *Service) ListPayments(ctx context.Context, p model.Principal, orderID int64) ([]model.Payment, error) {
	if _, err := s.GetOrder(ctx, p, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByOrder(ctx, orderID)
}

// StartPaymentUpdates запускает фоновый процесс обновления статусов карточных платежей из платёжного шлюза.
// Блокируется до отмены контекста.
func (s *Service) StartPaymentUpdates(ctx context.Context) {
	if s.gatewayClient == nil {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processPaymentBatch(ctx)
		}
	}
}

func (s *Service) processPaymentBatch(ctx context.Context) {
	payments, err := s.repo.GetPaymentsForSync(ctx, paymentSyncBatch)
	if err != nil {
		s.logger.Warn("load pending payments failed", zap.Error(err))
		return
	}

	for _, p := range payments {
		resp, err := s.gatewayClient.GetPaymentStatus(ctx, p.Reference)
		if err != nil {
			var rl *gateway.RateLimitError
			switch {
			case errors.As(err, &rl):
				if !s.waitRetry(ctx, rl.RetryAfter) {
					return
				}
			case errors.Is(err, gateway.ErrUnknownPayment):
			default:
				s.logger.Debug("payment gateway request failed", zap.String("reference", p.Reference), zap.Error(err))
			}
			continue
		}

		status, ok := paymentStatusFromGateway(resp.Status)
		if !ok {
			continue
		}

		now := s.now()
		if err := s.repo.UpdatePaymentStatus(ctx, p.ID, status, &now); err != nil {
			s.logger.Warn("update payment status failed", zap.Int64("payment", p.ID), zap.Error(err))
			continue
		}

		details := map[string]any{
			"reference": p.Reference,
			"status":    status,
		}
		if resp.Amount != nil {
			details["gatewayAmount"] = resp.Amount.StringFixed(2)
		}
		s.record(ctx, "payment.sync", "payment", strconv.FormatInt(p.ID, 10), details)
	}
}

// waitRetry выдерживает паузу, запрошенную шлюзом. Возвращает false, если контекст отменён раньше.
func (s *Service) waitRetry(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// paymentStatusFromGateway сопоставляет статус шлюза со статусом платежа.
// Для промежуточных статусов возвращается false.
func paymentStatusFromGateway(status string) (model.PaymentStatus, bool) {
	switch status {
	case gateway.StatusSucceeded:
		return model.PaymentStatusCompleted, true
	case gateway.StatusDeclined:
		return model.PaymentStatusFailed, true
	case gateway.StatusRefunded:
		return model.PaymentStatusRefunded, true
	default:
		return "", false
	}
}
