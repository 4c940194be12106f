package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/validation"
)

// OrderItemInput описывает позицию нового заказа. Если цена или залог не заданы,
// они берутся из карточки товара.
type OrderItemInput struct {
	ProductID int64 `validate:"required"`
	Quantity  int   `validate:"gt=0"`
	UnitPrice *decimal.Decimal
	Deposit   *decimal.Decimal
}

// NewOrder содержит данные для оформления заказа.
type NewOrder struct {
	OutletID      int64 `validate:"required"`
	CustomerID    *int64
	Type          model.OrderType  `validate:"required,oneof=RENT SALE"`
	Items         []OrderItemInput `validate:"required,min=1,dive"`
	DepositAmount decimal.Decimal
	PickupPlanAt  *time.Time
	ReturnPlanAt  *time.Time
	Notes         string `validate:"max=2000"`

	PaymentMethod    model.PaymentMethod `validate:"omitempty,oneof=CASH CARD BANK_TRANSFER"`
	PaymentReference string
}

// PickupInput содержит данные выдачи арендованного товара.
type PickupInput struct {
	SecurityDeposit  *decimal.Decimal
	PickedUpAt       *time.Time
	PaymentMethod    model.PaymentMethod `validate:"omitempty,oneof=CASH CARD BANK_TRANSFER"`
	PaymentReference string
}

// ReturnInput содержит данные возврата арендованного товара.
type ReturnInput struct {
	DamageFee     decimal.Decimal
	ReturnedAt    *time.Time
	PaymentMethod model.PaymentMethod `validate:"omitempty,oneof=CASH CARD BANK_TRANSFER"`
}

// CreateOrder оформляет заказ проката или продажи.
// Прокат создаётся в статусе RESERVED, продажа сразу завершается.
func (s *Service) CreateOrder(ctx context.Context, p model.Principal, in NewOrder) (*model.Order, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	outlet, err := s.repo.GetOutlet(ctx, in.OutletID)
	if err != nil {
		return nil, err
	}
	if err := checkOutlet(p, outlet.MerchantID, outlet.ID); err != nil {
		return nil, err
	}

	if in.CustomerID != nil {
		c, err := s.repo.GetCustomer(ctx, *in.CustomerID)
		if err != nil {
			return nil, err
		}
		if c.MerchantID != outlet.MerchantID {
			return nil, fmt.Errorf("%w: customer belongs to another merchant", validation.ErrInvalid)
		}
	}

	if in.Type == model.OrderTypeRent && in.PickupPlanAt != nil && in.ReturnPlanAt != nil &&
		in.ReturnPlanAt.Before(*in.PickupPlanAt) {
		return nil, fmt.Errorf("%w: returnPlanAt before pickupPlanAt", validation.ErrInvalid)
	}

	o := model.Order{
		MerchantID:   outlet.MerchantID,
		OutletID:     outlet.ID,
		CustomerID:   in.CustomerID,
		CreatedBy:    p.UserID,
		Type:         in.Type,
		PickupPlanAt: in.PickupPlanAt,
		ReturnPlanAt: in.ReturnPlanAt,
		Notes:        strings.TrimSpace(in.Notes),
	}

	for _, it := range in.Items {
		prod, err := s.repo.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if prod.MerchantID != outlet.MerchantID {
			return nil, fmt.Errorf("%w: product %d belongs to another merchant", validation.ErrInvalid, prod.ID)
		}

		item := model.OrderItem{
			ProductID: prod.ID,
			Quantity:  it.Quantity,
			UnitPrice: prod.SalePrice,
		}
		if in.Type == model.OrderTypeRent {
			item.UnitPrice = prod.RentPrice
			item.Deposit = prod.Deposit
		}
		if it.UnitPrice != nil {
			item.UnitPrice = *it.UnitPrice
		}
		if it.Deposit != nil && in.Type == model.OrderTypeRent {
			item.Deposit = *it.Deposit
		}
		if item.UnitPrice.IsNegative() || item.Deposit.IsNegative() {
			return nil, fmt.Errorf("%w: negative price for product %d", validation.ErrInvalid, prod.ID)
		}
		item.UnitPrice = item.UnitPrice.Round(2)
		item.Deposit = item.Deposit.Round(2)

		qty := decimal.NewFromInt(int64(it.Quantity))
		item.TotalPrice = item.UnitPrice.Mul(qty)

		o.TotalAmount = o.TotalAmount.Add(item.TotalPrice)
		o.SecurityDeposit = o.SecurityDeposit.Add(item.Deposit.Mul(qty))
		o.Items = append(o.Items, item)
	}

	var initial *model.Payment
	switch in.Type {
	case model.OrderTypeRent:
		o.Status = model.OrderStatusReserved
		o.DepositAmount = in.DepositAmount.Round(2)
		if o.DepositAmount.IsNegative() || o.DepositAmount.GreaterThan(o.TotalAmount) {
			return nil, fmt.Errorf("%w: depositAmount must be between 0 and totalAmount", validation.ErrInvalid)
		}
		if o.DepositAmount.IsPositive() {
			initial = s.newPayment(in.PaymentMethod, in.PaymentReference, model.PaymentTypeDeposit, o.DepositAmount)
		}
	case model.OrderTypeSale:
		o.Status = model.OrderStatusCompleted
		o.PickupPlanAt, o.ReturnPlanAt = nil, nil
		if o.TotalAmount.IsPositive() {
			initial = s.newPayment(in.PaymentMethod, in.PaymentReference, model.PaymentTypeSale, o.TotalAmount)
		}
	}

	created, err := s.repo.CreateOrder(ctx, o, initial)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "order.create", "order", strconv.FormatInt(created.ID, 10), map[string]any{
		"number":      created.Number,
		"orderType":   created.Type,
		"status":      created.Status,
		"totalAmount": created.TotalAmount,
		"deposit":     created.DepositAmount,
	})

	return created, nil
}

// GetOrder возвращает заказ, если он доступен пользователю.
func (s *Service) GetOrder(ctx context.Context, p model.Principal, id int64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOutlet(p, o.MerchantID, o.OutletID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByNumber ищет заказ по номеру. Номер с неверной контрольной цифрой отклоняется без запроса к базе.
func (s *Service) GetOrderByNumber(ctx context.Context, p model.Principal, number string) (*model.Order, error) {
	if !validation.IsValidOrderNumber(number) {
		return nil, fmt.Errorf("%w: bad order number", validation.ErrInvalid)
	}
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := checkOutlet(p, o.MerchantID, o.OutletID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders возвращает заказы по фильтру в пределах доступа пользователя.
func (s *Service) ListOrders(ctx context.Context, p model.Principal, f model.OrderFilter) ([]model.Order, error) {
	var err error
	if f.MerchantID, err = merchantScope(p, f.MerchantID); err != nil {
		return nil, err
	}
	if f.OutletID, err = outletScope(p, f.OutletID); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", validation.ErrInvalid, f.Status)
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown order type %q", validation.ErrInvalid, f.Type)
	}
	return s.repo.ListOrders(ctx, f)
}

// PickupOrder выдаёт арендованный товар клиенту: RESERVED -> PICKUPED.
// При выдаче фиксируется залог и принимаются оплата аренды и залог.
func (s *Service) PickupOrder(ctx context.Context, p model.Principal, id int64, in PickupInput) (*model.Order, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	o, err := s.rentOrderFor(ctx, p, id, model.OrderStatusPickuped)
	if err != nil {
		return nil, err
	}

	security := o.SecurityDeposit
	if in.SecurityDeposit != nil {
		security = in.SecurityDeposit.Round(2)
	}
	if security.IsNegative() {
		return nil, fmt.Errorf("%w: securityDeposit must not be negative", validation.ErrInvalid)
	}

	pickedUpAt := s.now()
	if in.PickedUpAt != nil {
		pickedUpAt = *in.PickedUpAt
	}

	err = s.repo.UpdateOrderStatus(ctx, o.ID, repository.StatusChange{
		From:            o.Status,
		To:              model.OrderStatusPickuped,
		PickedUpAt:      &pickedUpAt,
		SecurityDeposit: &security,
	})
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatusPickuped
	o.PickedUpAt = &pickedUpAt
	o.SecurityDeposit = security

	if fee := o.TotalAmount.Sub(o.DepositAmount); fee.IsPositive() {
		s.addOrderPayment(ctx, o.ID, in.PaymentMethod, in.PaymentReference, model.PaymentTypeRentalFee, fee)
	}
	if security.IsPositive() {
		s.addOrderPayment(ctx, o.ID, in.PaymentMethod, securityReference(in.PaymentReference), model.PaymentTypeSecurityDeposit, security)
	}

	s.record(ctx, "order.pickup", "order", strconv.FormatInt(o.ID, 10), map[string]any{
		"securityDeposit": security,
		"pickedUpAt":      pickedUpAt,
	})

	return o, nil
}

// ReturnOrder принимает товар обратно: PICKUPED -> RETURNED.
// Сбор за повреждение удерживается из залога, остаток залога возвращается клиенту.
func (s *Service) ReturnOrder(ctx context.Context, p model.Principal, id int64, in ReturnInput) (*model.Order, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	o, err := s.rentOrderFor(ctx, p, id, model.OrderStatusReturned)
	if err != nil {
		return nil, err
	}

	damage := in.DamageFee.Round(2)
	if damage.IsNegative() {
		return nil, fmt.Errorf("%w: damageFee must not be negative", validation.ErrInvalid)
	}
	if damage.GreaterThan(o.SecurityDeposit) {
		return nil, fmt.Errorf("%w: damageFee exceeds securityDeposit", validation.ErrInvalid)
	}

	returnedAt := s.now()
	if in.ReturnedAt != nil {
		returnedAt = *in.ReturnedAt
	}
	if o.PickedUpAt != nil && returnedAt.Before(*o.PickedUpAt) {
		return nil, fmt.Errorf("%w: returnedAt is before pickedUpAt", validation.ErrInvalid)
	}

	err = s.repo.UpdateOrderStatus(ctx, o.ID, repository.StatusChange{
		From:       o.Status,
		To:         model.OrderStatusReturned,
		ReturnedAt: &returnedAt,
		DamageFee:  &damage,
	})
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatusReturned
	o.ReturnedAt = &returnedAt
	o.DamageFee = damage

	if refund := o.SecurityDeposit.Sub(damage); refund.IsPositive() {
		s.addOrderPayment(ctx, o.ID, in.PaymentMethod, "", model.PaymentTypeRefund, refund)
	}

	s.record(ctx, "order.return", "order", strconv.FormatInt(o.ID, 10), map[string]any{
		"damageFee":  damage,
		"returnedAt": returnedAt,
	})

	return o, nil
}

// CompleteOrder закрывает возвращённый заказ: RETURNED -> COMPLETED.
func (s *Service) CompleteOrder(ctx context.Context, p model.Principal, id int64) (*model.Order, error) {
	return s.simpleTransition(ctx, p, id, model.OrderStatusCompleted, "order.complete")
}

// CancelOrder отменяет активный заказ.
func (s *Service) CancelOrder(ctx context.Context, p model.Principal, id int64) (*model.Order, error) {
	return s.simpleTransition(ctx, p, id, model.OrderStatusCancelled, "order.cancel")
}

// CancelStaleReservations отменяет резервы, которые не выданы дольше допустимого срока.
func (s *Service) CancelStaleReservations(ctx context.Context) (int, error) {
	before := s.now().Add(-s.reservationGrace)

	ids, err := s.repo.CancelStaleReservations(ctx, before)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.record(ctx, "order.expire", "order", strconv.FormatInt(id, 10), map[string]any{
			"pickupPlanBefore": before,
		})
	}

	return len(ids), nil
}

func (s *Service) simpleTransition(ctx context.Context, p model.Principal, id int64, to model.OrderStatus, action string) (*model.Order, error) {
	o, err := s.GetOrder(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	if err := s.repo.UpdateOrderStatus(ctx, o.ID, repository.StatusChange{From: o.Status, To: to}); err != nil {
		return nil, err
	}

	from := o.Status
	o.Status = to
	s.record(ctx, action, "order", strconv.FormatInt(o.ID, 10), map[string]any{
		"from": from,
		"to":   to,
	})

	return o, nil
}

// rentOrderFor загружает заказ проката и проверяет, что его можно перевести в статус to.
func (s *Service) rentOrderFor(ctx context.Context, p model.Principal, id int64, to model.OrderStatus) (*model.Order, error) {
	o, err := s.GetOrder(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if o.Type != model.OrderTypeRent {
		return nil, fmt.Errorf("%w: %s order cannot be %s", ErrInvalidTransition, o.Type, strings.ToLower(string(to)))
	}
	if !model.CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	return o, nil
}

// newPayment готовит платёж. Карточный платёж ожидает подтверждения шлюза,
// если шлюз настроен; остальные способы проводятся сразу.
// securityReference возвращает ссылку платежа залога, отличную от ссылки платы за прокат.
func securityReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	return ref + "-security"
}

func (s *Service) newPayment(method model.PaymentMethod, reference string, ptype model.PaymentType, amount decimal.Decimal) *model.Payment {
	if method == "" {
		method = model.PaymentMethodCash
	}

	p := &model.Payment{
		Amount:    amount,
		Method:    method,
		Type:      ptype,
		Reference: strings.TrimSpace(reference),
	}

	if method == model.PaymentMethodCard && s.gatewayClient != nil {
		if p.Reference == "" {
			p.Reference = uuid.NewString()
		}
		p.Status = model.PaymentStatusPending
		return p
	}

	now := s.now()
	p.Status = model.PaymentStatusCompleted
	p.ProcessedAt = &now
	return p
}

// addOrderPayment записывает платёж, сопровождающий смену статуса.
// Статус заказа уже изменён, поэтому ошибка только логируется.
func (s *Service) addOrderPayment(ctx context.Context, orderID int64, method model.PaymentMethod, reference string, ptype model.PaymentType, amount decimal.Decimal) {
	p := s.newPayment(method, reference, ptype, amount)
	p.OrderID = orderID
	if _, err := s.repo.CreatePayment(ctx, *p); err != nil {
		s.logger.Sugar().Warnw("create payment failed", "order", orderID, "type", ptype, "error", err)
	}
}
