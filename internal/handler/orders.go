package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/service"
	"github.com/mmeshcher/rentshop/internal/validation"
)

type orderItemRequest struct {
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Deposit   *decimal.Decimal `json:"deposit"`
}

type createOrderRequest struct {
	OutletID         int64               `json:"outletId"`
	CustomerID       *int64              `json:"customerId"`
	OrderType        model.OrderType     `json:"orderType"`
	Items            []orderItemRequest  `json:"items"`
	DepositAmount    decimal.Decimal     `json:"depositAmount"`
	PickupPlanAt     *time.Time          `json:"pickupPlanAt"`
	ReturnPlanAt     *time.Time          `json:"returnPlanAt"`
	Notes            string              `json:"notes"`
	PaymentMethod    model.PaymentMethod `json:"paymentMethod"`
	PaymentReference string              `json:"paymentReference"`
}

// CreateOrder оформляет заказ проката или продажи.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.NewOrder{
		OutletID:         req.OutletID,
		CustomerID:       req.CustomerID,
		Type:             model.OrderType(strings.ToUpper(string(req.OrderType))),
		DepositAmount:    req.DepositAmount,
		PickupPlanAt:     req.PickupPlanAt,
		ReturnPlanAt:     req.ReturnPlanAt,
		Notes:            req.Notes,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.OrderItemInput(it))
	}

	o, err := h.service.CreateOrder(r.Context(), p, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

// GetOrder возвращает заказ.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// GetOrderByNumber ищет заказ по номеру. Номер с неверной контрольной цифрой даёт 422.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	number := strings.TrimSpace(chi.URLParam(r, "number"))
	if !validation.IsValidOrderNumber(number) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	o, err := h.service.GetOrderByNumber(r.Context(), p, number)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// ListOrders возвращает заказы по фильтру из параметров запроса.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	f, err := h.orderFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), p, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) orderFilter(r *http.Request) (model.OrderFilter, error) {
	var (
		f   model.OrderFilter
		err error
	)
	q := r.URL.Query()

	if f.MerchantID, f.OutletID, err = scopeParams(r); err != nil {
		return f, err
	}
	if f.CustomerID, err = queryID(r, "customerId"); err != nil {
		return f, err
	}
	if f.From, err = h.queryTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = h.queryTime(r, "to"); err != nil {
		return f, err
	}
	if f.To != nil && len(q.Get("to")) == len(time.DateOnly) {
		end := f.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		f.To = &end
	}
	if f.Limit, f.Offset, err = pagination(r); err != nil {
		return f, err
	}

	f.Status = model.OrderStatus(strings.ToUpper(q.Get("status")))
	f.Type = model.OrderType(strings.ToUpper(q.Get("orderType")))

	return f, nil
}

type pickupRequest struct {
	SecurityDeposit  *decimal.Decimal    `json:"securityDeposit"`
	PickedUpAt       *time.Time          `json:"pickedUpAt"`
	PaymentMethod    model.PaymentMethod `json:"paymentMethod"`
	PaymentReference string              `json:"paymentReference"`
}

// PickupOrder выдаёт товар по заказу проката.
func (h *Handler) PickupOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req pickupRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.service.PickupOrder(r.Context(), p, id, service.PickupInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

type returnRequest struct {
	DamageFee     decimal.Decimal     `json:"damageFee"`
	ReturnedAt    *time.Time          `json:"returnedAt"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

// ReturnOrder принимает товар обратно.
func (h *Handler) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req returnRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.service.ReturnOrder(r.Context(), p, id, service.ReturnInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// CompleteOrder закрывает возвращённый заказ.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteOrder)
}

// CancelOrder отменяет заказ.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelOrder)
}

type transitionFunc func(ctx context.Context, p model.Principal, id int64) (*model.Order, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := fn(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

type paymentRequest struct {
	Amount    decimal.Decimal     `json:"amount"`
	Method    model.PaymentMethod `json:"method"`
	Type      model.PaymentType   `json:"type"`
	Reference string              `json:"reference"`
}

// AddPayment принимает платёж по заказу.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pay, err := h.service.AddPayment(r.Context(), p, id, service.NewPaymentInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, pay)
}

// ListPayments возвращает платежи заказа.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}
