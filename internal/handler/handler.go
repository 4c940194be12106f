// Package handler содержит HTTP-обработчики API сервиса проката.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/rentshop/internal/analytics"
	"github.com/mmeshcher/rentshop/internal/middleware"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/service"
	"github.com/mmeshcher/rentshop/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CreateUser(ctx context.Context, p model.Principal, in service.NewUser) (*model.User, error)

	CreateMerchant(ctx context.Context, p model.Principal, in service.NewMerchant) (*model.Merchant, error)
	GetMerchant(ctx context.Context, p model.Principal, id int64) (*model.Merchant, error)
	ListMerchants(ctx context.Context, p model.Principal) ([]model.Merchant, error)
	CreateOutlet(ctx context.Context, p model.Principal, in service.NewOutlet) (*model.Outlet, error)
	ListOutlets(ctx context.Context, p model.Principal, merchantID *int64) ([]model.Outlet, error)

	CreateCustomer(ctx context.Context, p model.Principal, in service.CustomerInput) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, p model.Principal, id int64, in service.CustomerInput) (*model.Customer, error)
	GetCustomer(ctx context.Context, p model.Principal, id int64) (*model.Customer, error)
	ListCustomers(ctx context.Context, p model.Principal, merchantID *int64, search string, limit, offset int) ([]model.Customer, error)

	CreateProduct(ctx context.Context, p model.Principal, in service.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, p model.Principal, id int64, in service.ProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, p model.Principal, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, p model.Principal, merchantID *int64, limit, offset int) ([]model.Product, error)
	Availability(ctx context.Context, p model.Principal, productID int64) (*model.Availability, error)

	CreateOrder(ctx context.Context, p model.Principal, in service.NewOrder) (*model.Order, error)
	GetOrder(ctx context.Context, p model.Principal, id int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, p model.Principal, number string) (*model.Order, error)
	ListOrders(ctx context.Context, p model.Principal, f model.OrderFilter) ([]model.Order, error)
	PickupOrder(ctx context.Context, p model.Principal, id int64, in service.PickupInput) (*model.Order, error)
	ReturnOrder(ctx context.Context, p model.Principal, id int64, in service.ReturnInput) (*model.Order, error)
	CompleteOrder(ctx context.Context, p model.Principal, id int64) (*model.Order, error)
	CancelOrder(ctx context.Context, p model.Principal, id int64) (*model.Order, error)

	AddPayment(ctx context.Context, p model.Principal, orderID int64, in service.NewPaymentInput) (*model.Payment, error)
	ListPayments(ctx context.Context, p model.Principal, orderID int64) ([]model.Payment, error)

	IncomeReport(ctx context.Context, p model.Principal, q service.IncomeQuery) (*analytics.IncomeReport, error)
	Dashboard(ctx context.Context, p model.Principal, merchantID, outletID *int64) (*analytics.Dashboard, error)
	Calendar(ctx context.Context, p model.Principal, month time.Time, merchantID, outletID *int64) ([]analytics.CalendarDay, error)
	ListAuditLogs(ctx context.Context, p model.Principal, f model.AuditFilter) ([]model.AuditLog, error)
}

// Handler реализует HTTP-обработчики API сервиса проката.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	loc            *time.Location
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// loc задаёт часовой пояс, в котором разбираются даты из параметров запроса.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		loc:            loc,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
// Неизвестные ошибки логируются и скрываются за 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, validation.ErrInvalid),
		errors.Is(err, analytics.ErrInvalidGranularity),
		errors.Is(err, analytics.ErrInvalidPeriod),
		errors.Is(err, analytics.ErrPeriodTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrRegistrationClosed):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrCustomerExists),
		errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		writeErrorMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	writeErrorMessage(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

// principal возвращает пользователя запроса; при его отсутствии отвечает 401.
func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return p, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorMessage(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryID разбирает необязательный числовой параметр запроса.
func queryID(r *http.Request, name string) (*int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s", validation.ErrInvalid, name)
	}
	return &id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", validation.ErrInvalid, name)
	}
	return n, nil
}

// queryTime разбирает дату в формате YYYY-MM-DD (в часовом поясе отчётов) или RFC 3339.
func (h *Handler) queryTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, h.loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", validation.ErrInvalid, name)
	}
	return &t, nil
}

// scopeParams разбирает общие параметры merchantId и outletId.
func scopeParams(r *http.Request) (merchantID, outletID *int64, err error) {
	if merchantID, err = queryID(r, "merchantId"); err != nil {
		return nil, nil, err
	}
	if outletID, err = queryID(r, "outletId"); err != nil {
		return nil, nil, err
	}
	return merchantID, outletID, nil
}

func pagination(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
