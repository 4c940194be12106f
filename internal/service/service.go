// Package service реализует бизнес-логику сервиса проката.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/rentshop/internal/audit"
	"github.com/mmeshcher/rentshop/internal/gateway"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/revenue"
)

var (
	// ErrForbidden возвращается, если у пользователя нет доступа к ресурсу.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationClosed возвращается при попытке самостоятельной регистрации, когда администратор уже есть.
	ErrRegistrationClosed = errors.New("registration closed")
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u model.User) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	CreateMerchant(ctx context.Context, m model.Merchant) (*model.Merchant, error)
	GetMerchant(ctx context.Context, id int64) (*model.Merchant, error)
	ListMerchants(ctx context.Context) ([]model.Merchant, error)
	CreateOutlet(ctx context.Context, o model.Outlet) (*model.Outlet, error)
	GetOutlet(ctx context.Context, id int64) (*model.Outlet, error)
	ListOutlets(ctx context.Context, merchantID *int64) ([]model.Outlet, error)

	CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, c model.Customer) error
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	ListCustomers(ctx context.Context, merchantID *int64, search string, limit, offset int) ([]model.Customer, error)

	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, merchantID *int64, limit, offset int) ([]model.Product, error)
	GetHeldQuantity(ctx context.Context, productID int64) (int, error)

	CreateOrder(ctx context.Context, o model.Order, initial *model.Payment) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	ListOrdersForPeriod(ctx context.Context, f model.PeriodOrdersFilter) ([]model.Order, error)
	ListOrdersForDashboard(ctx context.Context, merchantID, outletID *int64, since time.Time) ([]model.Order, error)
	ListOrdersForCalendar(ctx context.Context, f model.PeriodOrdersFilter) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, change repository.StatusChange) error
	CancelStaleReservations(ctx context.Context, before time.Time) ([]int64, error)

	CreatePayment(ctx context.Context, p model.Payment) (*model.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID int64) ([]model.Payment, error)
	GetPaymentsForSync(ctx context.Context, limit int) ([]repository.PaymentForSync, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus, processedAt *time.Time) error

	CreateAuditLog(ctx context.Context, e model.AuditLog) error
	ListAuditLogs(ctx context.Context, f model.AuditFilter) ([]model.AuditLog, error)
}

// Service содержит бизнес-логику сервиса проката.
type Service struct {
	repo             Repository
	gatewayClient    *gateway.Client
	resolver         revenue.Resolver
	logger           *zap.Logger
	now              func() time.Time
	reservationGrace time.Duration
	pollInterval     time.Duration
	phoneRegion      string
}

// Option настраивает Service.
type Option func(*Service)

// WithResolver задаёт вычислитель дохода (и тем самым часовой пояс отчётов).
func WithResolver(r revenue.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithLogger задаёт логгер сервиса.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReservationGrace задаёт, сколько резерв может ждать выдачи после плановой даты.
func WithReservationGrace(d time.Duration) Option {
	return func(s *Service) { s.reservationGrace = d }
}

// WithPollInterval задаёт период опроса платёжного шлюза.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithPhoneRegion задаёт страну для телефонов клиентов, записанных без международного префикса.
func WithPhoneRegion(region string) Option {
	return func(s *Service) { s.phoneRegion = region }
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом платёжного шлюза.
func NewService(repo Repository, gatewayClient *gateway.Client, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		gatewayClient:    gatewayClient,
		logger:           zap.NewNop(),
		now:              time.Now,
		reservationGrace: 48 * time.Hour,
		pollInterval:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Resolver возвращает вычислитель дохода сервиса.
func (s *Service) Resolver() revenue.Resolver {
	return s.resolver
}

// record пишет запись в журнал изменений. Ошибка записи журнала не отменяет операцию.
func (s *Service) record(ctx context.Context, action, entityType, entityID string, details any) {
	entry := audit.Entry(ctx, action, entityType, entityID, details)
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed",
			zap.Error(err),
			zap.String("action", action),
			zap.String("entity", entityType+":"+entityID),
		)
	}
}

// merchantScope возвращает арендатора, которым ограничена выборка.
// Администратор может запросить любого арендатора или всех (nil).
func merchantScope(p model.Principal, requested *int64) (*int64, error) {
	if p.IsAdmin() {
		return requested, nil
	}
	if p.MerchantID == nil {
		return nil, ErrForbidden
	}
	if requested != nil && *requested != *p.MerchantID {
		return nil, ErrForbidden
	}
	id := *p.MerchantID
	return &id, nil
}

// outletScope возвращает точку выдачи, которой ограничена выборка.
// Сотрудник точки всегда видит только свою точку.
func outletScope(p model.Principal, requested *int64) (*int64, error) {
	if p.Role != model.RoleOutletStaff {
		return requested, nil
	}
	if p.OutletID == nil {
		return nil, ErrForbidden
	}
	if requested != nil && *requested != *p.OutletID {
		return nil, ErrForbidden
	}
	id := *p.OutletID
	return &id, nil
}

func checkMerchant(p model.Principal, merchantID int64) error {
	if p.IsAdmin() {
		return nil
	}
	if p.MerchantID == nil || *p.MerchantID != merchantID {
		return ErrForbidden
	}
	return nil
}

func checkOutlet(p model.Principal, merchantID, outletID int64) error {
	if err := checkMerchant(p, merchantID); err != nil {
		return err
	}
	if p.Role == model.RoleOutletStaff && (p.OutletID == nil || *p.OutletID != outletID) {
		return ErrForbidden
	}
	return nil
}
