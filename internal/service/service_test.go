package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/rentshop/internal/analytics"
	"github.com/mmeshcher/rentshop/internal/gateway"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/revenue"
	"github.com/mmeshcher/rentshop/internal/validation"
)

type stubRepo struct {
	Repository

	users     []model.User
	outlets   map[int64]model.Outlet
	customers map[int64]model.Customer
	products  map[int64]model.Product
	orders    map[int64]model.Order

	created        *model.Order
	createdPayment *model.Payment
	createOrderErr error

	changes  []repository.StatusChange
	payments []model.Payment
	audit    []model.AuditLog

	periodFilter model.PeriodOrdersFilter
	periodOrders []model.Order

	staleBefore time.Time
	staleIDs    []int64

	held int

	syncPayments  []repository.PaymentForSync
	statusUpdates map[int64]model.PaymentStatus
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		outlets: map[int64]model.Outlet{
			10: {ID: 10, MerchantID: 1, Name: "Main"},
			20: {ID: 20, MerchantID: 2, Name: "Other"},
		},
		customers: map[int64]model.Customer{
			5: {ID: 5, MerchantID: 1, FirstName: "Ann", Phone: "+79123456789"},
		},
		products: map[int64]model.Product{
			100: {ID: 100, MerchantID: 1, Name: "Dress", RentPrice: dec("100"), SalePrice: dec("500"), Deposit: dec("150"), Stock: 3},
			200: {ID: 200, MerchantID: 2, Name: "Suit", RentPrice: dec("80"), Stock: 1},
		},
		orders: map[int64]model.Order{},
	}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(s.users)), nil
}

func (s *stubRepo) CreateUser(ctx context.Context, u model.User) (int64, error) {
	for _, existing := range s.users {
		if existing.Login == u.Login {
			return 0, repository.ErrUserExists
		}
	}
	u.ID = int64(len(s.users) + 1)
	s.users = append(s.users, u)
	return u.ID, nil
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	for _, u := range s.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetMerchant(ctx context.Context, id int64) (*model.Merchant, error) {
	return &model.Merchant{ID: id}, nil
}

func (s *stubRepo) GetOutlet(ctx context.Context, id int64) (*model.Outlet, error) {
	o, ok := s.outlets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (s *stubRepo) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *stubRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *stubRepo) GetHeldQuantity(ctx context.Context, productID int64) (int, error) {
	return s.held, nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o model.Order, initial *model.Payment) (*model.Order, error) {
	if s.createOrderErr != nil {
		return nil, s.createOrderErr
	}
	o.ID = int64(len(s.orders) + 1)
	o.Number = validation.WithCheckDigit("01000000001")
	s.orders[o.ID] = o
	s.created = &o
	s.createdPayment = initial
	return &o, nil
}

func (s *stubRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id int64, change repository.StatusChange) error {
	o, ok := s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.Status != change.From {
		return repository.ErrStatusConflict
	}
	o.Status = change.To
	s.orders[id] = o
	s.changes = append(s.changes, change)
	return nil
}

func (s *stubRepo) CancelStaleReservations(ctx context.Context, before time.Time) ([]int64, error) {
	s.staleBefore = before
	return s.staleIDs, nil
}

func (s *stubRepo) CreatePayment(ctx context.Context, p model.Payment) (*model.Payment, error) {
	p.ID = int64(len(s.payments) + 1)
	s.payments = append(s.payments, p)
	return &p, nil
}

func (s *stubRepo) ListOrdersForPeriod(ctx context.Context, f model.PeriodOrdersFilter) ([]model.Order, error) {
	s.periodFilter = f
	return s.periodOrders, nil
}

func (s *stubRepo) CreateAuditLog(ctx context.Context, e model.AuditLog) error {
	s.audit = append(s.audit, e)
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func id(v int64) *int64 { return &v }

var (
	admin    = model.Principal{UserID: 1, Role: model.RoleAdmin}
	merchant = model.Principal{UserID: 2, Role: model.RoleMerchant, MerchantID: id(1)}
	staff    = model.Principal{UserID: 3, Role: model.RoleOutletStaff, MerchantID: id(1), OutletID: id(10)}
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
}

func gatewayStub() *gateway.Client {
	return gateway.NewClient("http://127.0.0.1:0")
}

func newTestService(repo *stubRepo) *Service {
	return NewService(repo, nil, WithClock(fixedNow))
}

func TestHashPassword(t *testing.T) {
	a, err := hashPassword("pass")
	require.NoError(t, err)
	b, err := hashPassword("pass")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "bcrypt hashes must be salted")
	assert.True(t, verifyPassword(a, "pass"))
	assert.True(t, verifyPassword(b, "pass"))
	assert.False(t, verifyPassword(a, "other"))
	assert.False(t, verifyPassword(nil, "pass"))
}

func TestRegisterUser(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	u, err := svc.RegisterUser(ctx, "root", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	_, err = svc.RegisterUser(ctx, "second", "secret2")
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	got, err := svc.AuthenticateUser(ctx, "root", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.AuthenticateUser(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.AuthenticateUser(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_Permissions(t *testing.T) {
	tests := []struct {
		name    string
		actor   model.Principal
		in      NewUser
		wantErr error
	}{
		{
			name:  "admin creates merchant owner",
			actor: admin,
			in:    NewUser{Login: "owner", Password: "secret1", Role: model.RoleMerchant, MerchantID: id(1)},
		},
		{
			name:  "merchant creates own staff",
			actor: merchant,
			in:    NewUser{Login: "clerk", Password: "secret1", Role: model.RoleOutletStaff, OutletID: id(10)},
		},
		{
			name:    "merchant cannot create admin",
			actor:   merchant,
			in:      NewUser{Login: "boss", Password: "secret1", Role: model.RoleAdmin},
			wantErr: ErrForbidden,
		},
		{
			name:    "merchant cannot staff foreign outlet",
			actor:   merchant,
			in:      NewUser{Login: "spy", Password: "secret1", Role: model.RoleOutletStaff, OutletID: id(20)},
			wantErr: validation.ErrInvalid,
		},
		{
			name:    "staff cannot create users",
			actor:   staff,
			in:      NewUser{Login: "clerk2", Password: "secret1", Role: model.RoleOutletStaff, OutletID: id(10)},
			wantErr: ErrForbidden,
		},
		{
			name:    "short password",
			actor:   admin,
			in:      NewUser{Login: "owner", Password: "123", Role: model.RoleMerchant, MerchantID: id(1)},
			wantErr: validation.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newStubRepo())
			u, err := svc.CreateUser(context.Background(), tt.actor, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in.Role, u.Role)
		})
	}
}

func TestCreateOrder_Rent(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	pickup := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	ret := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	o, err := svc.CreateOrder(context.Background(), staff, NewOrder{
		OutletID:      10,
		CustomerID:    id(5),
		Type:          model.OrderTypeRent,
		Items:         []OrderItemInput{{ProductID: 100, Quantity: 2}},
		DepositAmount: dec("50"),
		PickupPlanAt:  &pickup,
		ReturnPlanAt:  &ret,
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusReserved, o.Status)
	assert.Equal(t, int64(1), o.MerchantID)
	assert.Equal(t, int64(3), o.CreatedBy)
	assert.True(t, o.TotalAmount.Equal(dec("200")))
	assert.True(t, o.DepositAmount.Equal(dec("50")))
	assert.True(t, o.SecurityDeposit.Equal(dec("300")))
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].TotalPrice.Equal(dec("200")))

	require.NotNil(t, repo.createdPayment)
	assert.Equal(t, model.PaymentTypeDeposit, repo.createdPayment.Type)
	assert.Equal(t, model.PaymentMethodCash, repo.createdPayment.Method)
	assert.Equal(t, model.PaymentStatusCompleted, repo.createdPayment.Status)

	require.Len(t, repo.audit, 1)
	assert.Equal(t, "order.create", repo.audit[0].Action)

	assert.True(t, revenue.Resolve(*o).Equal(dec("50")))
}

func TestCreateOrder_SaleIsCompleted(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	o, err := svc.CreateOrder(context.Background(), merchant, NewOrder{
		OutletID: 10,
		Type:     model.OrderTypeSale,
		Items:    []OrderItemInput{{ProductID: 100, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusCompleted, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("500")))
	assert.True(t, o.SecurityDeposit.IsZero())
	require.NotNil(t, repo.createdPayment)
	assert.Equal(t, model.PaymentTypeSale, repo.createdPayment.Type)
	assert.True(t, revenue.Resolve(*o).Equal(dec("500")))
}

func TestCreateOrder_CardPaymentPendingWithGateway(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, gatewayStub(), WithClock(fixedNow))

	_, err := svc.CreateOrder(context.Background(), merchant, NewOrder{
		OutletID:      10,
		Type:          model.OrderTypeRent,
		Items:         []OrderItemInput{{ProductID: 100, Quantity: 1}},
		DepositAmount: dec("40"),
		PaymentMethod: model.PaymentMethodCard,
	})
	require.NoError(t, err)

	require.NotNil(t, repo.createdPayment)
	assert.Equal(t, model.PaymentStatusPending, repo.createdPayment.Status)
	assert.NotEmpty(t, repo.createdPayment.Reference)
	assert.Nil(t, repo.createdPayment.ProcessedAt)
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		actor   model.Principal
		in      NewOrder
		wantErr error
	}{
		{
			name:    "no items",
			actor:   merchant,
			in:      NewOrder{OutletID: 10, Type: model.OrderTypeRent},
			wantErr: validation.ErrInvalid,
		},
		{
			name:    "zero quantity",
			actor:   merchant,
			in:      NewOrder{OutletID: 10, Type: model.OrderTypeRent, Items: []OrderItemInput{{ProductID: 100}}},
			wantErr: validation.ErrInvalid,
		},
		{
			name:    "unknown type",
			actor:   merchant,
			in:      NewOrder{OutletID: 10, Type: "LEASE", Items: []OrderItemInput{{ProductID: 100, Quantity: 1}}},
			wantErr: validation.ErrInvalid,
		},
		{
			name:  "deposit above total",
			actor: merchant,
			in: NewOrder{OutletID: 10, Type: model.OrderTypeRent, DepositAmount: dec("101"),
				Items: []OrderItemInput{{ProductID: 100, Quantity: 1}}},
			wantErr: validation.ErrInvalid,
		},
		{
			name:  "negative deposit",
			actor: merchant,
			in: NewOrder{OutletID: 10, Type: model.OrderTypeRent, DepositAmount: dec("-1"),
				Items: []OrderItemInput{{ProductID: 100, Quantity: 1}}},
			wantErr: validation.ErrInvalid,
		},
		{
			name:    "foreign product",
			actor:   merchant,
			in:      NewOrder{OutletID: 10, Type: model.OrderTypeRent, Items: []OrderItemInput{{ProductID: 200, Quantity: 1}}},
			wantErr: validation.ErrInvalid,
		},
		{
			name:    "foreign outlet",
			actor:   merchant,
			in:      NewOrder{OutletID: 20, Type: model.OrderTypeRent, Items: []OrderItemInput{{ProductID: 200, Quantity: 1}}},
			wantErr: ErrForbidden,
		},
		{
			name:    "staff at another outlet",
			actor:   model.Principal{UserID: 9, Role: model.RoleOutletStaff, MerchantID: id(1), OutletID: id(11)},
			in:      NewOrder{OutletID: 10, Type: model.OrderTypeRent, Items: []OrderItemInput{{ProductID: 100, Quantity: 1}}},
			wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubRepo()
			svc := newTestService(repo)

			_, err := svc.CreateOrder(context.Background(), tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, repo.created)
		})
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	repo := newStubRepo()
	repo.createOrderErr = repository.ErrInsufficientStock
	svc := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), merchant, NewOrder{
		OutletID: 10,
		Type:     model.OrderTypeRent,
		Items:    []OrderItemInput{{ProductID: 100, Quantity: 5}},
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Empty(t, repo.audit)
}

func seedRentOrder(repo *stubRepo, status model.OrderStatus) int64 {
	o := model.Order{
		ID:              1,
		MerchantID:      1,
		OutletID:        10,
		Type:            model.OrderTypeRent,
		Status:          status,
		TotalAmount:     dec("200"),
		DepositAmount:   dec("50"),
		SecurityDeposit: dec("100"),
	}
	repo.orders[o.ID] = o
	return o.ID
}

func TestRentLifecycle(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	orderID := seedRentOrder(repo, model.OrderStatusReserved)

	o, err := svc.PickupOrder(ctx, staff, orderID, PickupInput{})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPickuped, o.Status)
	require.NotNil(t, o.PickedUpAt)
	assert.Equal(t, fixedNow(), *o.PickedUpAt)
	assert.True(t, revenue.Resolve(*o).Equal(dec("250")))

	require.Len(t, repo.payments, 2)
	assert.Equal(t, model.PaymentTypeRentalFee, repo.payments[0].Type)
	assert.True(t, repo.payments[0].Amount.Equal(dec("150")))
	assert.Equal(t, model.PaymentTypeSecurityDeposit, repo.payments[1].Type)
	assert.True(t, repo.payments[1].Amount.Equal(dec("100")))

	_, err = svc.ReturnOrder(ctx, staff, orderID, ReturnInput{DamageFee: dec("101")})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	o, err = svc.ReturnOrder(ctx, staff, orderID, ReturnInput{DamageFee: dec("30")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReturned, o.Status)
	assert.True(t, o.DamageFee.Equal(dec("30")))
	require.Len(t, repo.payments, 3)
	assert.Equal(t, model.PaymentTypeRefund, repo.payments[2].Type)
	assert.True(t, repo.payments[2].Amount.Equal(dec("70")))

	o, err = svc.CompleteOrder(ctx, staff, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, o.Status)

	_, err = svc.CancelOrder(ctx, staff, orderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, repo.changes, 3)
	assert.Equal(t, model.OrderStatusReserved, repo.changes[0].From)
	assert.Equal(t, model.OrderStatusPickuped, repo.changes[1].From)
	assert.Equal(t, model.OrderStatusReturned, repo.changes[2].From)
}

func TestOrderTransitions_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		status model.OrderStatus
		call   func(*Service, int64) error
	}{
		{"return reserved", model.OrderStatusReserved, func(s *Service, id int64) error {
			_, err := s.ReturnOrder(context.Background(), merchant, id, ReturnInput{})
			return err
		}},
		{"pickup cancelled", model.OrderStatusCancelled, func(s *Service, id int64) error {
			_, err := s.PickupOrder(context.Background(), merchant, id, PickupInput{})
			return err
		}},
		{"complete pickuped", model.OrderStatusPickuped, func(s *Service, id int64) error {
			_, err := s.CompleteOrder(context.Background(), merchant, id)
			return err
		}},
		{"cancel returned", model.OrderStatusReturned, func(s *Service, id int64) error {
			_, err := s.CancelOrder(context.Background(), merchant, id)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubRepo()
			orderID := seedRentOrder(repo, tt.status)

			err := tt.call(newTestService(repo), orderID)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Empty(t, repo.changes)
		})
	}
}

func TestPickupOrder_SaleRejected(t *testing.T) {
	repo := newStubRepo()
	repo.orders[1] = model.Order{ID: 1, MerchantID: 1, OutletID: 10, Type: model.OrderTypeSale, Status: model.OrderStatusReserved}

	_, err := newTestService(repo).PickupOrder(context.Background(), merchant, 1, PickupInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPickupOrder_CardReferencesDiffer(t *testing.T) {
	repo := newStubRepo()
	orderID := seedRentOrder(repo, model.OrderStatusReserved)
	svc := NewService(repo, gatewayStub(), WithClock(fixedNow))

	_, err := svc.PickupOrder(context.Background(), staff, orderID, PickupInput{
		PaymentMethod:    model.PaymentMethodCard,
		PaymentReference: " TRX-77 ",
	})
	require.NoError(t, err)

	require.Len(t, repo.payments, 2)
	assert.Equal(t, "TRX-77", repo.payments[0].Reference)
	assert.Equal(t, "TRX-77-security", repo.payments[1].Reference)
	for _, p := range repo.payments {
		assert.Equal(t, model.PaymentStatusPending, p.Status)
	}
}

func TestReturnOrder_BeforePickup(t *testing.T) {
	repo := newStubRepo()
	orderID := seedRentOrder(repo, model.OrderStatusPickuped)
	pickedUp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	o := repo.orders[orderID]
	o.PickedUpAt = &pickedUp
	repo.orders[orderID] = o
	svc := newTestService(repo)

	early := pickedUp.Add(-time.Minute)
	_, err := svc.ReturnOrder(context.Background(), staff, orderID, ReturnInput{ReturnedAt: &early})
	assert.ErrorIs(t, err, validation.ErrInvalid)
	assert.Empty(t, repo.changes)

	_, err = svc.ReturnOrder(context.Background(), staff, orderID, ReturnInput{ReturnedAt: &pickedUp})
	require.NoError(t, err)
}

func TestCancelOrder_ForeignMerchant(t *testing.T) {
	repo := newStubRepo()
	orderID := seedRentOrder(repo, model.OrderStatusReserved)
	other := model.Principal{UserID: 7, Role: model.RoleMerchant, MerchantID: id(2)}

	_, err := newTestService(repo).CancelOrder(context.Background(), other, orderID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelStaleReservations(t *testing.T) {
	repo := newStubRepo()
	repo.staleIDs = []int64{4, 9}
	svc := NewService(repo, nil, WithClock(fixedNow), WithReservationGrace(24*time.Hour))

	n, err := svc.CancelStaleReservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, fixedNow().Add(-24*time.Hour), repo.staleBefore)
	require.Len(t, repo.audit, 2)
	assert.Equal(t, "order.expire", repo.audit[0].Action)
	assert.Equal(t, "9", repo.audit[1].EntityID)
}

func TestAddPayment(t *testing.T) {
	repo := newStubRepo()
	orderID := seedRentOrder(repo, model.OrderStatusPickuped)
	svc := newTestService(repo)

	_, err := svc.AddPayment(context.Background(), merchant, orderID, NewPaymentInput{
		Amount: dec("0"), Method: model.PaymentMethodCash, Type: model.PaymentTypeDamageFee,
	})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	p, err := svc.AddPayment(context.Background(), merchant, orderID, NewPaymentInput{
		Amount: dec("12.345"), Method: model.PaymentMethodBankTransfer, Type: model.PaymentTypeDamageFee,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, p.Status)
	assert.True(t, p.Amount.Equal(dec("12.35")))
	assert.Equal(t, orderID, p.OrderID)
}

func TestAvailability(t *testing.T) {
	repo := newStubRepo()
	repo.held = 2
	svc := newTestService(repo)

	a, err := svc.Availability(context.Background(), merchant, 100)
	require.NoError(t, err)
	assert.Equal(t, model.Availability{ProductID: 100, Stock: 3, Held: 2, Available: 1}, *a)

	repo.held = 5
	a, err = svc.Availability(context.Background(), merchant, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Available)

	_, err = svc.Availability(context.Background(), merchant, 200)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIncomeReport_ScopesAndRange(t *testing.T) {
	repo := newStubRepo()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.periodOrders = []model.Order{
		{ID: 1, Type: model.OrderTypeRent, Status: model.OrderStatusReserved, TotalAmount: dec("200"), DepositAmount: dec("50"), CreatedAt: created},
		{ID: 2, Type: model.OrderTypeSale, Status: model.OrderStatusCompleted, TotalAmount: dec("500"), CreatedAt: created},
	}
	svc := newTestService(repo)

	from := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)

	rep, err := svc.IncomeReport(context.Background(), staff, IncomeQuery{From: from, To: to, Granularity: analytics.GranularityDay})
	require.NoError(t, err)

	assert.Equal(t, id(1), repo.periodFilter.MerchantID)
	assert.Equal(t, id(10), repo.periodFilter.OutletID)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), repo.periodFilter.From)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), repo.periodFilter.Until)

	require.Len(t, rep.Buckets, 2)
	assert.True(t, rep.Buckets[0].Income.Equal(dec("550")))
	assert.Equal(t, 2, rep.Buckets[0].OrderCount)
	assert.True(t, rep.TotalIncome.Equal(dec("550")))

	_, err = svc.IncomeReport(context.Background(), staff, IncomeQuery{From: to, To: from, Granularity: analytics.GranularityDay})
	assert.True(t, errors.Is(err, analytics.ErrInvalidPeriod))

	_, err = svc.IncomeReport(context.Background(), merchant, IncomeQuery{From: from, To: to, Granularity: analytics.GranularityDay, MerchantID: id(2)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListAuditLogs_StaffForbidden(t *testing.T) {
	_, err := newTestService(newStubRepo()).ListAuditLogs(context.Background(), staff, model.AuditFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func (s *stubRepo) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	for _, existing := range s.customers {
		if existing.MerchantID == c.MerchantID && existing.Phone == c.Phone {
			return nil, repository.ErrCustomerExists
		}
	}
	c.ID = int64(len(s.customers) + 100)
	s.customers[c.ID] = c
	return &c, nil
}

func (s *stubRepo) UpdateCustomer(ctx context.Context, c model.Customer) error {
	if _, ok := s.customers[c.ID]; !ok {
		return repository.ErrNotFound
	}
	s.customers[c.ID] = c
	return nil
}

func TestCreateCustomer_NormalizesPhone(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, WithClock(fixedNow), WithPhoneRegion("RU"))
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, merchant, CustomerInput{FirstName: " Bob ", Phone: "8 (922) 000-11-22"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.MerchantID)
	assert.Equal(t, "Bob", c.FirstName)
	assert.Equal(t, "+79220001122", c.Phone)

	_, err = svc.CreateCustomer(ctx, merchant, CustomerInput{FirstName: "Ann", Phone: "+7 912 345 67 89"})
	assert.ErrorIs(t, err, repository.ErrCustomerExists)

	_, err = svc.CreateCustomer(ctx, merchant, CustomerInput{FirstName: "Eve", Phone: "12"})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.CreateCustomer(ctx, merchant, CustomerInput{MerchantID: 2, FirstName: "Eve", Phone: "+79220001133"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateCustomer(ctx, merchant, 5, CustomerInput{MerchantID: 2, FirstName: "Anna", Phone: "+7 912 345-67-89"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.MerchantID, "merchant must not change on update")
	assert.Equal(t, "+79123456789", updated.Phone)
}
