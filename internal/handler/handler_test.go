package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/rentshop/internal/analytics"
	"github.com/mmeshcher/rentshop/internal/middleware"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/report"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/service"
	"github.com/mmeshcher/rentshop/internal/validation"
)

// stubService реализует только методы, нужные конкретному тесту.
type stubService struct {
	Service

	user    *model.User
	userErr error

	orders    []model.Order
	ordersErr error
	filter    model.OrderFilter

	createOrderErr error
	created        *service.NewOrder

	income      *analytics.IncomeReport
	incomeErr   error
	incomeQuery service.IncomeQuery

	byNumberCalled bool
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) ListOrders(ctx context.Context, p model.Principal, f model.OrderFilter) ([]model.Order, error) {
	s.filter = f
	return s.orders, s.ordersErr
}

func (s *stubService) CreateOrder(ctx context.Context, p model.Principal, in service.NewOrder) (*model.Order, error) {
	s.created = &in
	if s.createOrderErr != nil {
		return nil, s.createOrderErr
	}
	return &model.Order{ID: 1, Type: in.Type, Status: model.OrderStatusReserved}, nil
}

func (s *stubService) GetOrderByNumber(ctx context.Context, p model.Principal, number string) (*model.Order, error) {
	s.byNumberCalled = true
	return nil, repository.ErrNotFound
}

func (s *stubService) IncomeReport(ctx context.Context, p model.Principal, q service.IncomeQuery) (*analytics.IncomeReport, error) {
	s.incomeQuery = q
	return s.income, s.incomeErr
}

func (s *stubService) ListAuditLogs(ctx context.Context, p model.Principal, f model.AuditFilter) ([]model.AuditLog, error) {
	return []model.AuditLog{}, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	auth := middleware.NewAuthMiddleware("test-secret")
	return NewHandler(svc, zap.NewNop(), auth, time.UTC)
}

func int64Ptr(v int64) *int64 { return &v }

var (
	adminPrincipal = model.Principal{UserID: 1, Role: model.RoleAdmin}
	staffPrincipal = model.Principal{UserID: 3, Role: model.RoleOutletStaff, MerchantID: int64Ptr(1), OutletID: int64Ptr(2)}
)

// do выполняет запрос через роутер с токеном пользователя p.
func do(t *testing.T, h *Handler, p *model.Principal, method, target string, body []byte) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if p != nil {
		token, err := h.authMiddleware.IssueToken(*p)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		user: &model.User{ID: 42, Login: "admin", Role: model.RoleAdmin},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "admin", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, res.Cookies(), 1)
	assert.Equal(t, "auth_token", res.Cookies()[0].Name)

	var resp authResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, int64(42), resp.User.ID)

	p, err := h.authMiddleware.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, p.Role)
}

func TestRegister_Closed(t *testing.T) {
	h := newTestHandler(t, &stubService{userErr: service.ErrRegistrationClosed})

	body, _ := json.Marshal(credentialsRequest{Login: "second", Password: "pass"})
	res := do(t, h, nil, http.MethodPost, "/api/auth/register", body)

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "invalid credentials", body: `{"login":"u","password":"p"}`, err: service.ErrInvalidCredentials, status: http.StatusUnauthorized},
		{name: "empty password", body: `{"login":"u"}`, status: http.StatusBadRequest},
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
		{name: "internal error", body: `{"login":"u","password":"p"}`, err: context.DeadlineExceeded, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{userErr: tt.err})
			res := do(t, h, nil, http.MethodPost, "/api/auth/login", []byte(tt.body))
			assert.Equal(t, tt.status, res.StatusCode)
		})
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := do(t, h, nil, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = do(t, h, &staffPrincipal, http.MethodGet, "/api/audit-logs", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = do(t, h, &adminPrincipal, http.MethodGet, "/api/audit-logs", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = do(t, h, &adminPrincipal, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestListOrders_NoContent(t *testing.T) {
	svc := &stubService{orders: []model.Order{}}
	h := newTestHandler(t, svc)

	res := do(t, h, &adminPrincipal, http.MethodGet, "/api/orders?status=RESERVED&from=2024-03-01&to=2024-03-31&limit=10", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	require.NotNil(t, svc.filter.To)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC), *svc.filter.To)
	assert.Equal(t, 10, svc.filter.Limit)
}

func TestListOrders_BadQuery(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := do(t, h, &adminPrincipal, http.MethodGet, "/api/orders?customerId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCreateOrder(t *testing.T) {
	body := []byte(`{"outletId":2,"orderType":"rent","items":[{"productId":5,"quantity":2}],"depositAmount":"10.50"}`)

	t.Run("created", func(t *testing.T) {
		svc := &stubService{}
		h := newTestHandler(t, svc)

		res := do(t, h, &adminPrincipal, http.MethodPost, "/api/orders", body)
		require.Equal(t, http.StatusCreated, res.StatusCode)

		require.NotNil(t, svc.created)
		assert.Equal(t, model.OrderTypeRent, svc.created.Type)
		assert.True(t, svc.created.DepositAmount.Equal(decimal.RequireFromString("10.5")))
		require.Len(t, svc.created.Items, 1)
		assert.Equal(t, 2, svc.created.Items[0].Quantity)
	})

	errs := []struct {
		name   string
		err    error
		status int
	}{
		{name: "validation", err: fmt.Errorf("%w: deposit exceeds total", validation.ErrInvalid), status: http.StatusBadRequest},
		{name: "forbidden", err: service.ErrForbidden, status: http.StatusForbidden},
		{name: "stock", err: repository.ErrInsufficientStock, status: http.StatusConflict},
		{name: "missing product", err: repository.ErrNotFound, status: http.StatusNotFound},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{createOrderErr: tt.err})
			res := do(t, h, &adminPrincipal, http.MethodPost, "/api/orders", body)
			assert.Equal(t, tt.status, res.StatusCode)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetOrderByNumber_InvalidCheckDigit(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	res := do(t, h, &adminPrincipal, http.MethodGet, "/api/orders/by-number/79927398710", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.False(t, svc.byNumberCalled)

	res = do(t, h, &adminPrincipal, http.MethodGet, "/api/orders/by-number/79927398713", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.True(t, svc.byNumberCalled)
}

func TestIncome(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	rep := &analytics.IncomeReport{
		Granularity: analytics.GranularityDay,
		From:        from,
		To:          to,
		Buckets: []analytics.Bucket{
			{Period: "2024-03-01", Income: decimal.RequireFromString("100"), FutureIncome: decimal.Zero, OrderCount: 1},
		},
		TotalIncome:       decimal.RequireFromString("100"),
		TotalFutureIncome: decimal.Zero,
		TotalOrders:       1,
	}

	t.Run("json", func(t *testing.T) {
		svc := &stubService{income: rep}
		h := newTestHandler(t, svc)

		res := do(t, h, &adminPrincipal, http.MethodGet, "/api/analytics/income?from=2024-03-01&to=2024-03-02&groupBy=day&merchantId=7", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

		assert.Equal(t, analytics.GranularityDay, svc.incomeQuery.Granularity)
		assert.True(t, svc.incomeQuery.From.Equal(from))
		assert.True(t, svc.incomeQuery.To.Equal(to))
		require.NotNil(t, svc.incomeQuery.MerchantID)
		assert.Equal(t, int64(7), *svc.incomeQuery.MerchantID)
	})

	t.Run("bad granularity", func(t *testing.T) {
		h := newTestHandler(t, &stubService{income: rep})
		res := do(t, h, &adminPrincipal, http.MethodGet, "/api/analytics/income?groupBy=week", nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("inverted period", func(t *testing.T) {
		h := newTestHandler(t, &stubService{incomeErr: analytics.ErrInvalidPeriod})
		res := do(t, h, &adminPrincipal, http.MethodGet, "/api/analytics/income?from=2024-03-05&to=2024-03-01", nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("export", func(t *testing.T) {
		h := newTestHandler(t, &stubService{income: rep})

		res := do(t, h, &adminPrincipal, http.MethodGet, "/api/analytics/income/export?from=2024-03-01&to=2024-03-02", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, report.ContentType, res.Header.Get("Content-Type"))
		assert.True(t, strings.Contains(res.Header.Get("Content-Disposition"), report.IncomeFileName(rep)))

		var buf bytes.Buffer
		_, err := buf.ReadFrom(res.Body)
		require.NoError(t, err)
		// xlsx это zip-архив
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))
	})
}

func TestCalendar_BadMonth(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := do(t, h, &adminPrincipal, http.MethodGet, "/api/analytics/calendar?month=2024-13", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
