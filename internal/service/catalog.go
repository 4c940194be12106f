package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/validation"
)

// NewMerchant содержит данные для создания арендатора.
type NewMerchant struct {
	Name  string `validate:"required,max=200"`
	Email string `validate:"omitempty,email"`
	Phone string `validate:"omitempty,max=32"`
}

// NewOutlet содержит данные для создания точки выдачи.
type NewOutlet struct {
	MerchantID int64  `validate:"required"`
	Name       string `validate:"required,max=200"`
	Address    string `validate:"max=500"`
	Phone      string `validate:"omitempty,max=32"`
}

// CustomerInput содержит данные клиента для создания или изменения.
type CustomerInput struct {
	MerchantID int64  `validate:"required"`
	FirstName  string `validate:"required,max=100"`
	LastName   string `validate:"max=100"`
	Phone      string `validate:"required,max=32"`
	Email      string `validate:"omitempty,email"`
}

// ProductInput содержит данные товара для создания или изменения.
type ProductInput struct {
	MerchantID int64  `validate:"required"`
	Name       string `validate:"required,max=200"`
	Barcode    string `validate:"max=64"`
	RentPrice  decimal.Decimal
	SalePrice  decimal.Decimal
	Deposit    decimal.Decimal
	Stock      int `validate:"gte=0"`
}

// CreateMerchant создаёт арендатора. Доступно только администратору.
func (s *Service) CreateMerchant(ctx context.Context, p model.Principal, in NewMerchant) (*model.Merchant, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	m, err := s.repo.CreateMerchant(ctx, model.Merchant{
		Name:  strings.TrimSpace(in.Name),
		Email: in.Email,
		Phone: in.Phone,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "merchant.create", "merchant", strconv.FormatInt(m.ID, 10), in)
	return m, nil
}

// GetMerchant возвращает арендатора, если он доступен пользователю.
func (s *Service) GetMerchant(ctx context.Context, p model.Principal, id int64) (*model.Merchant, error) {
	if err := checkMerchant(p, id); err != nil {
		return nil, err
	}
	return s.repo.GetMerchant(ctx, id)
}

// ListMerchants возвращает доступных пользователю арендаторов.
func (s *Service) ListMerchants(ctx context.Context, p model.Principal) ([]model.Merchant, error) {
	if p.IsAdmin() {
		return s.repo.ListMerchants(ctx)
	}
	if p.MerchantID == nil {
		return nil, ErrForbidden
	}
	m, err := s.repo.GetMerchant(ctx, *p.MerchantID)
	if err != nil {
		return nil, err
	}
	return []model.Merchant{*m}, nil
}

// CreateOutlet создаёт точку выдачи арендатора.
func (s *Service) CreateOutlet(ctx context.Context, p model.Principal, in NewOutlet) (*model.Outlet, error) {
	if p.Role == model.RoleOutletStaff {
		return nil, ErrForbidden
	}
	if in.MerchantID == 0 && p.MerchantID != nil {
		in.MerchantID = *p.MerchantID
	}
	if err := checkMerchant(p, in.MerchantID); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	o, err := s.repo.CreateOutlet(ctx, model.Outlet{
		MerchantID: in.MerchantID,
		Name:       strings.TrimSpace(in.Name),
		Address:    in.Address,
		Phone:      in.Phone,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "outlet.create", "outlet", strconv.FormatInt(o.ID, 10), in)
	return o, nil
}

// ListOutlets возвращает точки выдачи в пределах доступа пользователя.
func (s *Service) ListOutlets(ctx context.Context, p model.Principal, merchantID *int64) ([]model.Outlet, error) {
	scope, err := merchantScope(p, merchantID)
	if err != nil {
		return nil, err
	}

	outlets, err := s.repo.ListOutlets(ctx, scope)
	if err != nil {
		return nil, err
	}

	if p.Role != model.RoleOutletStaff {
		return outlets, nil
	}

	res := outlets[:0]
	for _, o := range outlets {
		if p.OutletID != nil && o.ID == *p.OutletID {
			res = append(res, o)
		}
	}
	return res, nil
}

// CreateCustomer создаёт клиента арендатора.
func (s *Service) CreateCustomer(ctx context.Context, p model.Principal, in CustomerInput) (*model.Customer, error) {
	if in.MerchantID == 0 && p.MerchantID != nil {
		in.MerchantID = *p.MerchantID
	}
	if err := checkMerchant(p, in.MerchantID); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	c, err := s.customerFromInput(in)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateCustomer(ctx, c)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "customer.create", "customer", strconv.FormatInt(created.ID, 10), in)
	return created, nil
}

// UpdateCustomer изменяет данные клиента. Перенос клиента к другому арендатору запрещён.
func (s *Service) UpdateCustomer(ctx context.Context, p model.Principal, id int64, in CustomerInput) (*model.Customer, error) {
	current, err := s.GetCustomer(ctx, p, id)
	if err != nil {
		return nil, err
	}
	in.MerchantID = current.MerchantID
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	c, err := s.customerFromInput(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.CreatedAt = current.CreatedAt
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}

	s.record(ctx, "customer.update", "customer", strconv.FormatInt(id, 10), in)
	return &c, nil
}

// GetCustomer возвращает клиента, если он доступен пользователю.
func (s *Service) GetCustomer(ctx context.Context, p model.Principal, id int64) (*model.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkMerchant(p, c.MerchantID); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers ищет клиентов по имени или телефону в пределах доступа пользователя.
func (s *Service) ListCustomers(ctx context.Context, p model.Principal, merchantID *int64, search string, limit, offset int) ([]model.Customer, error) {
	scope, err := merchantScope(p, merchantID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, scope, strings.TrimSpace(search), limit, offset)
}

// customerFromInput приводит телефон к E.164, чтобы уникальность по телефону не зависела от записи номера.
func (s *Service) customerFromInput(in CustomerInput) (model.Customer, error) {
	phone, err := validation.NormalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		return model.Customer{}, err
	}
	return model.Customer{
		MerchantID: in.MerchantID,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Phone:      phone,
		Email:      strings.TrimSpace(in.Email),
	}, nil
}

// CreateProduct добавляет товар в каталог арендатора.
func (s *Service) CreateProduct(ctx context.Context, p model.Principal, in ProductInput) (*model.Product, error) {
	if p.Role == model.RoleOutletStaff {
		return nil, ErrForbidden
	}
	if in.MerchantID == 0 && p.MerchantID != nil {
		in.MerchantID = *p.MerchantID
	}
	if err := checkMerchant(p, in.MerchantID); err != nil {
		return nil, err
	}
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	prod, err := s.repo.CreateProduct(ctx, productFromInput(in))
	if err != nil {
		return nil, err
	}

	s.record(ctx, "product.create", "product", strconv.FormatInt(prod.ID, 10), in)
	return prod, nil
}

// UpdateProduct изменяет карточку товара и его остаток на складе.
func (s *Service) UpdateProduct(ctx context.Context, p model.Principal, id int64, in ProductInput) (*model.Product, error) {
	if p.Role == model.RoleOutletStaff {
		return nil, ErrForbidden
	}
	current, err := s.GetProduct(ctx, p, id)
	if err != nil {
		return nil, err
	}
	in.MerchantID = current.MerchantID
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	prod := productFromInput(in)
	prod.ID = id
	prod.CreatedAt = current.CreatedAt
	if err := s.repo.UpdateProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.record(ctx, "product.update", "product", strconv.FormatInt(id, 10), in)
	return &prod, nil
}

// GetProduct возвращает товар, если он доступен пользователю.
func (s *Service) GetProduct(ctx context.Context, p model.Principal, id int64) (*model.Product, error) {
	prod, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkMerchant(p, prod.MerchantID); err != nil {
		return nil, err
	}
	return prod, nil
}

// ListProducts возвращает каталог в пределах доступа пользователя.
func (s *Service) ListProducts(ctx context.Context, p model.Principal, merchantID *int64, limit, offset int) ([]model.Product, error) {
	scope, err := merchantScope(p, merchantID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, scope, limit, offset)
}

// Availability возвращает доступный остаток товара: склад за вычетом активных заказов.
func (s *Service) Availability(ctx context.Context, p model.Principal, productID int64) (*model.Availability, error) {
	prod, err := s.GetProduct(ctx, p, productID)
	if err != nil {
		return nil, err
	}

	held, err := s.repo.GetHeldQuantity(ctx, productID)
	if err != nil {
		return nil, err
	}

	available := prod.Stock - held
	if available < 0 {
		available = 0
	}

	return &model.Availability{
		ProductID: productID,
		Stock:     prod.Stock,
		Held:      held,
		Available: available,
	}, nil
}

func validateProduct(in ProductInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.RentPrice.IsNegative() || in.SalePrice.IsNegative() || in.Deposit.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", validation.ErrInvalid)
	}
	return nil
}

func productFromInput(in ProductInput) model.Product {
	return model.Product{
		MerchantID: in.MerchantID,
		Name:       strings.TrimSpace(in.Name),
		Barcode:    strings.TrimSpace(in.Barcode),
		RentPrice:  in.RentPrice.Round(2),
		SalePrice:  in.SalePrice.Round(2),
		Deposit:    in.Deposit.Round(2),
		Stock:      in.Stock,
	}
}
