// Package model содержит доменные сущности сервиса проката.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleMerchant    Role = "MERCHANT"
	RoleOutletStaff Role = "OUTLET_STAFF"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMerchant, RoleOutletStaff:
		return true
	}
	return false
}

// User представляет учётную запись сотрудника или администратора.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	MerchantID   *int64
	OutletID     *int64
	CreatedAt    time.Time
}

// Principal описывает аутентифицированного пользователя текущего запроса.
type Principal struct {
	UserID     int64
	Role       Role
	MerchantID *int64
	OutletID   *int64
}

// IsAdmin сообщает, имеет ли пользователь доступ ко всем арендаторам.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Merchant представляет арендатора платформы.
type Merchant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

// Outlet представляет точку выдачи, принадлежащую арендатору.
type Outlet struct {
	ID         int64     `json:"id"`
	MerchantID int64     `json:"merchantId"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Customer представляет клиента арендатора.
type Customer struct {
	ID         int64     `json:"id"`
	MerchantID int64     `json:"merchantId"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Product описывает товар, доступный для проката или продажи.
type Product struct {
	ID         int64           `json:"id"`
	MerchantID int64           `json:"merchantId"`
	Name       string          `json:"name"`
	Barcode    string          `json:"barcode,omitempty"`
	RentPrice  decimal.Decimal `json:"rentPrice"`
	SalePrice  decimal.Decimal `json:"salePrice"`
	Deposit    decimal.Decimal `json:"deposit"`
	Stock      int             `json:"stock"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Availability содержит остаток товара с учётом активных заказов.
type Availability struct {
	ProductID int64 `json:"productId"`
	Stock     int   `json:"stock"`
	Held      int   `json:"held"`
	Available int   `json:"available"`
}
