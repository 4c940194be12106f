package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/service"
)

type merchantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateMerchant создаёт арендатора.
func (h *Handler) CreateMerchant(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req merchantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.service.CreateMerchant(r.Context(), p, service.NewMerchant(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// ListMerchants возвращает доступных пользователю арендаторов.
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	merchants, err := h.service.ListMerchants(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, merchants)
}

// GetMerchant возвращает арендатора по идентификатору.
func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	m, err := h.service.GetMerchant(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

type outletRequest struct {
	MerchantID int64  `json:"merchantId"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

// CreateOutlet создаёт точку выдачи.
func (h *Handler) CreateOutlet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req outletRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.service.CreateOutlet(r.Context(), p, service.NewOutlet(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

// ListOutlets возвращает точки выдачи.
func (h *Handler) ListOutlets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	merchantID, err := queryID(r, "merchantId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	outlets, err := h.service.ListOutlets(r.Context(), p, merchantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, outlets)
}

type customerRequest struct {
	MerchantID int64  `json:"merchantId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// CreateCustomer создаёт клиента.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.CreateCustomer(r.Context(), p, service.CustomerInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// UpdateCustomer изменяет данные клиента.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.UpdateCustomer(r.Context(), p, id, service.CustomerInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// GetCustomer возвращает клиента.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCustomer(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListCustomers ищет клиентов по параметру q.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	merchantID, err := queryID(r, "merchantId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	customers, err := h.service.ListCustomers(r.Context(), p, merchantID, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, customers)
}

type productRequest struct {
	MerchantID int64           `json:"merchantId"`
	Name       string          `json:"name"`
	Barcode    string          `json:"barcode"`
	RentPrice  decimal.Decimal `json:"rentPrice"`
	SalePrice  decimal.Decimal `json:"salePrice"`
	Deposit    decimal.Decimal `json:"deposit"`
	Stock      int             `json:"stock"`
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prod, err := h.service.CreateProduct(r.Context(), p, service.ProductInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, prod)
}

// UpdateProduct изменяет карточку товара.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prod, err := h.service.UpdateProduct(r.Context(), p, id, service.ProductInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, prod)
}

// GetProduct возвращает товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	prod, err := h.service.GetProduct(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, prod)
}

// ListProducts возвращает каталог.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	merchantID, err := queryID(r, "merchantId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	products, err := h.service.ListProducts(r.Context(), p, merchantID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// ProductAvailability возвращает доступный остаток товара.
func (h *Handler) ProductAvailability(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a, err := h.service.Availability(r.Context(), p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}
