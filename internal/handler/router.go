package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/rentshop/internal/middleware"
	"github.com/mmeshcher/rentshop/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса проката.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.RequestInfo)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	managers := custommiddleware.RequireRole(model.RoleAdmin, model.RoleMerchant)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)
			r.With(managers).Post("/users", h.CreateUser)

			r.Route("/merchants", func(r chi.Router) {
				r.Get("/", h.ListMerchants)
				r.With(custommiddleware.RequireRole(model.RoleAdmin)).Post("/", h.CreateMerchant)
				r.Get("/{id}", h.GetMerchant)
			})

			r.Route("/outlets", func(r chi.Router) {
				r.Get("/", h.ListOutlets)
				r.With(managers).Post("/", h.CreateOutlet)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
				r.Put("/{id}", h.UpdateCustomer)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.With(managers).Post("/", h.CreateProduct)
				r.Get("/{id}", h.GetProduct)
				r.With(managers).Put("/{id}", h.UpdateProduct)
				r.Get("/{id}/availability", h.ProductAvailability)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListOrders)
				r.Post("/", h.CreateOrder)
				r.Get("/by-number/{number}", h.GetOrderByNumber)
				r.Get("/{id}", h.GetOrder)
				r.Post("/{id}/pickup", h.PickupOrder)
				r.Post("/{id}/return", h.ReturnOrder)
				r.Post("/{id}/complete", h.CompleteOrder)
				r.Post("/{id}/cancel", h.CancelOrder)
				r.Get("/{id}/payments", h.ListPayments)
				r.Post("/{id}/payments", h.AddPayment)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/income", h.Income)
				r.Get("/income/export", h.ExportIncome)
				r.Get("/dashboard", h.Dashboard)
				r.Get("/calendar", h.Calendar)
			})

			r.With(managers).Get("/audit-logs", h.AuditLogs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
