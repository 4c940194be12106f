package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/service"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type userResponse struct {
	ID         int64      `json:"id"`
	Login      string     `json:"login"`
	Role       model.Role `json:"role"`
	MerchantID *int64     `json:"merchantId,omitempty"`
	OutletID   *int64     `json:"outletId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Login:      u.Login,
		Role:       u.Role,
		MerchantID: u.MerchantID,
		OutletID:   u.OutletID,
		CreatedAt:  u.CreatedAt,
	}
}

func principalOf(u *model.User) model.Principal {
	return model.Principal{
		UserID:     u.ID,
		Role:       u.Role,
		MerchantID: u.MerchantID,
		OutletID:   u.OutletID,
	}
}

// Register регистрирует первого пользователя системы (администратора) и сразу авторизует его.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Login == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "login and password are required")
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authorize(w, u)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Login == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "login and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authorize(w, u)
}

func (h *Handler) authorize(w http.ResponseWriter, u *model.User) {
	token, err := h.authMiddleware.SetAuthCookie(w, principalOf(u))
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.Int64("userID", u.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(u)})
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type createUserRequest struct {
	Login      string     `json:"login"`
	Password   string     `json:"password"`
	Role       model.Role `json:"role"`
	MerchantID *int64     `json:"merchantId"`
	OutletID   *int64     `json:"outletId"`
}

// CreateUser создаёт учётную запись сотрудника.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.CreateUser(r.Context(), p, service.NewUser{
		Login:      req.Login,
		Password:   req.Password,
		Role:       req.Role,
		MerchantID: req.MerchantID,
		OutletID:   req.OutletID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}
