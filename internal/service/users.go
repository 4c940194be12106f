package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/validation"
)

// NewUser содержит данные для создания учётной записи.
type NewUser struct {
	Login      string     `validate:"required,min=3,max=64"`
	Password   string     `validate:"required,min=6"`
	Role       model.Role `validate:"required,oneof=ADMIN MERCHANT OUTLET_STAFF"`
	MerchantID *int64
	OutletID   *int64
}

// RegisterUser регистрирует первого пользователя системы как администратора.
// После появления хотя бы одного пользователя регистрация закрыта.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (*model.User, error) {
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrRegistrationClosed
	}

	return s.createUser(ctx, NewUser{Login: login, Password: password, Role: model.RoleAdmin})
}

// AuthenticateUser проверяет логин и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !verifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// CreateUser создаёт учётную запись. Администратор создаёт любые учётные записи,
// владелец арендатора может создавать только сотрудников своих точек.
func (s *Service) CreateUser(ctx context.Context, p model.Principal, in NewUser) (*model.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	switch p.Role {
	case model.RoleAdmin:
	case model.RoleMerchant:
		if in.Role != model.RoleOutletStaff {
			return nil, ErrForbidden
		}
		if in.MerchantID == nil {
			in.MerchantID = p.MerchantID
		}
		if err := checkMerchant(p, derefID(in.MerchantID)); err != nil {
			return nil, err
		}
	default:
		return nil, ErrForbidden
	}

	switch in.Role {
	case model.RoleAdmin:
		in.MerchantID, in.OutletID = nil, nil
	case model.RoleMerchant:
		if in.MerchantID == nil {
			return nil, fmt.Errorf("%w: merchant user requires merchantId", validation.ErrInvalid)
		}
		if _, err := s.repo.GetMerchant(ctx, *in.MerchantID); err != nil {
			return nil, err
		}
		in.OutletID = nil
	case model.RoleOutletStaff:
		if in.MerchantID == nil || in.OutletID == nil {
			return nil, fmt.Errorf("%w: outlet staff requires merchantId and outletId", validation.ErrInvalid)
		}
		outlet, err := s.repo.GetOutlet(ctx, *in.OutletID)
		if err != nil {
			return nil, err
		}
		if outlet.MerchantID != *in.MerchantID {
			return nil, fmt.Errorf("%w: outlet does not belong to merchant", validation.ErrInvalid)
		}
	}

	return s.createUser(ctx, in)
}

func (s *Service) createUser(ctx context.Context, in NewUser) (*model.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := model.User{
		Login:        strings.TrimSpace(in.Login),
		PasswordHash: hashed,
		Role:         in.Role,
		MerchantID:   in.MerchantID,
		OutletID:     in.OutletID,
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id

	s.record(ctx, "user.create", "user", strconv.FormatInt(id, 10), map[string]any{
		"login": u.Login,
		"role":  u.Role,
	})

	return &u, nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func verifyPassword(hash []byte, password string) bool {
	if len(hash) == 0 || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
