package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentshop/internal/model"
)

// CreateCustomer создаёт клиента арендатора.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (merchant_id, first_name, last_name, phone, email)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		c.MerchantID, c.FirstName, c.LastName, c.Phone, c.Email,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerExists, c.Phone)
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &c, nil
}

// UpdateCustomer обновляет контактные данные клиента.
func (r *PostgresRepository) UpdateCustomer(ctx context.Context, c model.Customer) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET first_name = $2, last_name = $3, phone = $4, email = $5 WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.Phone, c.Email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCustomerExists, c.Phone)
		}
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCustomer возвращает клиента по идентификатору.
func (r *PostgresRepository) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx,
		`SELECT id, merchant_id, first_name, last_name, phone, email, created_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.MerchantID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// ListCustomers возвращает клиентов арендатора, отфильтрованных по имени или телефону.
func (r *PostgresRepository) ListCustomers(ctx context.Context, merchantID *int64, search string, limit, offset int) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, merchant_id, first_name, last_name, phone, email, created_at
		 FROM customers
		 WHERE ($1::bigint IS NULL OR merchant_id = $1)
		   AND ($2 = '' OR first_name ILIKE '%' || $2 || '%' OR last_name ILIKE '%' || $2 || '%' OR phone LIKE '%' || $2 || '%')
		 ORDER BY id DESC
		 LIMIT $3 OFFSET $4`,
		merchantID, search, pageLimit(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var res []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.MerchantID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
