package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentshop/internal/model"
)

// CreateMerchant создаёт арендатора.
func (r *PostgresRepository) CreateMerchant(ctx context.Context, m model.Merchant) (*model.Merchant, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO merchants (name, email, phone) VALUES ($1, $2, $3) RETURNING id, created_at`,
		m.Name, m.Email, m.Phone,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create merchant: %w", err)
	}
	return &m, nil
}

// GetMerchant возвращает арендатора по идентификатору.
func (r *PostgresRepository) GetMerchant(ctx context.Context, id int64) (*model.Merchant, error) {
	var m model.Merchant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, created_at FROM merchants WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return &m, nil
}

// ListMerchants возвращает всех арендаторов.
func (r *PostgresRepository) ListMerchants(ctx context.Context) ([]model.Merchant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, phone, created_at FROM merchants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select merchants: %w", err)
	}
	defer rows.Close()

	var res []model.Merchant
	for rows.Next() {
		var m model.Merchant
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateOutlet создаёт точку выдачи арендатора.
func (r *PostgresRepository) CreateOutlet(ctx context.Context, o model.Outlet) (*model.Outlet, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO outlets (merchant_id, name, address, phone) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		o.MerchantID, o.Name, o.Address, o.Phone,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create outlet: %w", err)
	}
	return &o, nil
}

// GetOutlet возвращает точку выдачи по идентификатору.
func (r *PostgresRepository) GetOutlet(ctx context.Context, id int64) (*model.Outlet, error) {
	var o model.Outlet
	err := r.pool.QueryRow(ctx,
		`SELECT id, merchant_id, name, address, phone, created_at FROM outlets WHERE id = $1`, id,
	).Scan(&o.ID, &o.MerchantID, &o.Name, &o.Address, &o.Phone, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get outlet: %w", err)
	}
	return &o, nil
}

// ListOutlets возвращает точки выдачи; при merchantID == nil возвращаются точки всех арендаторов.
func (r *PostgresRepository) ListOutlets(ctx context.Context, merchantID *int64) ([]model.Outlet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, merchant_id, name, address, phone, created_at
		 FROM outlets
		 WHERE ($1::bigint IS NULL OR merchant_id = $1)
		 ORDER BY id`,
		merchantID,
	)
	if err != nil {
		return nil, fmt.Errorf("select outlets: %w", err)
	}
	defer rows.Close()

	var res []model.Outlet
	for rows.Next() {
		var o model.Outlet
		if err := rows.Scan(&o.ID, &o.MerchantID, &o.Name, &o.Address, &o.Phone, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outlet: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
