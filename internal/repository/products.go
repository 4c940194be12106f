package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentshop/internal/model"
)

const productColumns = `id, merchant_id, name, barcode, rent_price_cents, sale_price_cents, deposit_cents, stock, created_at`

// CreateProduct создаёт товар арендатора.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (merchant_id, name, barcode, rent_price_cents, sale_price_cents, deposit_cents, stock)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		p.MerchantID, p.Name, p.Barcode, toCents(p.RentPrice), toCents(p.SalePrice), toCents(p.Deposit), p.Stock,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// UpdateProduct обновляет цены и остаток товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $2, barcode = $3, rent_price_cents = $4, sale_price_cents = $5, deposit_cents = $6, stock = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.Barcode, toCents(p.RentPrice), toCents(p.SalePrice), toCents(p.Deposit), p.Stock,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts возвращает товары арендатора.
func (r *PostgresRepository) ListProducts(ctx context.Context, merchantID *int64, limit, offset int) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE ($1::bigint IS NULL OR merchant_id = $1)
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		merchantID, pageLimit(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetHeldQuantity возвращает количество товара, удерживаемое зарезервированными и выданными заказами.
func (r *PostgresRepository) GetHeldQuantity(ctx context.Context, productID int64) (int, error) {
	return heldQuantity(ctx, r.pool, productID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func heldQuantity(ctx context.Context, q querier, productID int64) (int, error) {
	var held int
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(oi.quantity), 0)
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE oi.product_id = $1 AND o.status IN ($2, $3)`,
		productID, string(model.OrderStatusReserved), string(model.OrderStatusPickuped),
	).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("sum held quantity: %w", err)
	}
	return held, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p                       model.Product
		rentC, saleC, depositC int64
	)
	if err := row.Scan(&p.ID, &p.MerchantID, &p.Name, &p.Barcode, &rentC, &saleC, &depositC, &p.Stock, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.RentPrice = fromCents(rentC)
	p.SalePrice = fromCents(saleC)
	p.Deposit = fromCents(depositC)
	return &p, nil
}
