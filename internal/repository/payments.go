package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentshop/internal/model"
)

// PaymentForSync описывает карточный платёж, ожидающий подтверждения шлюза.
type PaymentForSync struct {
	ID        int64
	Reference string
}

// CreatePayment сохраняет платёж по заказу.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p model.Payment) (*model.Payment, error) {
	created, err := insertPayment(ctx, r.pool, &p)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertPayment(ctx context.Context, q querier, p *model.Payment) (*model.Payment, error) {
	err := q.QueryRow(ctx,
		`INSERT INTO payments (order_id, amount_cents, method, payment_type, status, reference, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		p.OrderID, toCents(p.Amount), string(p.Method), string(p.Type), string(p.Status), p.Reference, p.ProcessedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}

// ListPaymentsByOrder возвращает платежи заказа в порядке создания.
func (r *PostgresRepository) ListPaymentsByOrder(ctx context.Context, orderID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, amount_cents, method, payment_type, status, reference, processed_at, created_at
		 FROM payments
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetPaymentsForSync возвращает ожидающие карточные платежи, самые старые первыми.
func (r *PostgresRepository) GetPaymentsForSync(ctx context.Context, limit int) ([]PaymentForSync, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, reference
		 FROM payments
		 WHERE status = $1 AND method = $2 AND reference <> ''
		 ORDER BY created_at
		 LIMIT $3`,
		string(model.PaymentStatusPending),
		string(model.PaymentMethodCard),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments for sync: %w", err)
	}
	defer rows.Close()

	var res []PaymentForSync
	for rows.Next() {
		var p PaymentForSync
		if err := rows.Scan(&p.ID, &p.Reference); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdatePaymentStatus обновляет статус платежа. processedAt сохраняется только для конечных статусов.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus, processedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $2, processed_at = COALESCE($3, processed_at) WHERE id = $1`,
		id, string(status), processedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p                     model.Payment
		amountC               int64
		method, ptype, status string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &amountC, &method, &ptype, &status, &p.Reference, &p.ProcessedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Amount = fromCents(amountC)
	p.Method = model.PaymentMethod(method)
	p.Type = model.PaymentType(ptype)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
