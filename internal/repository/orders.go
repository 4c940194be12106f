package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/validation"
)

const orderColumns = `id, number, merchant_id, outlet_id, customer_id, created_by, order_type, status,
	total_amount_cents, deposit_amount_cents, security_deposit_cents, damage_fee_cents,
	pickup_plan_at, return_plan_at, picked_up_at, returned_at, notes, created_at, updated_at`

// StatusChange описывает переход заказа в новый статус и поля, которые при этом меняются.
type StatusChange struct {
	From            model.OrderStatus
	To              model.OrderStatus
	PickedUpAt      *time.Time
	ReturnedAt      *time.Time
	SecurityDeposit *decimal.Decimal
	DamageFee       *decimal.Decimal
}

// CreateOrder сохраняет заказ с позициями и, если передан, первичный платёж.
// Остатки товаров блокируются на время транзакции; продажа сразу списывает товар со склада.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order, initial *model.Payment) (*model.Order, error) {
	var created *model.Order

	err := r.withRetry(ctx, func() error {
		res, err := r.createOrderTx(ctx, o, initial)
		if err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PostgresRepository) createOrderTx(ctx context.Context, o model.Order, initial *model.Payment) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range o.Items {
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT stock FROM products WHERE id = $1 AND merchant_id = $2 FOR UPDATE`,
			item.ProductID, o.MerchantID,
		).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %d", ErrNotFound, item.ProductID)
			}
			return nil, fmt.Errorf("lock product: %w", err)
		}

		held, err := heldQuantity(ctx, tx, item.ProductID)
		if err != nil {
			return nil, err
		}

		if stock-held < item.Quantity {
			return nil, fmt.Errorf("%w: product %d", ErrInsufficientStock, item.ProductID)
		}

		if o.Type == model.OrderTypeSale {
			if _, err := tx.Exec(ctx,
				`UPDATE products SET stock = stock - $2 WHERE id = $1`,
				item.ProductID, item.Quantity,
			); err != nil {
				return nil, fmt.Errorf("decrement stock: %w", err)
			}
		}
	}

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}
	o.Number = validation.FormatOrderNumber(o.OutletID, seq)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (number, merchant_id, outlet_id, customer_id, created_by, order_type, status,
			total_amount_cents, deposit_amount_cents, security_deposit_cents, damage_fee_cents,
			pickup_plan_at, return_plan_at, picked_up_at, returned_at, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id, created_at, updated_at`,
		o.Number, o.MerchantID, o.OutletID, o.CustomerID, o.CreatedBy, string(o.Type), string(o.Status),
		toCents(o.TotalAmount), toCents(o.DepositAmount), toCents(o.SecurityDeposit), toCents(o.DamageFee),
		o.PickupPlanAt, o.ReturnPlanAt, o.PickedUpAt, o.ReturnedAt, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents, deposit_cents, total_price_cents)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			o.ID, item.ProductID, item.Quantity, toCents(item.UnitPrice), toCents(item.Deposit), toCents(item.TotalPrice),
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if initial != nil {
		initial.OrderID = o.ID
		if _, err := insertPayment(ctx, tx, initial); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &o, nil
}

// GetOrder возвращает заказ вместе с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return r.getOrder(ctx, row)
}

// GetOrderByNumber возвращает заказ по номеру вместе с позициями.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
	return r.getOrder(ctx, row)
}

func (r *PostgresRepository) getOrder(ctx context.Context, row pgx.Row) (*model.Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price_cents, deposit_cents, total_price_cents
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                    model.OrderItem
			unitC, depositC, totalC int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &unitC, &depositC, &totalC); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.UnitPrice = fromCents(unitC)
		item.Deposit = fromCents(depositC)
		item.TotalPrice = fromCents(totalC)
		o.Items = append(o.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return o, nil
}

// ListOrders возвращает заказы по фильтру, начиная с самых новых. Позиции не загружаются.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.MerchantID != nil {
		add("merchant_id = $%d", *f.MerchantID)
	}
	if f.OutletID != nil {
		add("outlet_id = $%d", *f.OutletID)
	}
	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("order_type = $%d", string(f.Type))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, pageLimit(f.Limit), f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryOrders(ctx, query, args...)
}

// ListOrdersForPeriod возвращает заказы, созданные в периоде, и активные заказы
// с плановой выдачей в периоде. Правая граница периода не включается.
func (r *PostgresRepository) ListOrdersForPeriod(ctx context.Context, f model.PeriodOrdersFilter) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1::bigint IS NULL OR merchant_id = $1)
		   AND ($2::bigint IS NULL OR outlet_id = $2)
		   AND (
		     (created_at >= $3 AND created_at < $4)
		     OR (status IN ($5, $6) AND pickup_plan_at >= $3 AND pickup_plan_at < $4)
		   )
		 ORDER BY created_at, id`,
		f.MerchantID, f.OutletID, f.From, f.Until,
		string(model.OrderStatusReserved), string(model.OrderStatusPickuped),
	)
}

// ListOrdersForDashboard возвращает заказы, созданные начиная с since, и все активные заказы.
func (r *PostgresRepository) ListOrdersForDashboard(ctx context.Context, merchantID, outletID *int64, since time.Time) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1::bigint IS NULL OR merchant_id = $1)
		   AND ($2::bigint IS NULL OR outlet_id = $2)
		   AND (created_at >= $3 OR status IN ($4, $5))
		 ORDER BY created_at, id`,
		merchantID, outletID, since,
		string(model.OrderStatusReserved), string(model.OrderStatusPickuped),
	)
}

// ListOrdersForCalendar возвращает активные заказы проката, у которых плановая выдача
// или плановый возврат попадают в период.
func (r *PostgresRepository) ListOrdersForCalendar(ctx context.Context, f model.PeriodOrdersFilter) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1::bigint IS NULL OR merchant_id = $1)
		   AND ($2::bigint IS NULL OR outlet_id = $2)
		   AND order_type = $5
		   AND status IN ($6, $7)
		   AND (
		     (pickup_plan_at >= $3 AND pickup_plan_at < $4)
		     OR (return_plan_at >= $3 AND return_plan_at < $4)
		   )
		 ORDER BY id`,
		f.MerchantID, f.OutletID, f.From, f.Until, string(model.OrderTypeRent),
		string(model.OrderStatusReserved), string(model.OrderStatusPickuped),
	)
}

// UpdateOrderStatus переводит заказ в новый статус, если его текущий статус равен change.From.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, change StatusChange) error {
	var securityC, damageC *int64
	if change.SecurityDeposit != nil {
		v := toCents(*change.SecurityDeposit)
		securityC = &v
	}
	if change.DamageFee != nil {
		v := toCents(*change.DamageFee)
		damageC = &v
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $3,
		     picked_up_at = COALESCE($4, picked_up_at),
		     returned_at = COALESCE($5, returned_at),
		     security_deposit_cents = COALESCE($6, security_deposit_cents),
		     damage_fee_cents = COALESCE($7, damage_fee_cents),
		     updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, string(change.From), string(change.To), change.PickedUpAt, change.ReturnedAt, securityC, damageC,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// CancelStaleReservations отменяет резервы, плановая выдача которых раньше before,
// и возвращает идентификаторы отменённых заказов.
func (r *PostgresRepository) CancelStaleReservations(ctx context.Context, before time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = now()
		 WHERE status = $2 AND pickup_plan_at IS NOT NULL AND pickup_plan_at < $3
		 RETURNING id`,
		string(model.OrderStatusCancelled), string(model.OrderStatusReserved), before,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel stale reservations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                                     model.Order
		orderType, status                     string
		totalC, depositC, securityC, damageC int64
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.MerchantID, &o.OutletID, &o.CustomerID, &o.CreatedBy, &orderType, &status,
		&totalC, &depositC, &securityC, &damageC,
		&o.PickupPlanAt, &o.ReturnPlanAt, &o.PickedUpAt, &o.ReturnedAt, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Type = model.OrderType(orderType)
	o.Status = model.OrderStatus(status)
	o.TotalAmount = fromCents(totalC)
	o.DepositAmount = fromCents(depositC)
	o.SecurityDeposit = fromCents(securityC)
	o.DamageFee = fromCents(damageC)

	return &o, nil
}
