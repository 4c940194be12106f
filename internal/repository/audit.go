package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmeshcher/rentshop/internal/model"
)

// CreateAuditLog сохраняет запись журнала изменений.
func (r *PostgresRepository) CreateAuditLog(ctx context.Context, e model.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (request_id, user_id, merchant_id, action, entity_type, entity_id, details, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.RequestID, e.UserID, e.MerchantID, e.Action, e.EntityType, e.EntityID, e.Details, e.IPAddress, e.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs возвращает записи журнала по фильтру, начиная с самых новых.
func (r *PostgresRepository) ListAuditLogs(ctx context.Context, f model.AuditFilter) ([]model.AuditLog, error) {
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
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	query := `SELECT id, request_id, user_id, merchant_id, action, entity_type, entity_id, details, ip_address, user_agent, created_at
		FROM audit_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, pageLimit(f.Limit), f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit logs: %w", err)
	}
	defer rows.Close()

	var res []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		if err := rows.Scan(&e.ID, &e.RequestID, &e.UserID, &e.MerchantID, &e.Action, &e.EntityType,
			&e.EntityID, &e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
