// Package audit переносит сведения о запросе для журнала изменений через context.Context.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mmeshcher/rentshop/internal/model"
)

type contextKey struct{}

// Info содержит атрибуты запроса, которые попадают в журнал изменений.
type Info struct {
	RequestID  string
	UserID     *int64
	MerchantID *int64
	IPAddress  string
	UserAgent  string
}

// NewRequestID генерирует идентификатор запроса.
func NewRequestID() string {
	return uuid.NewString()
}

// WithInfo возвращает контекст, содержащий сведения о запросе.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext извлекает сведения о запросе. Если их нет, возвращается Info
// с новым идентификатором, чтобы записи фоновых задач тоже были различимы.
func FromContext(ctx context.Context) Info {
	if info, ok := ctx.Value(contextKey{}).(Info); ok {
		return info
	}
	return Info{RequestID: NewRequestID()}
}

// WithPrincipal дополняет сведения о запросе данными аутентифицированного пользователя.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	info := FromContext(ctx)
	uid := p.UserID
	info.UserID = &uid
	info.MerchantID = p.MerchantID
	return WithInfo(ctx, info)
}

// Entry формирует запись журнала для действия над сущностью.
// details сериализуется в JSON; ошибки сериализации не мешают записи.
func Entry(ctx context.Context, action, entityType, entityID string, details any) model.AuditLog {
	info := FromContext(ctx)

	var raw string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			raw = string(b)
		}
	}

	return model.AuditLog{
		RequestID:  info.RequestID,
		UserID:     info.UserID,
		MerchantID: info.MerchantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    raw,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	}
}
