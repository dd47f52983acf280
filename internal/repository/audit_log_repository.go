package repository

import (
	"context"
	"time"

	"officeshop/internal/domain/model"
)

// 監査ログの絞り込み条件（nilは条件なし）
type AuditLogFilter struct {
	ActorUserID *int64
	Action      *model.AuditAction
	ResourceID  *int64
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	// 新しい順
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
