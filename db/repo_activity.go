package db

import (
	"context"
	"fmt"

	"school_asset_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// appendActivity 在调用方的事务里追加一条审计流水
func appendActivity(tx *gorm.DB, requestID, action, performedBy, notes string) error {
	entry := &models.ActivityLog{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Action:      action,
		PerformedBy: performedBy,
		Notes:       notes,
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// ActivityRow 带操作人姓名的流水行
type ActivityRow struct {
	models.ActivityLog
	PerformerName string `json:"performerName"`
}

func (r *Repo) ListActivityByRequest(ctx context.Context, requestID string) ([]ActivityRow, error) {
	var rows []ActivityRow
	err := r.DB.WithContext(ctx).
		Table(models.ActivityTable+" a").
		Joins("LEFT JOIN "+models.UserTable+" u ON u.id = a.performed_by").
		Where("a.request_id = ?", requestID).
		Select("a.*, u.full_name AS performer_name").
		Order("a.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RecentActivity 报表页的“最近动态”
func (r *Repo) RecentActivity(ctx context.Context, limit int) ([]ActivityRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []ActivityRow
	err := r.DB.WithContext(ctx).
		Table(models.ActivityTable+" a").
		Joins("LEFT JOIN "+models.UserTable+" u ON u.id = a.performed_by").
		Select("a.*, u.full_name AS performer_name").
		Order("a.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
