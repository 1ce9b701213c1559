// db/repo_items.go
package db

import (
	"context"
	"strings"
	"time"

	"school_asset_loan/models"

	"gorm.io/gorm"
)

// Items

func (r *Repo) CreateItem(ctx context.Context, it *models.Item) error {
	switch it.Type {
	case models.ItemTypeKey, models.ItemTypeProjector:
	default:
		return ErrBadStatus
	}
	if it.Status == "" {
		it.Status = models.ItemAvailable
	}
	return r.DB.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindItemByID(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

type UpdateItemInput struct {
	Name           string
	Type           string
	RoomName       string
	ConditionNotes string
}

func (r *Repo) UpdateItem(ctx context.Context, id string, in UpdateItemInput) (*models.Item, error) {
	if in.Type != "" && in.Type != models.ItemTypeKey && in.Type != models.ItemTypeProjector {
		return nil, ErrBadStatus
	}
	updates := map[string]any{"condition_notes": in.ConditionNotes}
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Type != "" {
		updates["type"] = in.Type
	}
	if in.RoomName != "" {
		updates["room_name"] = in.RoomName
	}
	res := r.DB.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindItemByID(ctx, id)
}

// SetItemStatus 人工改状态（含 damaged 覆盖与解除）
func (r *Repo) SetItemStatus(ctx context.Context, id, status string) (*models.Item, error) {
	switch status {
	case models.ItemAvailable, models.ItemBorrowed, models.ItemOverdue, models.ItemDamaged:
	default:
		return nil, ErrBadStatus
	}
	res := r.DB.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindItemByID(ctx, id)
}

// DeleteItem 级联：先删流水，再删请求，最后删物品
func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&models.BorrowingRequest{}).Select("id").Where("item_id = ?", id)
		if err := tx.Where("request_id IN (?)", sub).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.BorrowingRequest{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Item{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

type ItemsQuery struct {
	Q      string // 模糊搜索：name/room
	Status string
	Type   string
	Page   int
	Size   int
}

type PagedItems struct {
	Total int64         `json:"total"`
	Items []models.Item `json:"items"`
}

func (r *Repo) ListItems(ctx context.Context, q ItemsQuery) (*PagedItems, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 50
	}

	tx := r.DB.WithContext(ctx).Model(&models.Item{})
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(room_name) LIKE ?", pat, pat)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Item
	if err := tx.
		Order("created_at DESC").
		Offset((q.Page - 1) * q.Size).
		Limit(q.Size).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &PagedItems{Total: total, Items: items}, nil
}

// AdminItemRow 管理视图：物品 + 当前占用它的请求（可空）
type AdminItemRow struct {
	models.Item
	RequestID    *string    `json:"requestId,omitempty"`
	BorrowerID   *string    `json:"borrowerId,omitempty"`
	BorrowerName *string    `json:"borrowerName,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Overdue      bool       `json:"overdue"`
}

// ListItemsWithCurrentRequest 两步查询代替 DISTINCT ON，方言无关
func (r *Repo) ListItemsWithCurrentRequest(ctx context.Context, q ItemsQuery) ([]AdminItemRow, error) {
	paged, err := r.ListItems(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := make([]AdminItemRow, 0, len(paged.Items))
	ids := make([]string, 0, len(paged.Items))
	for _, it := range paged.Items {
		rows = append(rows, AdminItemRow{Item: it})
		ids = append(ids, it.ID)
	}
	if len(ids) == 0 {
		return rows, nil
	}

	type openRow struct {
		models.BorrowingRequest
		BorrowerName string
	}
	var open []openRow
	if err := r.DB.WithContext(ctx).
		Table(models.RequestTable+" q").
		Joins("JOIN "+models.UserTable+" u ON u.id = q.borrower_id").
		Where("q.item_id IN ?", ids).
		Where("q.status IN ?", []string{models.RequestApproved, models.RequestPendingReturn}).
		Select("q.*, u.full_name AS borrower_name").
		Order("q.start_time ASC").
		Scan(&open).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	byItem := make(map[string]openRow, len(open))
	for _, o := range open {
		if _, seen := byItem[o.ItemID]; !seen {
			byItem[o.ItemID] = o
		}
	}
	for i := range rows {
		o, ok := byItem[rows[i].Item.ID]
		if !ok {
			continue
		}
		id, bid, name := o.BorrowingRequest.ID, o.BorrowerID, o.BorrowerName
		st, en := o.StartTime, o.EndTime
		rows[i].RequestID = &id
		rows[i].BorrowerID = &bid
		rows[i].BorrowerName = &name
		rows[i].StartTime = &st
		rows[i].EndTime = &en
		rows[i].Overdue = o.Status == models.RequestApproved && o.EndTime.Before(now)
	}
	return rows, nil
}

// deriveItemStatus 从请求集合推导物品状态；damaged 人工覆盖不被重算清除
func deriveItemStatus(tx *gorm.DB, item *models.Item, now time.Time) (string, error) {
	if item.Status == models.ItemDamaged {
		return models.ItemDamaged, nil
	}
	var open []models.BorrowingRequest
	if err := tx.
		Where("item_id = ? AND status IN ?", item.ID,
			[]string{models.RequestApproved, models.RequestPendingReturn}).
		Find(&open).Error; err != nil {
		return "", err
	}
	if len(open) == 0 {
		return models.ItemAvailable, nil
	}
	for _, q := range open {
		if q.Status == models.RequestApproved && q.EndTime.Before(now) {
			return models.ItemOverdue, nil
		}
	}
	return models.ItemBorrowed, nil
}

// ReconcileItemStatus 修复操作：全量重算一件物品的状态投影
func (r *Repo) ReconcileItemStatus(ctx context.Context, itemID string) (*models.Item, error) {
	var out *models.Item
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := lockForUpdate(tx).First(&item, "id = ?", itemID).Error; err != nil {
			return err
		}
		derived, err := deriveItemStatus(tx, &item, time.Now().UTC())
		if err != nil {
			return err
		}
		if derived != item.Status {
			if err := tx.Model(&models.Item{}).
				Where("id = ?", item.ID).
				Update("status", derived).Error; err != nil {
				return err
			}
			item.Status = derived
		}
		out = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReconcileAllItems 周期清扫用；返回被纠正的物品数
func (r *Repo) ReconcileAllItems(ctx context.Context) (int, error) {
	var ids []string
	if err := r.DB.WithContext(ctx).Model(&models.Item{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range ids {
		var before models.Item
		if err := r.DB.WithContext(ctx).First(&before, "id = ?", id).Error; err != nil {
			return fixed, err
		}
		after, err := r.ReconcileItemStatus(ctx, id)
		if err != nil {
			return fixed, err
		}
		if after.Status != before.Status {
			fixed++
		}
	}
	return fixed, nil
}
