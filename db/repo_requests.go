package db

import (
	"context"
	"strings"
	"time"

	"school_asset_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor 一次操作评估一次权限，不在各处散落角色判断
type Actor struct {
	ID   string
	Name string
	Role string
}

func (a Actor) CanApprove() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleTeacher
}

// Event drives the request state machine.
type Event string

const (
	EventApprove      Event = "approve"
	EventReject       Event = "reject"
	EventSubmitReturn Event = "submit_return"
	EventVerifyReturn Event = "verify_return"
)

// transitions: (current status, event) -> next status. Everything not listed
// here fails with ErrInvalidTransition and mutates nothing.
var transitions = map[string]map[Event]string{
	models.RequestPending: {
		EventApprove: models.RequestApproved,
		EventReject:  models.RequestRejected,
	},
	models.RequestApproved: {
		EventSubmitReturn: models.RequestPendingReturn,
	},
	models.RequestPendingReturn: {
		EventVerifyReturn: models.RequestReturned,
	},
}

// TransitionPayload carries the per-event optional fields.
type TransitionPayload struct {
	Notes           string // approve/reject notes
	ReturnCondition string
	ReturnPhotoURL  string // mandatory for submit_return
}

// findConflict 在给定事务里找与 [start,end) 重叠的占用请求。
// 查询用严格不等式，首尾相接（end == start）不会被选中。
func findConflict(tx *gorm.DB, itemID string, start, end time.Time) (*models.BorrowingRequest, error) {
	var existing []models.BorrowingRequest
	if err := tx.
		Where("item_id = ? AND status IN ?", itemID, models.ActiveRequestStatuses).
		Where("start_time < ? AND end_time > ?", end, start).
		Order("start_time ASC").
		Find(&existing).Error; err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Overlaps(start, end) {
			return &existing[i], nil
		}
	}
	return nil, nil
}

// CheckConflict 只读预检，给前端的 availability 接口用
func (r *Repo) CheckConflict(ctx context.Context, itemID string, start, end time.Time) (*models.BorrowingRequest, error) {
	if !start.Before(end) {
		return nil, ErrInvalidTimeRange
	}
	return findConflict(r.DB.WithContext(ctx), itemID, start, end)
}

type CreateRequestInput struct {
	ItemID    string
	Purpose   string
	StartTime time.Time
	EndTime   time.Time
}

// CreateRequest 借用申请：锁物品行 → 冲突检查 → 建请求 → 记流水，单事务。
// 原型里 check-then-create 不是原子的，这里靠行锁把并发提交串行化。
func (r *Repo) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*models.BorrowingRequest, error) {
	if !in.StartTime.Before(in.EndTime) {
		return nil, ErrInvalidTimeRange
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, gorm.ErrInvalidData
	}

	var req *models.BorrowingRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.Item
		if err := lockForUpdate(tx).First(&it, "id = ?", in.ItemID).Error; err != nil {
			return err
		}
		conflicting, err := findConflict(tx, it.ID, in.StartTime, in.EndTime)
		if err != nil {
			return err
		}
		if conflicting != nil {
			return &ConflictError{
				RequestID: conflicting.ID,
				Start:     conflicting.StartTime,
				End:       conflicting.EndTime,
			}
		}

		q := &models.BorrowingRequest{
			ID:          uuid.NewString(),
			ItemID:      it.ID,
			BorrowerID:  actor.ID,
			Purpose:     in.Purpose,
			RequestedAt: time.Now().UTC(),
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
			Status:      models.RequestPending,
		}
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		if err := appendActivity(tx, q.ID, models.ActionRequest, actor.ID, "Requested to borrow "+it.Name); err != nil {
			return err
		}
		req = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Transition 状态机唯一入口：守卫 → 改 request 行 → 改 item 行 → 记流水，单事务。
func (r *Repo) Transition(ctx context.Context, actor Actor, requestID string, ev Event, p TransitionPayload) (*models.BorrowingRequest, error) {
	// 没有照片的归还申请在任何状态改动之前就拒绝
	if ev == EventSubmitReturn && p.ReturnPhotoURL == "" {
		return nil, ErrPhotoRequired
	}

	var out *models.BorrowingRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.BorrowingRequest
		if err := lockForUpdate(tx).First(&req, "id = ?", requestID).Error; err != nil {
			return err
		}
		next, ok := transitions[req.Status][ev]
		if !ok {
			return ErrInvalidTransition
		}
		switch ev {
		case EventApprove, EventReject, EventVerifyReturn:
			if !actor.CanApprove() {
				return ErrForbidden
			}
		case EventSubmitReturn:
			if req.BorrowerID != actor.ID {
				return ErrForbidden
			}
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": next}
		var action, notes string

		switch ev {
		case EventApprove:
			// 物品必须仍可借出；同一物品的第二个并发 approve 在这里被挡下
			var it models.Item
			if err := lockForUpdate(tx).First(&it, "id = ?", req.ItemID).Error; err != nil {
				return err
			}
			if it.Status != models.ItemAvailable {
				return ErrItemUnavailable
			}
			updates["approved_by"] = actor.ID
			updates["approved_at"] = &now
			updates["approval_notes"] = p.Notes
			if err := tx.Model(&models.Item{}).
				Where("id = ?", it.ID).
				Update("status", models.ItemBorrowed).Error; err != nil {
				return err
			}
			action, notes = models.ActionApprove, p.Notes
		case EventReject:
			updates["approved_by"] = actor.ID
			updates["approved_at"] = &now
			updates["approval_notes"] = p.Notes
			action, notes = models.ActionReject, p.Notes
		case EventSubmitReturn:
			updates["returned_at"] = &now
			updates["return_condition"] = p.ReturnCondition
			updates["return_photo_url"] = p.ReturnPhotoURL
			action = models.ActionReturnRequest
			notes = "Return submitted"
			if p.ReturnCondition != "" {
				notes += ". Condition: " + p.ReturnCondition
			}
		case EventVerifyReturn:
			// damaged 是人工覆盖，验收归还不清除它
			if err := tx.Model(&models.Item{}).
				Where("id = ? AND status <> ?", req.ItemID, models.ItemDamaged).
				Update("status", models.ItemAvailable).Error; err != nil {
				return err
			}
			action, notes = models.ActionVerifyReturn, "Return verified"
		}

		if err := tx.Model(&models.BorrowingRequest{}).
			Where("id = ?", req.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		if err := appendActivity(tx, req.ID, action, actor.ID, notes); err != nil {
			return err
		}
		if err := tx.First(&req, "id = ?", req.ID).Error; err != nil {
			return err
		}
		out = &req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// 便捷包装，controller 用这些
func (r *Repo) ApproveRequest(ctx context.Context, actor Actor, id, notes string) (*models.BorrowingRequest, error) {
	return r.Transition(ctx, actor, id, EventApprove, TransitionPayload{Notes: notes})
}

func (r *Repo) RejectRequest(ctx context.Context, actor Actor, id, notes string) (*models.BorrowingRequest, error) {
	return r.Transition(ctx, actor, id, EventReject, TransitionPayload{Notes: notes})
}

func (r *Repo) SubmitReturn(ctx context.Context, actor Actor, id, condition, photoURL string) (*models.BorrowingRequest, error) {
	return r.Transition(ctx, actor, id, EventSubmitReturn, TransitionPayload{
		ReturnCondition: condition,
		ReturnPhotoURL:  photoURL,
	})
}

func (r *Repo) VerifyReturn(ctx context.Context, actor Actor, id string) (*models.BorrowingRequest, error) {
	return r.Transition(ctx, actor, id, EventVerifyReturn, TransitionPayload{})
}

func (r *Repo) FindRequestByID(ctx context.Context, id string) (*models.BorrowingRequest, error) {
	var q models.BorrowingRequest
	if err := r.DB.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// ClearReturnPhoto 只清掉存的 URL，不保证 blob 端删除
func (r *Repo) ClearReturnPhoto(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&models.BorrowingRequest{}).
		Where("id = ?", id).
		Update("return_photo_url", "").Error
}

// DeleteRequest 管理员删除：流水级联一起删，单事务
func (r *Repo) DeleteRequest(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", id).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.BorrowingRequest{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// RequestRow 列表行：请求 + 物品 + 借用人（扫描结果，非模型）
type RequestRow struct {
	models.BorrowingRequest
	ItemName         string `json:"itemName"`
	ItemType         string `json:"itemType"`
	RoomName         string `json:"roomName"`
	BorrowerName     string `json:"borrowerName"`
	BorrowerIDNumber string `json:"borrowerIdNumber,omitempty"`
}

type RequestsQuery struct {
	BorrowerID string
	ItemID     string
	Status     string
	Page       int
	Size       int
}

type PagedRequests struct {
	Total    int64        `json:"total"`
	Requests []RequestRow `json:"requests"`
}

func (r *Repo) ListRequests(ctx context.Context, q RequestsQuery) (*PagedRequests, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	base := r.DB.WithContext(ctx).
		Table(models.RequestTable + " q").
		Joins("JOIN " + models.ItemTable + " i ON i.id = q.item_id").
		Joins("JOIN " + models.UserTable + " u ON u.id = q.borrower_id")
	if q.BorrowerID != "" {
		base = base.Where("q.borrower_id = ?", q.BorrowerID)
	}
	if q.ItemID != "" {
		base = base.Where("q.item_id = ?", q.ItemID)
	}
	if q.Status != "" {
		base = base.Where("q.status = ?", q.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []RequestRow
	if err := base.
		Select(`q.*,
			i.name AS item_name, i.type AS item_type, i.room_name AS room_name,
			u.full_name AS borrower_name, u.id_number AS borrower_id_number`).
		Order("q.requested_at DESC").
		Offset((q.Page - 1) * q.Size).
		Limit(q.Size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return &PagedRequests{Total: total, Requests: rows}, nil
}

// Schedule 日历视图：给定窗口内所有占用时间段的预约
func (r *Repo) Schedule(ctx context.Context, from, to time.Time, itemType string) ([]RequestRow, error) {
	if !from.Before(to) {
		return nil, ErrInvalidTimeRange
	}
	base := r.DB.WithContext(ctx).
		Table(models.RequestTable+" q").
		Joins("JOIN "+models.ItemTable+" i ON i.id = q.item_id").
		Joins("JOIN "+models.UserTable+" u ON u.id = q.borrower_id").
		Where("q.status IN ?", models.ActiveRequestStatuses).
		Where("q.start_time < ? AND q.end_time > ?", to, from)
	if itemType != "" {
		base = base.Where("i.type = ?", itemType)
	}

	var rows []RequestRow
	if err := base.
		Select(`q.*,
			i.name AS item_name, i.type AS item_type, i.room_name AS room_name,
			u.full_name AS borrower_name, u.id_number AS borrower_id_number`).
		Order("q.start_time ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
