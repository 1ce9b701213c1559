// models/item.go
package models

import "time"

const (
	ItemTable     = "sal_items"
	RequestTable  = "sal_borrowing_requests"
	ActivityTable = "sal_activity_logs"
)

// Item types: room keys and projectors.
const (
	ItemTypeKey       = "key"
	ItemTypeProjector = "projector"
)

// Item statuses. Status is a cached projection of the item's request set:
// "borrowed"/"overdue" while an approved or pending_return request exists,
// "available" otherwise. "damaged" is a manual override that sticks until an
// admin clears it.
const (
	ItemAvailable = "available"
	ItemBorrowed  = "borrowed"
	ItemOverdue   = "overdue"
	ItemDamaged   = "damaged"
)

// Request lifecycle states. rejected/returned are terminal.
const (
	RequestPending       = "pending"
	RequestApproved      = "approved"
	RequestRejected      = "rejected"
	RequestPendingReturn = "pending_return"
	RequestReturned      = "returned"
)

// ActiveRequestStatuses 占用时间段的状态集合：冲突检查只看这三种
var ActiveRequestStatuses = []string{RequestPending, RequestApproved, RequestPendingReturn}

// Activity log actions, one per lifecycle transition.
const (
	ActionRequest       = "request"
	ActionApprove       = "approve"
	ActionReject        = "reject"
	ActionReturnRequest = "return_request"
	ActionVerifyReturn  = "verify_return"
)

type Item struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"size:200;not null" json:"name"`
	Type           string    `gorm:"size:20;not null;index" json:"type"` // key | projector
	RoomName       string    `gorm:"size:120;not null" json:"roomName"`
	Status         string    `gorm:"size:20;not null;default:'available';index" json:"status"`
	ConditionNotes string    `gorm:"size:500" json:"conditionNotes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type BorrowingRequest struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID     string `gorm:"type:uuid;index;not null" json:"itemId"`
	BorrowerID string `gorm:"type:uuid;index;not null" json:"borrowerId"`
	Purpose    string `gorm:"size:500;not null" json:"purpose"`

	RequestedAt time.Time `gorm:"index;not null" json:"requestedAt"`
	StartTime   time.Time `gorm:"index;not null" json:"startTime"`
	EndTime     time.Time `gorm:"index;not null" json:"endTime"`
	Status      string    `gorm:"size:20;not null;default:'pending';index" json:"status"`

	ApprovedBy    *string    `gorm:"type:uuid" json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
	ApprovalNotes string     `gorm:"size:500" json:"approvalNotes,omitempty"`

	ReturnedAt      *time.Time `json:"returnedAt,omitempty"`
	ReturnCondition string     `gorm:"size:500" json:"returnCondition,omitempty"`
	ReturnPhotoURL  string     `gorm:"size:500" json:"returnPhotoUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal 终态不再占用时间段
func (r *BorrowingRequest) Terminal() bool {
	return r.Status == RequestRejected || r.Status == RequestReturned
}

// Overlaps 半开区间 [start,end) 的严格重叠判断：首尾相接不算冲突
func (r *BorrowingRequest) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// ActivityLog 只追加的审计流水，随 request 级联删除
type ActivityLog struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   string    `gorm:"type:uuid;index;not null" json:"requestId"`
	Action      string    `gorm:"size:30;not null" json:"action"`
	PerformedBy string    `gorm:"type:uuid;not null" json:"performedBy"`
	Notes       string    `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Item) TableName() string             { return ItemTable }
func (BorrowingRequest) TableName() string { return RequestTable }
func (ActivityLog) TableName() string      { return ActivityTable }
