// db/repo_reports.go
package db

import (
	"context"
	"sort"
	"time"

	"school_asset_loan/models"
)

// DashboardStats 首页计数
type DashboardStats struct {
	TotalItems       int64 `json:"totalItems"`
	AvailableItems   int64 `json:"availableItems"`
	BorrowedItems    int64 `json:"borrowedItems"`
	OverdueItems     int64 `json:"overdueItems"`
	DamagedItems     int64 `json:"damagedItems"`
	PendingRequests  int64 `json:"pendingRequests"`
	MyActiveRequests int64 `json:"myActiveRequests"`
}

func (r *Repo) GetDashboardStats(ctx context.Context, userID string) (*DashboardStats, error) {
	var s DashboardStats
	db := r.DB.WithContext(ctx)

	if err := db.Model(&models.Item{}).Count(&s.TotalItems).Error; err != nil {
		return nil, err
	}
	counts := map[string]*int64{
		models.ItemAvailable: &s.AvailableItems,
		models.ItemBorrowed:  &s.BorrowedItems,
		models.ItemOverdue:   &s.OverdueItems,
		models.ItemDamaged:   &s.DamagedItems,
	}
	for status, dst := range counts {
		if err := db.Model(&models.Item{}).Where("status = ?", status).Count(dst).Error; err != nil {
			return nil, err
		}
	}
	if err := db.Model(&models.BorrowingRequest{}).
		Where("status = ?", models.RequestPending).
		Count(&s.PendingRequests).Error; err != nil {
		return nil, err
	}
	if userID != "" {
		if err := db.Model(&models.BorrowingRequest{}).
			Where("borrower_id = ? AND status IN ?", userID, models.ActiveRequestStatuses).
			Count(&s.MyActiveRequests).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}

type ItemUsage struct {
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	ItemType      string `json:"itemType"`
	RoomName      string `json:"roomName"`
	TotalBorrowed int    `json:"totalBorrowed"`
}

type DepartmentUsage struct {
	Department    string `json:"department"`
	TotalRequests int    `json:"totalRequests"`
}

type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// UsageSummary 报表聚合。原型在客户端聚合，这里同样取行后在 Go 里汇总，
// 避免方言相关的日期函数。
type UsageSummary struct {
	StatusCounts map[string]int    `json:"statusCounts"`
	TopItems     []ItemUsage       `json:"topItems"`
	Departments  []DepartmentUsage `json:"departments"`
	Monthly      []MonthlyCount    `json:"monthly"`
}

func (r *Repo) GetUsageSummary(ctx context.Context, from, to time.Time) (*UsageSummary, error) {
	base := r.DB.WithContext(ctx).
		Table(models.RequestTable + " q").
		Joins("JOIN " + models.ItemTable + " i ON i.id = q.item_id").
		Joins("JOIN " + models.UserTable + " u ON u.id = q.borrower_id")
	if !from.IsZero() {
		base = base.Where("q.requested_at >= ?", from)
	}
	if !to.IsZero() {
		base = base.Where("q.requested_at < ?", to)
	}

	type row struct {
		models.BorrowingRequest
		ItemName   string
		ItemType   string
		RoomName   string
		Department string
	}
	var rows []row
	if err := base.
		Select(`q.*, i.name AS item_name, i.type AS item_type, i.room_name AS room_name,
			u.department AS department`).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	sum := &UsageSummary{StatusCounts: map[string]int{}}
	items := map[string]*ItemUsage{}
	depts := map[string]*DepartmentUsage{}
	months := map[string]int{}
	for _, q := range rows {
		sum.StatusCounts[q.Status]++
		iu, ok := items[q.ItemID]
		if !ok {
			iu = &ItemUsage{ItemID: q.ItemID, ItemName: q.ItemName, ItemType: q.ItemType, RoomName: q.RoomName}
			items[q.ItemID] = iu
		}
		iu.TotalBorrowed++
		dep := q.Department
		if dep == "" {
			dep = "unknown"
		}
		du, ok := depts[dep]
		if !ok {
			du = &DepartmentUsage{Department: dep}
			depts[dep] = du
		}
		du.TotalRequests++
		months[q.RequestedAt.UTC().Format("2006-01")]++
	}
	for _, iu := range items {
		sum.TopItems = append(sum.TopItems, *iu)
	}
	sort.Slice(sum.TopItems, func(i, j int) bool {
		if sum.TopItems[i].TotalBorrowed != sum.TopItems[j].TotalBorrowed {
			return sum.TopItems[i].TotalBorrowed > sum.TopItems[j].TotalBorrowed
		}
		return sum.TopItems[i].ItemName < sum.TopItems[j].ItemName
	})
	for _, du := range depts {
		sum.Departments = append(sum.Departments, *du)
	}
	sort.Slice(sum.Departments, func(i, j int) bool {
		if sum.Departments[i].TotalRequests != sum.Departments[j].TotalRequests {
			return sum.Departments[i].TotalRequests > sum.Departments[j].TotalRequests
		}
		return sum.Departments[i].Department < sum.Departments[j].Department
	})
	for m, c := range months {
		sum.Monthly = append(sum.Monthly, MonthlyCount{Month: m, Count: c})
	}
	sort.Slice(sum.Monthly, func(i, j int) bool { return sum.Monthly[i].Month < sum.Monthly[j].Month })
	return sum, nil
}

// RequestsForExport 导出用的全量行
func (r *Repo) RequestsForExport(ctx context.Context, from, to time.Time) ([]RequestRow, error) {
	base := r.DB.WithContext(ctx).
		Table(models.RequestTable + " q").
		Joins("JOIN " + models.ItemTable + " i ON i.id = q.item_id").
		Joins("JOIN " + models.UserTable + " u ON u.id = q.borrower_id")
	if !from.IsZero() {
		base = base.Where("q.requested_at >= ?", from)
	}
	if !to.IsZero() {
		base = base.Where("q.requested_at < ?", to)
	}
	var rows []RequestRow
	if err := base.
		Select(`q.*,
			i.name AS item_name, i.type AS item_type, i.room_name AS room_name,
			u.full_name AS borrower_name, u.id_number AS borrower_id_number`).
		Order("q.requested_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
