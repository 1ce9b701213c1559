package db

import (
	"testing"
	"time"

	"school_asset_loan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	r := newTestRepo(t)
	studentU := seedUser(t, r, "siswa", models.RoleStudent)
	student := asActor(studentU)
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	key := seedItem(t, r, "Kunci", models.ItemTypeKey)
	proj := seedItem(t, r, "Proyektor", models.ItemTypeProjector)
	broken := seedItem(t, r, "Proyektor Rusak", models.ItemTypeProjector)
	_, err := r.SetItemStatus(ctxb(), broken.ID, models.ItemDamaged)
	require.NoError(t, err)

	a := mustCreate(t, r, student, key.ID, at(9, 0), at(10, 0))
	mustCreate(t, r, student, proj.ID, at(9, 0), at(10, 0))
	_, err = r.ApproveRequest(ctxb(), teacher, a.ID, "")
	require.NoError(t, err)

	s, err := r.GetDashboardStats(ctxb(), student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.TotalItems)
	assert.EqualValues(t, 1, s.AvailableItems)
	assert.EqualValues(t, 1, s.BorrowedItems)
	assert.EqualValues(t, 1, s.DamagedItems)
	assert.EqualValues(t, 1, s.PendingRequests)
	assert.EqualValues(t, 2, s.MyActiveRequests)

	// 不带用户时跳过个人计数
	s, err = r.GetDashboardStats(ctxb(), "")
	require.NoError(t, err)
	assert.Zero(t, s.MyActiveRequests)
}

func TestUsageSummary(t *testing.T) {
	r := newTestRepo(t)
	alice := seedUser(t, r, "siswa", models.RoleStudent)
	alice.Department = "Informatika"
	require.NoError(t, r.DB.Save(&alice).Error)
	bob := seedUser(t, r, "siswa2", models.RoleStudent)

	key := seedItem(t, r, "Kunci", models.ItemTypeKey)
	proj := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	mustCreate(t, r, asActor(alice), key.ID, at(9, 0), at(10, 0))
	mustCreate(t, r, asActor(alice), key.ID, at(11, 0), at(12, 0))
	mustCreate(t, r, asActor(bob), proj.ID, at(9, 0), at(10, 0))

	// 不限窗口（过滤的是 requested_at，即当前时间）
	var none time.Time
	sum, err := r.GetUsageSummary(ctxb(), none, none)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.StatusCounts[models.RequestPending])

	require.Len(t, sum.TopItems, 2)
	assert.Equal(t, key.ID, sum.TopItems[0].ItemID)
	assert.Equal(t, 2, sum.TopItems[0].TotalBorrowed)

	require.Len(t, sum.Departments, 2)
	assert.Equal(t, "Informatika", sum.Departments[0].Department)
	assert.Equal(t, 2, sum.Departments[0].TotalRequests)
	// 没填专业的归到 unknown
	assert.Equal(t, "unknown", sum.Departments[1].Department)

	require.Len(t, sum.Monthly, 1)
	assert.Equal(t, 3, sum.Monthly[0].Count)

	// 窗口外取不到
	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	sum, err = r.GetUsageSummary(ctxb(), past, past.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, sum.TopItems)
}

func TestRequestsForExport(t *testing.T) {
	r := newTestRepo(t)
	student := seedUser(t, r, "siswa", models.RoleStudent)
	key := seedItem(t, r, "Kunci", models.ItemTypeKey)
	mustCreate(t, r, asActor(student), key.ID, at(9, 0), at(10, 0))

	var none time.Time
	rows, err := r.RequestsForExport(ctxb(), none, none)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Kunci", rows[0].ItemName)
	assert.Equal(t, student.FullName, rows[0].BorrowerName)
}

func TestRecentActivity(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	key := seedItem(t, r, "Kunci", models.ItemTypeKey)

	req := mustCreate(t, r, student, key.ID, at(9, 0), at(10, 0))
	_, err := r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)

	rows, err := r.RecentActivity(ctxb(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
