package db

import (
	"testing"
	"time"

	"school_asset_loan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestItemCRUD(t *testing.T) {
	r := newTestRepo(t)

	err := r.CreateItem(ctxb(), &models.Item{ID: "x", Name: "n", Type: "laptop", RoomName: "r"})
	assert.ErrorIs(t, err, ErrBadStatus)

	it := seedItem(t, r, "Kunci Lab", models.ItemTypeKey)

	got, err := r.UpdateItem(ctxb(), it.ID, UpdateItemInput{Name: "Kunci Lab Komputer", ConditionNotes: "baret"})
	require.NoError(t, err)
	assert.Equal(t, "Kunci Lab Komputer", got.Name)
	assert.Equal(t, "baret", got.ConditionNotes)
	assert.Equal(t, models.ItemTypeKey, got.Type)

	_, err = r.UpdateItem(ctxb(), "missing", UpdateItemInput{Name: "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = r.SetItemStatus(ctxb(), it.ID, "lost")
	assert.ErrorIs(t, err, ErrBadStatus)
	got, err = r.SetItemStatus(ctxb(), it.ID, models.ItemDamaged)
	require.NoError(t, err)
	assert.Equal(t, models.ItemDamaged, got.Status)
}

func TestListItemsFilters(t *testing.T) {
	r := newTestRepo(t)
	seedItem(t, r, "Kunci Lab Fisika", models.ItemTypeKey)
	seedItem(t, r, "Kunci Perpustakaan", models.ItemTypeKey)
	proj := seedItem(t, r, "Proyektor Epson", models.ItemTypeProjector)
	_, err := r.SetItemStatus(ctxb(), proj.ID, models.ItemDamaged)
	require.NoError(t, err)

	res, err := r.ListItems(ctxb(), ItemsQuery{Type: models.ItemTypeKey})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = r.ListItems(ctxb(), ItemsQuery{Status: models.ItemDamaged})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, proj.ID, res.Items[0].ID)

	// 名字/房间模糊匹配
	res, err = r.ListItems(ctxb(), ItemsQuery{Q: "perpus"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
}

func TestReconcileRepairsDrift(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)

	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))
	_, err := r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)

	// 人为制造漂移：缓存列被改回 available
	require.NoError(t, r.DB.Model(&models.Item{}).
		Where("id = ?", item.ID).
		Update("status", models.ItemAvailable).Error)

	got, err := r.ReconcileItemStatus(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemBorrowed, got.Status)
}

func TestReconcileMarksOverdue(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	item := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	// 借用窗口已经过去但仍未归还
	past := time.Now().UTC().Add(-3 * time.Hour)
	req := mustCreate(t, r, student, item.ID, past, past.Add(time.Hour))
	_, err := r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)

	got, err := r.ReconcileItemStatus(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemOverdue, got.Status)

	// 归还走完流程后清扫回 available
	_, err = r.SubmitReturn(ctxb(), student, req.ID, "", "https://x/p.jpg")
	require.NoError(t, err)
	_, err = r.VerifyReturn(ctxb(), teacher, req.ID)
	require.NoError(t, err)
	got, err = r.ReconcileItemStatus(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, got.Status)
}

func TestReconcileKeepsDamagedOverride(t *testing.T) {
	r := newTestRepo(t)
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)

	_, err := r.SetItemStatus(ctxb(), item.ID, models.ItemDamaged)
	require.NoError(t, err)

	// 没有任何请求也不会被清回 available
	got, err := r.ReconcileItemStatus(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemDamaged, got.Status)

	// 解除报损后才重算
	_, err = r.SetItemStatus(ctxb(), item.ID, models.ItemAvailable)
	require.NoError(t, err)
	got, err = r.ReconcileItemStatus(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, got.Status)
}

func TestReconcileAllCountsFixes(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	a := seedItem(t, r, "Kunci A", models.ItemTypeKey)
	seedItem(t, r, "Kunci B", models.ItemTypeKey)

	req := mustCreate(t, r, student, a.ID, at(9, 0), at(10, 0))
	_, err := r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)
	require.NoError(t, r.DB.Model(&models.Item{}).
		Where("id = ?", a.ID).
		Update("status", models.ItemAvailable).Error)

	fixed, err := r.ReconcileAllItems(ctxb())
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	// 第二遍无事可做
	fixed, err = r.ReconcileAllItems(ctxb())
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestDeleteItemCascades(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)
	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))

	require.NoError(t, r.DeleteItem(ctxb(), item.ID))

	var n int64
	require.NoError(t, r.DB.Model(&models.BorrowingRequest{}).Where("item_id = ?", item.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, r.DB.Model(&models.ActivityLog{}).Where("request_id = ?", req.ID).Count(&n).Error)
	assert.Zero(t, n)

	assert.ErrorIs(t, r.DeleteItem(ctxb(), item.ID), gorm.ErrRecordNotFound)
}

func TestListItemsWithCurrentRequest(t *testing.T) {
	r := newTestRepo(t)
	studentU := seedUser(t, r, "siswa", models.RoleStudent)
	student := asActor(studentU)
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	borrowed := seedItem(t, r, "Kunci A", models.ItemTypeKey)
	idle := seedItem(t, r, "Kunci B", models.ItemTypeKey)

	past := time.Now().UTC().Add(-2 * time.Hour)
	req := mustCreate(t, r, student, borrowed.ID, past, past.Add(time.Hour))
	_, err := r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)

	rows, err := r.ListItemsWithCurrentRequest(ctxb(), ItemsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]AdminItemRow{}
	for _, row := range rows {
		byID[row.Item.ID] = row
	}
	b := byID[borrowed.ID]
	require.NotNil(t, b.RequestID)
	assert.Equal(t, req.ID, *b.RequestID)
	assert.Equal(t, studentU.FullName, *b.BorrowerName)
	assert.True(t, b.Overdue)

	i := byID[idle.ID]
	assert.Nil(t, i.RequestID)
	assert.False(t, i.Overdue)
}
