package db

import (
	"math/rand"
	"testing"
	"time"

	"school_asset_loan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustCreate(t *testing.T, r *Repo, actor Actor, itemID string, start, end time.Time) *models.BorrowingRequest {
	t.Helper()
	req, err := r.CreateRequest(ctxb(), actor, CreateRequestInput{
		ItemID:    itemID,
		Purpose:   "praktikum",
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)
	return req
}

func at(h, m int) time.Time {
	return time.Date(2026, 9, 1, h, m, 0, 0, time.UTC)
}

func TestCreateRequestConflict(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	other := asActor(seedUser(t, r, "siswa2", models.RoleStudent))
	item := seedItem(t, r, "Kunci Lab", models.ItemTypeKey)

	first := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))

	// 半开区间：09:30-10:30 与 09:00-10:00 重叠
	_, err := r.CreateRequest(ctxb(), other, CreateRequestInput{
		ItemID: item.ID, Purpose: "rapat",
		StartTime: at(9, 30), EndTime: at(10, 30),
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.RequestID)
	assert.Equal(t, at(9, 0), conflict.Start.UTC())
	assert.Equal(t, at(10, 0), conflict.End.UTC())

	// 首尾相接不算冲突：10:00-11:00 可以
	_, err = r.CreateRequest(ctxb(), other, CreateRequestInput{
		ItemID: item.ID, Purpose: "rapat",
		StartTime: at(10, 0), EndTime: at(11, 0),
	})
	require.NoError(t, err)

	// 完全包含也冲突
	_, err = r.CreateRequest(ctxb(), other, CreateRequestInput{
		ItemID: item.ID, Purpose: "rapat",
		StartTime: at(8, 0), EndTime: at(12, 0),
	})
	require.ErrorAs(t, err, &conflict)
}

func TestCreateRequestValidation(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	item := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	_, err := r.CreateRequest(ctxb(), student, CreateRequestInput{
		ItemID: item.ID, Purpose: "x",
		StartTime: at(10, 0), EndTime: at(9, 0),
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	// 零长度区间同样非法
	_, err = r.CreateRequest(ctxb(), student, CreateRequestInput{
		ItemID: item.ID, Purpose: "x",
		StartTime: at(9, 0), EndTime: at(9, 0),
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = r.CreateRequest(ctxb(), student, CreateRequestInput{
		ItemID: item.ID, Purpose: "   ",
		StartTime: at(9, 0), EndTime: at(10, 0),
	})
	assert.Error(t, err)
}

func TestRequestLifecycle(t *testing.T) {
	r := newTestRepo(t)
	studentU := seedUser(t, r, "siswa", models.RoleStudent)
	student := asActor(studentU)
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	item := seedItem(t, r, "Kunci Lab", models.ItemTypeKey)

	req := mustCreate(t, r, student, item.ID, at(9, 0), at(11, 0))
	assert.Equal(t, models.RequestPending, req.Status)

	// approve: request approved, item borrowed
	approved, err := r.ApproveRequest(ctxb(), teacher, req.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, teacher.ID, *approved.ApprovedBy)
	it, err := r.FindItemByID(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemBorrowed, it.Status)

	// submit return with photo evidence
	pending, err := r.SubmitReturn(ctxb(), student, req.ID, "good", "https://cdn.example.com/p.jpg")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPendingReturn, pending.Status)
	assert.Equal(t, "https://cdn.example.com/p.jpg", pending.ReturnPhotoURL)
	require.NotNil(t, pending.ReturnedAt)

	// verify: request returned, item available again
	done, err := r.VerifyReturn(ctxb(), teacher, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestReturned, done.Status)
	assert.True(t, done.Terminal())
	it, err = r.FindItemByID(ctxb(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, it.Status)

	// 每步一条流水
	logs, err := r.ListActivityByRequest(ctxb(), req.ID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, models.ActionRequest, logs[0].Action)
	assert.Equal(t, models.ActionApprove, logs[1].Action)
	assert.Equal(t, models.ActionReturnRequest, logs[2].Action)
	assert.Equal(t, models.ActionVerifyReturn, logs[3].Action)
	assert.Equal(t, studentU.FullName, logs[0].PerformerName)

	// 归还后时间段释放，同一窗口可以再约
	_, err = r.CreateRequest(ctxb(), student, CreateRequestInput{
		ItemID: item.ID, Purpose: "lagi",
		StartTime: at(9, 0), EndTime: at(11, 0),
	})
	require.NoError(t, err)
}

func TestSubmitReturnRequiresPhoto(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	item := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))
	_, err := r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)

	_, err = r.SubmitReturn(ctxb(), student, req.ID, "good", "")
	assert.ErrorIs(t, err, ErrPhotoRequired)

	// 状态没动
	got, err := r.FindRequestByID(ctxb(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, got.Status)
}

func TestInvalidTransitionsMutateNothing(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)

	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))

	// pending 不能 submit_return / verify_return
	_, err := r.SubmitReturn(ctxb(), student, req.ID, "", "https://x/p.jpg")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.VerifyReturn(ctxb(), teacher, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// reject 终态后不能 approve
	_, err = r.RejectRequest(ctxb(), teacher, req.ID, "no")
	require.NoError(t, err)
	_, err = r.ApproveRequest(ctxb(), teacher, req.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := r.FindRequestByID(ctxb(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, got.Status)

	// rejected 不占用时间段
	it, _ := r.FindItemByID(ctxb(), item.ID)
	assert.Equal(t, models.ItemAvailable, it.Status)
	_, err = r.CreateRequest(ctxb(), student, CreateRequestInput{
		ItemID: item.ID, Purpose: "retry",
		StartTime: at(9, 0), EndTime: at(10, 0),
	})
	require.NoError(t, err)

	// 只有一条 reject 之外的流水：request + reject
	logs, _ := r.ListActivityByRequest(ctxb(), req.ID)
	assert.Len(t, logs, 2)
}

func TestTransitionRoleGuards(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	other := asActor(seedUser(t, r, "siswa2", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	admin := asActor(seedUser(t, r, "kepala", models.RoleAdmin))
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)

	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))

	// 学生不能审批
	_, err := r.ApproveRequest(ctxb(), student, req.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = r.ApproveRequest(ctxb(), teacher, req.ID, "")
	require.NoError(t, err)

	// 归还申请只能借用人自己发
	_, err = r.SubmitReturn(ctxb(), other, req.ID, "", "https://x/p.jpg")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = r.SubmitReturn(ctxb(), student, req.ID, "", "https://x/p.jpg")
	require.NoError(t, err)

	// 学生不能验收
	_, err = r.VerifyReturn(ctxb(), student, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = r.VerifyReturn(ctxb(), admin, req.ID)
	require.NoError(t, err)
}

func TestApproveUnavailableItem(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	item := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))

	// 物品被报损后，审批被挡下
	_, err := r.SetItemStatus(ctxb(), item.ID, models.ItemDamaged)
	require.NoError(t, err)
	_, err = r.ApproveRequest(ctxb(), teacher, req.ID, "")
	assert.ErrorIs(t, err, ErrItemUnavailable)

	got, _ := r.FindRequestByID(ctxb(), req.ID)
	assert.Equal(t, models.RequestPending, got.Status)
}

func TestDeleteRequestCascadesLogs(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)
	req := mustCreate(t, r, student, item.ID, at(9, 0), at(10, 0))

	require.NoError(t, r.DeleteRequest(ctxb(), req.ID))

	var n int64
	require.NoError(t, r.DB.Model(&models.ActivityLog{}).Where("request_id = ?", req.ID).Count(&n).Error)
	assert.Zero(t, n)

	err := r.DeleteRequest(ctxb(), req.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestScheduleWindow(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	key := seedItem(t, r, "Kunci", models.ItemTypeKey)
	proj := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	mustCreate(t, r, student, key.ID, at(9, 0), at(10, 0))
	mustCreate(t, r, student, proj.ID, at(13, 0), at(15, 0))

	// 只取窗口内的；首尾相接的窗口取不到
	rows, err := r.Schedule(ctxb(), at(8, 0), at(12, 0), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, key.ID, rows[0].ItemID)
	assert.Equal(t, "Kunci", rows[0].ItemName)

	rows, err = r.Schedule(ctxb(), at(10, 0), at(13, 0), "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// 类型过滤
	rows, err = r.Schedule(ctxb(), at(8, 0), at(18, 0), models.ItemTypeProjector)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, proj.ID, rows[0].ItemID)

	_, err = r.Schedule(ctxb(), at(12, 0), at(8, 0), "")
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

// 随机区间：逐个提交，接受与否必须与内存里的严格重叠判断一致
func TestConflictRuleRandomized(t *testing.T) {
	r := newTestRepo(t)
	student := asActor(seedUser(t, r, "siswa", models.RoleStudent))
	item := seedItem(t, r, "Kunci", models.ItemTypeKey)

	rng := rand.New(rand.NewSource(42))
	type span struct{ s, e time.Time }
	var accepted []span

	overlapsAny := func(s, e time.Time) bool {
		for _, a := range accepted {
			if a.s.Before(e) && a.e.After(s) {
				return true
			}
		}
		return false
	}

	for i := 0; i < 120; i++ {
		startH := rng.Intn(20)
		dur := 1 + rng.Intn(4)
		s := at(startH, 0)
		e := s.Add(time.Duration(dur) * time.Hour)

		_, err := r.CreateRequest(ctxb(), student, CreateRequestInput{
			ItemID: item.ID, Purpose: "rand",
			StartTime: s, EndTime: e,
		})
		if overlapsAny(s, e) {
			var conflict *ConflictError
			require.ErrorAs(t, err, &conflict, "iteration %d: expected conflict for [%s,%s)", i, s, e)
		} else {
			require.NoError(t, err, "iteration %d: expected accept for [%s,%s)", i, s, e)
			accepted = append(accepted, span{s, e})
		}
	}
	require.NotEmpty(t, accepted)
}

func TestListRequestsFilters(t *testing.T) {
	r := newTestRepo(t)
	studentU := seedUser(t, r, "siswa", models.RoleStudent)
	student := asActor(studentU)
	other := asActor(seedUser(t, r, "siswa2", models.RoleStudent))
	teacher := asActor(seedUser(t, r, "guru", models.RoleTeacher))
	key := seedItem(t, r, "Kunci", models.ItemTypeKey)
	proj := seedItem(t, r, "Proyektor", models.ItemTypeProjector)

	a := mustCreate(t, r, student, key.ID, at(9, 0), at(10, 0))
	mustCreate(t, r, other, proj.ID, at(9, 0), at(10, 0))
	_, err := r.ApproveRequest(ctxb(), teacher, a.ID, "")
	require.NoError(t, err)

	res, err := r.ListRequests(ctxb(), RequestsQuery{BorrowerID: student.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, "Kunci", res.Requests[0].ItemName)
	assert.Equal(t, studentU.FullName, res.Requests[0].BorrowerName)

	res, err = r.ListRequests(ctxb(), RequestsQuery{Status: models.RequestPending})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, proj.ID, res.Requests[0].ItemID)

	res, err = r.ListRequests(ctxb(), RequestsQuery{ItemID: key.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, models.RequestApproved, res.Requests[0].Status)
}
