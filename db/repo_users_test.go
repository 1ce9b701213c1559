package db

import (
	"testing"
	"time"

	"school_asset_loan/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateUserDefaults(t *testing.T) {
	r := newTestRepo(t)

	// 新用户：角色缺省 student，姓名缺省用邮箱
	u, err := r.FindOrCreateUser(ctxb(), "budi@sekolah.ac.id", uuid.NewString(), NewUserProfile{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.Equal(t, "budi@sekolah.ac.id", u.FullName)

	// 已存在则原样返回，不覆盖档案
	again, err := r.FindOrCreateUser(ctxb(), "budi@sekolah.ac.id", uuid.NewString(), NewUserProfile{
		FullName: "Budi", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, models.RoleStudent, again.Role)
}

func TestSetUserRoleAndCountAdmins(t *testing.T) {
	r := newTestRepo(t)
	u := seedUser(t, r, "guru", models.RoleTeacher)

	assert.ErrorIs(t, r.SetUserRole(ctxb(), u.ID, "superuser"), ErrBadStatus)

	require.NoError(t, r.SetUserRole(ctxb(), u.ID, models.RoleAdmin))
	n, err := r.CountAdmins(ctxb())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := r.FindUserByID(ctxb(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.CanApprove())
}

func TestListUsersSearch(t *testing.T) {
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice", models.RoleStudent)
	alice.IDNumber = "SISWA001"
	require.NoError(t, r.DB.Save(&alice).Error)
	seedUser(t, r, "bob", models.RoleTeacher)

	res, err := r.ListUsers(ctxb(), "SISWA001", "", 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, alice.ID, res.Users[0].ID)

	res, err = r.ListUsers(ctxb(), "", models.RoleTeacher, 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, "bob", res.Users[0].FullName)
}

func TestInviteLifecycle(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.CreateInvite(ctxb(), "x@y.z", "tok0", "boss", time.Now().Add(time.Hour), "admin")
	assert.ErrorIs(t, err, ErrBadStatus)

	inv, err := r.CreateInvite(ctxb(), "guru@sekolah.ac.id", "tok1", models.RoleTeacher, time.Now().Add(time.Hour), "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, inv.Role)

	got, err := r.GetInviteByToken(ctxb(), "tok1")
	require.NoError(t, err)
	assert.Nil(t, got.UsedAt)

	require.NoError(t, r.MarkInviteUsed(ctxb(), "tok1"))
	// 二次使用被拒
	assert.Error(t, r.MarkInviteUsed(ctxb(), "tok1"))

	got, err = r.GetInviteByToken(ctxb(), "tok1")
	require.NoError(t, err)
	assert.NotNil(t, got.UsedAt)
}

func TestSeedFixturesIdempotent(t *testing.T) {
	r := newTestRepo(t)

	require.NoError(t, r.SeedFixtures(ctxb()))
	var items, users, reqs int64
	require.NoError(t, r.DB.Model(&models.Item{}).Count(&items).Error)
	require.NoError(t, r.DB.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, r.DB.Model(&models.BorrowingRequest{}).Count(&reqs).Error)
	assert.EqualValues(t, 6, items)
	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 1, reqs)

	// 二次执行不重复插
	require.NoError(t, r.SeedFixtures(ctxb()))
	require.NoError(t, r.DB.Model(&models.Item{}).Count(&items).Error)
	assert.EqualValues(t, 6, items)
}
