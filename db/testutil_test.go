package db

import (
	"context"
	"testing"

	"school_asset_loan/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return NewRepo(gdb)
}

func seedUser(t *testing.T, r *Repo, name, role string) models.User {
	t.Helper()
	u := models.User{
		ID:       uuid.NewString(),
		Username: name + "@sekolah.ac.id",
		FullName: name,
		Role:     role,
	}
	require.NoError(t, r.DB.Create(&u).Error)
	return u
}

func seedItem(t *testing.T, r *Repo, name, typ string) models.Item {
	t.Helper()
	it := models.Item{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     typ,
		RoomName: "Room " + name,
		Status:   models.ItemAvailable,
	}
	require.NoError(t, r.DB.Create(&it).Error)
	return it
}

func asActor(u models.User) Actor {
	return Actor{ID: u.ID, Name: u.FullName, Role: u.Role}
}

func ctxb() context.Context { return context.Background() }
