// db/fixtures.go
package db

import (
	"context"
	"log"
	"time"

	"school_asset_loan/models"

	"github.com/google/uuid"
)

// SeedFixtures 填充演示数据（替代原型里的 seed-data 云函数）。
// 幂等：已有物品就跳过。
func (r *Repo) SeedFixtures(ctx context.Context) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Item{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Printf("fixtures already present (%d items), skipping", count)
		return nil
	}

	users := []models.User{
		{ID: uuid.NewString(), Username: "guru@sekolah.ac.id", FullName: "Guru Test", Role: models.RoleTeacher, IDNumber: "GURU001"},
		{ID: uuid.NewString(), Username: "siswa@sekolah.ac.id", FullName: "Siswa Test", Role: models.RoleStudent, IDNumber: "SISWA001", Department: "Informatika", CohortYear: 2024},
		{ID: uuid.NewString(), Username: "siswa2@sekolah.ac.id", FullName: "Siswa Dua", Role: models.RoleStudent, IDNumber: "SISWA002", Department: "Elektro", CohortYear: 2023},
	}
	for i := range users {
		if err := r.DB.WithContext(ctx).Create(&users[i]).Error; err != nil {
			log.Printf("seed user %s: %v", users[i].Username, err)
		}
	}

	items := []models.Item{
		{ID: uuid.NewString(), Name: "Kunci Lab Komputer", Type: models.ItemTypeKey, RoomName: "Lab Komputer 1"},
		{ID: uuid.NewString(), Name: "Kunci Lab Fisika", Type: models.ItemTypeKey, RoomName: "Lab Fisika"},
		{ID: uuid.NewString(), Name: "Kunci Perpustakaan", Type: models.ItemTypeKey, RoomName: "Perpustakaan"},
		{ID: uuid.NewString(), Name: "Proyektor Epson A", Type: models.ItemTypeProjector, RoomName: "Ruang 201"},
		{ID: uuid.NewString(), Name: "Proyektor Epson B", Type: models.ItemTypeProjector, RoomName: "Ruang 202"},
		{ID: uuid.NewString(), Name: "Proyektor BenQ", Type: models.ItemTypeProjector, RoomName: "Aula"},
	}
	for i := range items {
		items[i].Status = models.ItemAvailable
		if err := r.DB.WithContext(ctx).Create(&items[i]).Error; err != nil {
			log.Printf("seed item %s: %v", items[i].Name, err)
		}
	}

	// 一条示例申请，直接走正式入口，保证流水与投影一致
	student := Actor{ID: users[1].ID, Name: users[1].FullName, Role: users[1].Role}
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	if _, err := r.CreateRequest(ctx, student, CreateRequestInput{
		ItemID:    items[0].ID,
		Purpose:   "Praktikum basis data",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}); err != nil {
		log.Printf("seed request: %v", err)
	}

	log.Printf("fixtures seeded: %d users, %d items", len(users), len(items))
	return nil
}
