package db

import (
	"fmt"
	"log"
	"os"

	"school_asset_loan/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate models: ", err)
	}
	log.Println("Database connected")
	return DB
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.Invite{},
		&models.Item{},
		&models.BorrowingRequest{},
		&models.ActivityLog{},
	); err != nil {
		return err
	}

	// 冲突扫描只看仍占用时间段的请求
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_active_item_window
	  ON %s (item_id, start_time, end_time)
	  WHERE status IN ('pending', 'approved', 'pending_return');
	`, models.RequestTable, models.RequestTable)).Error; err != nil {
		return err
	}

	// 审计流水按 request 查询
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_request_createdat
	  ON %s (request_id, created_at DESC);
	`, models.ActivityTable, models.ActivityTable)).Error; err != nil {
		return err
	}

	return nil
}
