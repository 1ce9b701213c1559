package main

import (
	"context"
	"log"
	"os"

	"school_asset_loan/app"
	"school_asset_loan/config"
	"school_asset_loan/db"
	"school_asset_loan/routes"
	"school_asset_loan/workers"
)

func main() {
	config.LoadEnv()

	application := app.MustNew()
	defer application.Close()

	repo := db.NewRepo(application.DB)

	// 没有管理员时给 BOOTSTRAP_ADMIN_EMAIL 发一次性邀请
	app.BootstrapFirstAdmin(context.Background(), application.Config, repo)

	// 后台清扫：状态投影漂移 / 逾期标记
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workers.StartReconciler(ctx, repo, application.Hub, application.Config.ReconcileEvery)

	r := application.Router

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	routes.RegisterRoutes(r, application)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	log.Printf("listening on :%s", port)
	_ = r.Run(":" + port)
}
