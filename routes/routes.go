package routes

import (
	"net/http"
	"strings"
	"time"

	"school_asset_loan/app"
	"school_asset_loan/controllers"
	"school_asset_loan/models"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s)
	itemCtl := controllers.NewItemController(s)
	reqCtl := controllers.NewRequestController(s)
	inviteCtl := controllers.GetInviteController(s)
	reportCtl := controllers.NewReportController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSess, s.Repo)
	adminMW := app.AdminOnly()
	approverMW := app.ApproverOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)
	secureCookie := strings.HasPrefix(a.Config.WebOrigin, "https://")

	// ------------------------------
	// WebAuthn（公开+受保护）
	// ------------------------------
	wa := r.Group("/webauthn")
	{
		// 公开：邀请注册（角色来自邀请）
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)

		// 公开：学生自助注册
		wa.POST("/signup/begin", s.BeginSignup)
		wa.POST("/signup/finish", s.FinishSignup)

		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	waAuth := wa.Group("", authMW, seenMW)
	{
		waAuth.GET("/whoami", s.WhoAmI)

		// 登出
		waAuth.POST("/logout", func(c *app.Ctx) {
			if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
				_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
			}
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     app.AppSessionCookie,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   secureCookie,
			})
			c.JSON(http.StatusOK, app.H{"ok": true})
		})
	}

	// 已登录用户添加新凭据（绑定手机等）
	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// 邀请 / 用户管理 / 种子数据（仅管理员）
	// ------------------------------
	admin := r.Group("/admin", authMW, adminMW)
	{
		admin.POST("/invites", inviteCtl.CreateInvite)
		admin.POST("/seed", func(c *app.Ctx) {
			if err := s.Repo.SeedFixtures(c.Request.Context()); err != nil {
				c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, app.H{"ok": true})
		})
	}

	users := r.Group("/api/users", authMW, adminMW)
	{
		users.GET("", uc.ListUsers) // ?q=&role=&page=&size=
		users.GET("/:id", uc.GetUser)
		users.PATCH("/:id/role", uc.SetRole)
		users.DELETE("/:id", uc.DeleteUser)
	}

	// ------------------------------
	// 物品
	// ------------------------------
	// 物品管理：admin/teacher；删除只留给 admin
	itemsManage := r.Group("/api/items", authMW, approverMW)
	{
		itemsManage.POST("", itemCtl.CreateItem)
		itemsManage.PUT("/:id", itemCtl.UpdateItem)
		itemsManage.PATCH("/:id/status", itemCtl.SetStatus)
		itemsManage.POST("/:id/reconcile", itemCtl.Reconcile)
		itemsManage.POST("/reconcile", itemCtl.ReconcileAll)
		itemsManage.GET("/admin", itemCtl.ListItemsAdmin)
	}
	r.DELETE("/api/items/:id", authMW, adminMW, itemCtl.DeleteItem)

	items := r.Group("/api/items", authMW, seenMW)
	{
		items.GET("", itemCtl.ListItems) // ?q=&status=&type=&page=&size=
		items.GET("/:id", itemCtl.GetItem)
		items.GET("/:id/availability", itemCtl.Availability) // ?start=&end=
	}

	// ------------------------------
	// 借用申请
	// ------------------------------
	requests := r.Group("/api/requests", authMW, seenMW)
	{
		requests.POST("", reqCtl.Create)
		requests.GET("", reqCtl.List) // ?status=&itemId=&borrowerId=&mine=
		requests.GET("/:id", reqCtl.Get)
		requests.GET("/:id/logs", reqCtl.Logs)
		requests.POST("/:id/return", reqCtl.SubmitReturn) // multipart: photo + condition
	}

	// 审批动作：admin/teacher
	approvals := r.Group("/api/requests", authMW, approverMW)
	{
		approvals.POST("/:id/approve", reqCtl.Approve)
		approvals.POST("/:id/reject", reqCtl.Reject)
		approvals.POST("/:id/verify-return", reqCtl.VerifyReturn)
		approvals.DELETE("/:id/photo", reqCtl.ClearPhoto)
	}

	// 管理员修数据
	r.DELETE("/api/requests/:id", authMW, adminMW, reqCtl.Delete)

	// ------------------------------
	// 日历 / 看板 / 报表
	// ------------------------------
	api := r.Group("/api", authMW, seenMW)
	{
		api.GET("/schedule", reqCtl.Schedule) // ?from=&to=&type=
		api.GET("/dashboard", reportCtl.Dashboard)
	}

	reports := r.Group("/api/reports", authMW, app.RoleRequired(models.RoleAdmin, models.RoleTeacher))
	{
		reports.GET("/summary", reportCtl.Summary)
		reports.GET("/activity", reportCtl.RecentActivity)
		reports.GET("/export", reportCtl.Export) // ?format=xlsx|csv&from=&to=
	}

	// ------------------------------
	// 实时刷新 / 本地上传的静态文件
	// ------------------------------
	r.GET("/ws", func(c *app.Ctx) { a.Hub.ServeWS(c.Writer, c.Request) })
	if a.Config.OSS.Endpoint == "" {
		r.Static("/uploads", a.Config.UploadDir)
	}
}
