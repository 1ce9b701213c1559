package app

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"school_asset_loan/db"
	"school_asset_loan/realtime"
	"school_asset_loan/session"
	"school_asset_loan/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	RDB     *redis.Client
	WA      *webauthn.WebAuthn
	Uploads storage.Uploader
	Hub     *realtime.Hub
	Config  Config

	appSess *session.AppSessionStore
}

// Config 从环境变量读取
type Config struct {
	RedisAddr  string
	RedisPwd   string
	WebOrigin  string
	RPID       string
	RPOrigins  []string
	SessionTTL time.Duration

	BootstrapEmail string

	UploadDir string
	OSS       OSSConfig

	ReconcileEvery time.Duration
}

// OSSConfig 为空 endpoint 时退回本地磁盘存储
type OSSConfig struct {
	Endpoint  string
	KeyID     string
	KeySecret string
	Bucket    string
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

func MustNew() *App {
	cfg := loadConfig()

	dbConn := db.ConnectDB()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	// --- WebAuthn RP ---
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "School Asset Loan Passkeys",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		log.Fatalf("webauthn: %v", err)
	}

	// --- Blob storage ---
	var uploads storage.Uploader
	if cfg.OSS.Endpoint != "" {
		uploads, err = storage.NewOSS(cfg.OSS.Endpoint, cfg.OSS.KeyID, cfg.OSS.KeySecret, cfg.OSS.Bucket)
		if err != nil {
			log.Fatalf("oss: %v", err)
		}
	} else {
		uploads, err = storage.NewLocal(cfg.UploadDir, strings.TrimRight(cfg.WebOrigin, "/")+"/uploads")
		if err != nil {
			log.Fatalf("local storage: %v", err)
		}
	}

	// --- Realtime hub ---
	hub := realtime.NewHub()
	go hub.Run()

	// 业务会话：1 天 TTL
	appTTL := 24 * time.Hour

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)
	useMetrics(r)
	a := &App{
		Router: r, DB: dbConn, RDB: rdb, WA: wa, Uploads: uploads, Hub: hub, Config: cfg,
		appSess: session.NewAppSessionStore(rdb, appTTL),
	}
	return a
}

func (a *App) Close() { _ = a.RDB.Close() }

func loadConfig() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	ttlSec := get("SESSION_TTL_SECONDS", "600")
	ttl := 10 * time.Minute
	if d, err := time.ParseDuration(ttlSec + "s"); err == nil {
		ttl = d
	}
	originsCSV := get("RP_ORIGINS", "http://localhost:3000")
	var origins []string
	for _, o := range strings.Split(originsCSV, ",") {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	reconcile := 10 * time.Minute
	if d, err := time.ParseDuration(get("RECONCILE_EVERY", "10m")); err == nil {
		reconcile = d
	}
	return Config{
		RedisAddr:  get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:   os.Getenv("REDIS_PASSWORD"),
		WebOrigin:  get("WEB_ORIGIN", "http://localhost:3000"),
		RPID:       get("RP_ID", "localhost"),
		RPOrigins:  origins,
		SessionTTL: ttl,

		BootstrapEmail: strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),

		UploadDir: get("UPLOAD_DIR", "./uploads"),
		OSS: OSSConfig{
			Endpoint:  os.Getenv("OSS_ENDPOINT"),
			KeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
			KeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
			Bucket:    os.Getenv("OSS_BUCKET"),
		},

		ReconcileEvery: reconcile,
	}
}
