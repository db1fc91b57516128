package webserver

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stake-plus/catchfleet/src/store"
)

// AccountStore is the store surface the handlers use.
type AccountStore interface {
	ListAccounts(ctx context.Context) ([]store.Account, error)
	GetAccount(ctx context.Context, id uint) (*store.Account, error)
	CreateAccount(ctx context.Context, acct *store.Account) error
	UpdateAccount(ctx context.Context, id uint, changes store.Changes) (*store.Account, error)
	DeleteAccount(ctx context.Context, id uint) error
	ListLogs(ctx context.Context, accountID *uint, limit int) ([]store.LogEntry, error)
}

// Fleet is the supervisor surface the handlers use.
type Fleet interface {
	StartBot(ctx context.Context, acct store.Account) error
	StopBot(ctx context.Context, id uint)
	UpdateConfig(id uint, acct store.Account) error
	ExecuteCommand(ctx context.Context, id uint, kind, payload string) error
	ResumeAfterCaptcha(ctx context.Context, id uint) error
	Live(id uint) bool
	Count() int
}

type Config struct {
	AllowOrigins []string
	// RequestsPerSecond and Burst bound each client IP.
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() Config {
	return Config{
		AllowOrigins:      []string{"http://localhost:5173", "http://localhost:3000"},
		RequestsPerSecond: 20,
		Burst:             40,
	}
}

func New(cfg Config, st AccountStore, fl Fleet) *gin.Engine {
	registerJSONFieldNames()

	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery(), RequestID())
	attachRoutes(g, cfg, st, fl)
	return g
}

func attachRoutes(r *gin.Engine, cfg Config, st AccountStore, fl Fleet) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	accounts := NewAccounts(st, fl)
	logs := NewLogs(st)
	limiter := NewIPRateLimiter(cfg.RequestsPerSecond, cfg.Burst)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "live": fl.Count()})
	})

	api := r.Group("/api")
	api.Use(limiter.Middleware())
	{
		api.GET("/accounts", accounts.List)
		api.POST("/accounts", accounts.Create)
		api.GET("/accounts/:id", accounts.Get)
		api.PUT("/accounts/:id", accounts.Update)
		api.DELETE("/accounts/:id", accounts.Delete)
		api.POST("/accounts/:id/start", accounts.Start)
		api.POST("/accounts/:id/stop", accounts.Stop)
		api.POST("/accounts/:id/command", accounts.Command)
		api.POST("/accounts/:id/captcha", accounts.Captcha)
		api.GET("/logs", logs.List)
	}
}
