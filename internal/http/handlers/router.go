package handlers

import (
	"log/slog"
	"net/http"

	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/chat"
	"github.com/adityaraj-09/faff-assign/internal/http/middleware"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Store     *store.Store
	Verifier  *auth.Verifier
	Files     *attachments.Processor
	UploadDir string
	UploadURL string

	Messages  *chat.Service
	Intake    *chat.Intake
	Tasks     *chat.TaskService
	Summaries *chat.SummaryService
	Reviews   *chat.ReviewService

	Hub     *ws.Hub
	Out     ws.Broadcaster
	Session ws.SessionConfig

	WSInsecureSkipVerify bool
	WSOriginPatterns     []string

	Logger *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.UploadDir != "" && d.UploadURL != "" && d.UploadURL[0] == '/' {
		r.Static(d.UploadURL, d.UploadDir)
	}

	wsH := &WSHandler{
		Hub:                  d.Hub,
		Out:                  d.Out,
		Backend:              d.Intake,
		Verifier:             d.Verifier,
		Store:                d.Store,
		Session:              d.Session,
		WSInsecureSkipVerify: d.WSInsecureSkipVerify,
		OriginPatterns:       d.WSOriginPatterns,
		Logger:               d.Logger,
	}
	r.GET("/ws", wsH.Handle)

	authH := &AuthHandler{Store: d.Store, Verifier: d.Verifier}
	r.POST("/api/v1/auth/register", authH.Register)
	r.POST("/api/v1/auth/login", authH.Login)

	// Protected routes
	authed := r.Group("/api/v1")
	authed.Use(middleware.Auth(d.Verifier))

	authed.GET("/auth/me", authH.Me)
	authed.POST("/auth/password", authH.ChangePassword)

	taskH := &TaskHandler{Tasks: d.Tasks}
	authed.POST("/tasks", taskH.Create)
	authed.GET("/tasks", taskH.List)
	authed.GET("/tasks/:id", taskH.Get)
	authed.PATCH("/tasks/:id", taskH.Update)
	authed.DELETE("/tasks/:id", taskH.Delete)

	msgH := &MessageHandler{Messages: d.Messages, Intake: d.Intake, Limits: d.Files.Limits()}
	authed.POST("/tasks/:id/messages", msgH.Create)
	authed.GET("/tasks/:id/messages", msgH.List)
	authed.GET("/messages/:id/thread", msgH.Thread)
	authed.PATCH("/messages/:id", msgH.Update)
	authed.DELETE("/messages/:id", msgH.Delete)
	authed.DELETE("/messages/:id/attachments/:attachmentId", msgH.RemoveAttachment)

	uploadH := &UploadHandler{Intake: d.Intake, Limits: d.Files.Limits()}
	authed.POST("/uploads", uploadH.Upload)

	sumH := &SummaryHandler{Summaries: d.Summaries}
	authed.GET("/tasks/:id/summary", sumH.Get)
	authed.POST("/tasks/:id/summary", sumH.Regenerate)

	revH := &ReviewHandler{Reviews: d.Reviews}
	authed.POST("/messages/:id/reviews", revH.Request)
	authed.GET("/messages/:id/reviews", revH.List)
	authed.POST("/reviews/:id/auto", revH.Auto)
	authed.PATCH("/reviews/:id", revH.Decide)

	return r
}
