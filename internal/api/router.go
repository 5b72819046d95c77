package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"barangay/internal/api/controllers"
	"barangay/internal/config"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

type RouterParams struct {
	fx.In

	Config    *config.Config
	Log       *zap.Logger
	Tokens    *utils.TokenIssuer
	Accounts  *controllers.AccountController
	Residents *controllers.ResidentController
	Requests  *controllers.CertificateRequestController
	Payments  *controllers.PaymentController
	Dashboard *controllers.DashboardController
	Chat      *controllers.ChatController
}

func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger(p.Log))
	r.Use(middleware.Recovery(p.Log))
	r.Use(middleware.CORSMiddleware(p.Config.App.FrontendURL))

	// local uploads use the default /uploads links
	if p.Config.Storage.Driver == "local" && p.Config.Storage.PublicURL == "" {
		r.Static("/uploads", p.Config.Storage.LocalDir)
	}

	RegisterRoutes(r, p)
	return r
}

func RegisterRoutes(r *gin.Engine, p RouterParams) {
	auth := middleware.JWTAuthMiddleware(p.Tokens)
	admin := middleware.RoleMiddleware(utils.RoleAdmin)

	r.GET("/healthz", func(c *gin.Context) { utils.RespondSuccess(c, nil, "ok") })

	accounts := r.Group("/accounts")
	accounts.POST("/register", p.Accounts.Register)
	accounts.POST("/login", p.Accounts.Login)
	accounts.POST("/forgot-password", p.Accounts.ForgotPassword)
	accounts.POST("/reset-password", p.Accounts.ResetPassword)
	accounts.GET("/me", auth, p.Accounts.Me)

	residents := r.Group("/residents", auth)
	residents.GET("/me", p.Residents.GetMine)
	residents.PUT("/me", p.Residents.UpdateMine)
	residents.PUT("/me/address", p.Residents.UpdateMyAddress)

	requests := r.Group("/requests", auth)
	requests.POST("", p.Requests.Create)
	requests.GET("/mine", p.Requests.ListMine)
	requests.GET("/reference/:reference", p.Requests.GetByReference)
	requests.GET("/:id", p.Requests.GetByID)
	requests.GET("/:id/payments", p.Payments.ListForRequest)
	requests.POST("/:id/payments", p.Payments.Initiate)
	requests.POST("/:id/payments/:txn/cancel", p.Payments.Cancel)
	requests.GET("/:id/payments/:txn/status", p.Payments.Status)

	payments := r.Group("/payments")
	payments.GET("/return/:outcome", p.Payments.Return)
	payments.POST("/webhook", p.Payments.Webhook)

	r.POST("/chat", p.Chat.Reply)

	adminGroup := r.Group("/admin", auth, admin)
	adminGroup.GET("/dashboard", p.Dashboard.GetDashboard)

	adminGroup.GET("/requests", p.Requests.ListAll)
	adminGroup.POST("/requests/:id/review", p.Requests.MarkUnderReview())
	adminGroup.POST("/requests/:id/approve", p.Requests.Approve())
	adminGroup.POST("/requests/:id/ready", p.Requests.MarkReadyForPickup())
	adminGroup.POST("/requests/:id/in-transit", p.Requests.MarkInTransit())
	adminGroup.POST("/requests/:id/complete", p.Requests.MarkCompleted())
	adminGroup.POST("/requests/:id/reject", p.Requests.Reject())
	adminGroup.POST("/requests/:id/cancel", p.Requests.Cancel())
	adminGroup.DELETE("/requests/:id", p.Requests.Delete)
	adminGroup.POST("/requests/:id/payments", p.Payments.CreateManual)

	adminGroup.GET("/payments", p.Payments.ListAll)
	adminGroup.GET("/payments/export", p.Payments.Export)
	adminGroup.POST("/payments/:id/status", p.Payments.UpdateStatus)

	adminGroup.GET("/residents/:id", p.Residents.GetByID)
	adminGroup.DELETE("/residents/:id", p.Residents.Delete)

	adminGroup.GET("/faqs", p.Chat.ListFaqs)
	adminGroup.POST("/faqs", p.Chat.CreateFaq)
	adminGroup.DELETE("/faqs/:id", p.Chat.DeleteFaq)
}
