package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baticonnect/artisan-backend/internal/config"
	"github.com/baticonnect/artisan-backend/internal/http/handlers"
	"github.com/baticonnect/artisan-backend/internal/http/middleware"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	jobHandler *handlers.JobHandler,
	escrowHandler *handlers.EscrowHandler,
	tokenHandler *handlers.TokenHandler,
	worksiteHandler *handlers.WorksiteHandler,
	disputeHandler *handlers.DisputeHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
	webhookHandler *handlers.WebhookHandler,
	sweepHandler *handlers.SweepHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/media", http.Dir(cfg.PhotoStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.POST("/logout", authHandler.Logout)
		protectedAuth.GET("/sessions", authHandler.ListSessions)
		protectedAuth.DELETE("/sessions/:id", middleware.UUIDValidator("id"), authHandler.DeleteSession)
	}

	// Payment gateway callbacks authenticate with a shared key, not a JWT.
	api.POST("/webhooks/gateway", webhookHandler.HandleGatewayCallback)

	api.GET("/ws", wsHandler.Handle)
	api.GET("/jobs/open", jobHandler.ListOpen)

	staffOnly := middleware.RequireRole(models.RoleAdmin, models.RoleZoneReferent)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/jobs", jobHandler.Create)
		protected.GET("/jobs", jobHandler.ListMine)
		protected.GET("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.Get)
		protected.POST("/jobs/:id/quotes", middleware.UUIDValidator("id"), jobHandler.SubmitQuote)
		protected.GET("/jobs/:id/quotes", middleware.UUIDValidator("id"), jobHandler.ListQuotes)
		protected.POST("/jobs/:id/quotes/:quoteId/accept",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("quoteId"), jobHandler.AcceptQuote)

		protected.GET("/jobs/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.GetByJob)
		protected.GET("/jobs/:id/worksite", middleware.UUIDValidator("id"), worksiteHandler.GetByJob)

		protected.GET("/escrows/:id/transactions", middleware.UUIDValidator("id"), escrowHandler.ListTransactions)
		protected.POST("/escrows/:id/refund", middleware.UUIDValidator("id"), staffOnly, escrowHandler.Refund)

		protected.POST("/escrows/:id/tokens", middleware.UUIDValidator("id"), tokenHandler.Issue)
		protected.GET("/escrows/:id/tokens", middleware.UUIDValidator("id"), tokenHandler.ListByEscrow)
		protected.POST("/tokens/redeem", tokenHandler.Redeem)

		protected.POST("/worksites/:id/milestones", middleware.UUIDValidator("id"), worksiteHandler.AddMilestone)
		protected.POST("/worksites/:id/milestones/:milestoneId/proof",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), worksiteHandler.SubmitProof)
		protected.POST("/worksites/:id/milestones/:milestoneId/validate",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), worksiteHandler.ValidateMilestone)
		protected.POST("/worksites/:id/milestones/:milestoneId/contest",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), worksiteHandler.ContestMilestone)
		protected.POST("/worksites/:id/complete", middleware.UUIDValidator("id"), worksiteHandler.Complete)

		protected.POST("/disputes", disputeHandler.Open)
		protected.GET("/disputes", disputeHandler.ListMine)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/mediation", middleware.UUIDValidator("id"), staffOnly, disputeHandler.StartMediation)
		protected.POST("/disputes/:id/communications", middleware.UUIDValidator("id"), disputeHandler.AddCommunication)
		protected.POST("/disputes/:id/mediation/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveMediation)
		protected.POST("/disputes/:id/escalate", middleware.UUIDValidator("id"), disputeHandler.Escalate)
		protected.POST("/disputes/:id/decision", middleware.UUIDValidator("id"), disputeHandler.RenderDecision)
		protected.POST("/disputes/:id/close", middleware.UUIDValidator("id"), staffOnly, disputeHandler.Close)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		protected.POST("/media/proof-photos", mediaHandler.UploadProofPhoto)

		protected.POST("/admin/sweep", staffOnly, sweepHandler.Run)
	}

	return r
}
