package routes

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/handlers"
	"github.com/loyaltyclub/backend/internal/middleware"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Referral   *handlers.ReferralHandler
	Rewards    *handlers.AdminRewardHandler
	Ambassador *handlers.AdminAmbassadorHandler
	Health     *handlers.HealthHandler
}

// SetupRouter builds the gin engine with global middleware and all routes
func SetupRouter(cfg *config.Config, h Handlers, rateLimiter *middleware.RateLimiter, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig()))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", h.Health.Health)

	api := router.Group("/api/v1")
	if rateLimiter != nil {
		api.Use(rateLimiter.Middleware())
	}
	RegisterReferralRoutes(api, h.Referral)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AdminMiddleware())
	RegisterRewardRoutes(admin, h.Rewards)
	RegisterAmbassadorRoutes(admin, h.Ambassador)

	return router
}

// RegisterReferralRoutes mounts the bot-facing event and lookup routes
func RegisterReferralRoutes(api *gin.RouterGroup, h *handlers.ReferralHandler) {
	api.GET("/referrals/resolve", h.Resolve)
	api.GET("/users/:chat_id/ancestors", h.Ancestors)

	api.POST("/registrations", h.Register)
	api.POST("/transactions", h.Transaction)
	api.POST("/partner-checks", h.PartnerCheck)
}

// RegisterRewardRoutes mounts the payout state machine
func RegisterRewardRoutes(admin *gin.RouterGroup, h *handlers.AdminRewardHandler) {
	rewards := admin.Group("/rewards")
	{
		rewards.GET("", h.List)
		rewards.GET("/summary", h.Summary)
		rewards.POST("/pay-pending", h.PayPending)
		rewards.POST("/:id/pay", h.Pay)
		rewards.POST("/:id/retry", h.Retry)
		rewards.POST("/:id/fail", h.Fail)
		rewards.POST("/:id/accumulate", h.Accumulate)
		rewards.POST("/:id/settle", h.Settle)
	}

	admin.GET("/payouts/snapshot", h.Snapshot)
}

// RegisterAmbassadorRoutes mounts ambassador management
func RegisterAmbassadorRoutes(admin *gin.RouterGroup, h *handlers.AdminAmbassadorHandler) {
	ambassadors := admin.Group("/ambassadors")
	{
		ambassadors.POST("", h.Create)
		ambassadors.GET("/:id", h.Get)
		ambassadors.GET("/:id/partners", h.ListPartners)
		ambassadors.POST("/:id/partners", h.AttachPartner)
		ambassadors.DELETE("/:id/partners/:partner_chat_id", h.DetachPartner)
		ambassadors.POST("/:id/earnings", h.RecordEarning)
		ambassadors.GET("/:id/earnings", h.ListEarnings)
		ambassadors.POST("/:id/payout", h.ConfirmPayout)
		ambassadors.POST("/:id/status", h.SetStatus)
	}
}
