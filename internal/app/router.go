package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cabbook/internal/handler"
	"cabbook/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler     *handler.SessionHandler
	DraftHandler       *handler.DraftHandler
	NegotiationHandler *handler.NegotiationHandler
	RedisClient        *redis.Client // Optional; enables idempotent submits
	NewRelicApp        *newrelic.Application
	Logger             *zap.Logger
	AllowedOrigins     []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		// Session routes.
		session := v1.Group("/session")
		{
			session.GET("", deps.SessionHandler.GetSession)
			session.DELETE("", deps.SessionHandler.Logout)
			session.POST("/restore", deps.SessionHandler.Restore)
			session.POST("/otp", deps.SessionHandler.RequestOtp)
			session.DELETE("/otp", deps.SessionHandler.CancelOtp)
			session.POST("/otp/resend", deps.SessionHandler.ResendOtp)
			session.POST("/otp/verify", deps.SessionHandler.VerifyOtp)
			session.POST("/password", deps.SessionHandler.LoginWithPassword)
			session.PATCH("/profile", deps.SessionHandler.SubmitProfile)
			session.POST("/profile/refresh", deps.SessionHandler.RefreshProfile)
		}

		// Booking form routes.
		drafts := v1.Group("/drafts")
		{
			drafts.POST("", deps.DraftHandler.OpenDraft)
			drafts.GET("/:id", deps.DraftHandler.GetDraft)
			drafts.DELETE("/:id", deps.DraftHandler.CloseDraft)
			drafts.PUT("/:id/fields/:field", deps.DraftHandler.SetField)
			drafts.POST("/:id/fields/:field/select", deps.DraftHandler.SelectSuggestion)
			drafts.PUT("/:id/schedule", deps.DraftHandler.SetSchedule)
			drafts.POST("/:id/stops", deps.DraftHandler.AddStop)
			drafts.DELETE("/:id/stops/:index", deps.DraftHandler.RemoveStop)
			drafts.POST("/:id/submit",
				middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger),
				deps.DraftHandler.Submit,
			)
		}

		// Price negotiation routes.
		negotiation := v1.Group("/negotiation")
		{
			negotiation.GET("", deps.NegotiationHandler.Get)
			negotiation.PUT("", deps.NegotiationHandler.SetOffer)
			negotiation.POST("/accept", deps.NegotiationHandler.AcceptPreferred)
			negotiation.POST("/drivers", deps.NegotiationHandler.FindDrivers)
		}
	}

	return router
}
