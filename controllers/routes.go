package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the engine with request tracing, CORS and the API under /api/v1
func NewRouter(cfg *config.Config, auth gin.HandlerFunc) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.OtelServiceName))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	RegisterRoutes(router.Group("/api/v1"), auth)
	return router
}

// RegisterRoutes mounts the API on v1. Every route except the health and
// database probes and the public review listing runs behind auth.
func RegisterRoutes(v1 *gin.RouterGroup, auth gin.HandlerFunc) {
	v1.GET("/health", HealthCheck)
	v1.GET("/database/status", DatabaseStatus)
	v1.GET("/manufacturers/:id/reviews", ListManufacturerReviews)

	protected := v1.Group("")
	protected.Use(auth)
	{
		protected.POST("/users", CreateUser)
		protected.GET("/users/me", GetMyProfile)
		protected.PUT("/users/me", UpdateMyProfile)

		protected.GET("/manufacturers/me", GetMyManufacturerProfile)
		protected.PUT("/manufacturers/me", UpsertMyManufacturerProfile)
		protected.POST("/manufacturers/:id/reviews", CreateManufacturerReview)

		protected.POST("/designs", CreateDesign)
		protected.GET("/designs", ListDesigns)
		protected.GET("/designs/:id", GetDesign)
		protected.POST("/designs/:id/price-preview", PricePreview)
		protected.POST("/designs/:id/quotes", CreateQuote)
		protected.GET("/designs/:id/quotes", ListQuotes)
		protected.POST("/designs/:id/generate-quotes", GenerateQuotes)

		protected.POST("/quotes/:id/accept", AcceptQuote)
		protected.POST("/quotes/:id/reject", RejectQuote)

		protected.GET("/orders", ListOrders)
		protected.GET("/orders/:id", GetOrder)
		protected.PATCH("/orders/:id", UpdateOrder)
		protected.POST("/orders/:id/payment", ProcessPayment)

		protected.GET("/admin/analysis-jobs/failed", ListFailedAnalysisJobs)
		protected.POST("/admin/analysis-jobs/:id/replay", ReplayAnalysisJob)
	}
}
