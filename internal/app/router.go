package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"driverbook/internal/handler"
	"driverbook/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler      *handler.BookingHandler
	DiscountHandler     *handler.DiscountHandler
	AvailabilityHandler *handler.AvailabilityHandler
	EarningsHandler     *handler.EarningsHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
	Logger              *zap.Logger

	AllowedOrigins         []string
	AdminRequestsPerMinute int
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.Use(middleware.ActorMiddleware())
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))

	admin := middleware.RequireRole(middleware.RoleAdmin)
	driver := middleware.RequireRole(middleware.RoleDriver)
	traveler := middleware.RequireRole(middleware.RoleTraveler)
	driverOrAdmin := middleware.RequireRole(middleware.RoleDriver, middleware.RoleAdmin)

	{
		bookings := v1.Group("/bookings")
		bookings.POST("", traveler, deps.BookingHandler.CreateBooking)
		bookings.GET("", deps.BookingHandler.ListBookings)
		bookings.GET("/:id", deps.BookingHandler.GetBooking)
		bookings.POST("/:id/respond", driver, deps.BookingHandler.RespondToBooking)
		bookings.PATCH("/:id", traveler, deps.BookingHandler.UpdateBooking)
		bookings.POST("/:id/cancel", traveler, deps.BookingHandler.CancelBooking)

		v1.POST("/offers/accepted", middleware.RequireRole(middleware.RoleTraveler, middleware.RoleAdmin), deps.BookingHandler.AcceptOffer)
	}

	{
		vehicles := v1.Group("/vehicles/:id/availability")
		vehicles.GET("", deps.AvailabilityHandler.ListSlots)
		vehicles.GET("/check", deps.AvailabilityHandler.CheckAvailability)
		vehicles.POST("", driverOrAdmin, deps.AvailabilityHandler.AddSlot)

		slots := v1.Group("/availability", driverOrAdmin)
		slots.PUT("/:id", deps.AvailabilityHandler.UpdateSlot)
		slots.DELETE("/:id", deps.AvailabilityHandler.RemoveSlot)
	}

	{
		drivers := v1.Group("/drivers/:id/earnings")
		drivers.GET("", deps.EarningsHandler.GetSummary)
		drivers.GET("/history", deps.EarningsHandler.GetHistory)

		v1.POST("/commissions/:id/slip", driver, deps.EarningsHandler.UploadSlip)
	}

	{
		adminGroup := v1.Group("/admin", admin, middleware.RateLimitMiddleware(deps.AdminRequestsPerMinute, deps.Logger))

		discounts := adminGroup.Group("/discounts")
		discounts.POST("", deps.DiscountHandler.CreateDiscount)
		discounts.GET("", deps.DiscountHandler.ListDiscounts)
		discounts.POST("/recalculate", deps.DiscountHandler.Recalculate)
		discounts.GET("/:id", deps.DiscountHandler.GetDiscount)
		discounts.PUT("/:id", deps.DiscountHandler.UpdateDiscount)
		discounts.PATCH("/:id/active", deps.DiscountHandler.SetDiscountActive)
		discounts.DELETE("/:id", deps.DiscountHandler.DeleteDiscount)

		adminGroup.PUT("/commissions/:id/status", deps.EarningsHandler.SetStatus)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor-ID", "X-Actor-Role", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
