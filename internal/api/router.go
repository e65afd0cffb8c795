package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"furnace-scheduler/config"
	"furnace-scheduler/internal/mw"
)

// NewRouter creates and configures a new Gin router. responses may be nil, which
// disables response caching.
func NewRouter(handler *Handler, responses *cache.Cache, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	caching := func(c *gin.Context) { c.Next() }
	invalidate := caching
	if responses != nil && cfg.CacheTTLSeconds > 0 {
		caching = mw.Cache(responses, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		invalidate = mw.Invalidate(responses)
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, invalidate)
	{
		api.GET("/furnaces", caching, handler.GetFurnaces)
		api.POST("/timeline/preview", handler.PreviewTimeline)

		furnace := api.Group("/furnaces/:furnace_id")
		furnace.GET("/bookings", caching, handler.GetBookings)
		furnace.GET("/availability", handler.GetAvailability)
		furnace.POST("/bookings", handler.CreateBooking)
		furnace.GET("/bookings/:booking_id", handler.GetBooking)
		furnace.PUT("/bookings/:booking_id", handler.UpdateBooking)
		furnace.DELETE("/bookings/:booking_id", handler.DeleteBooking)
		furnace.POST("/bookings/:booking_id/lines", handler.AddLines)
		furnace.POST("/bookings/:booking_id/status", handler.UpdateStatus)
		furnace.POST("/harmonize", handler.Harmonize)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		api.GET("/ws", handler.ServeWS)
	}

	return r
}
