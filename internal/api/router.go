package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"haul-fleet-backend/config"
	"haul-fleet-backend/internal/hauling"
	"haul-fleet-backend/internal/mw"
	"haul-fleet-backend/internal/notification"
)

// NewRouter creates and configures the Gin router.
func NewRouter(db *gorm.DB, coordinator *hauling.Coordinator, pool *notification.WorkerPool, webpushOptions *webpush.Options, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(db, coordinator, pool, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		haulings := api.Group("/haulings")
		{
			haulings.POST("", handler.CreateHauling)
			haulings.GET("", handler.ListHaulings)
			haulings.GET("/active", handler.ListActiveHaulings)
			haulings.GET("/statistics", caching, handler.GetStatistics)
			haulings.GET("/:id", handler.GetHauling)
			haulings.PATCH("/:id", handler.UpdateHauling)
			haulings.POST("/:id/complete-loading", handler.CompleteLoading)
			haulings.POST("/:id/complete-dumping", handler.CompleteDumping)
			haulings.POST("/:id/complete", handler.CompleteHauling)
			haulings.POST("/:id/cancel", handler.CancelHauling)
			haulings.POST("/:id/delay", handler.AddDelay)
		}

		trucks := api.Group("/trucks")
		{
			trucks.GET("", handler.ListTrucks)
			trucks.POST("", handler.CreateTruck)
			trucks.GET("/:id", handler.GetTruck)
			trucks.PATCH("/:id", handler.UpdateTruck)
			trucks.PATCH("/:id/status", handler.UpdateTruckStatus)
			trucks.DELETE("/:id", handler.DeleteTruck)
			trucks.GET("/:id/performance", caching, handler.GetTruckPerformance)
			trucks.GET("/:id/status-log", handler.GetTruckStatusLog)
		}

		excavators := api.Group("/excavators")
		{
			excavators.GET("", handler.ListExcavators)
			excavators.POST("", handler.CreateExcavator)
			excavators.GET("/:id", handler.GetExcavator)
			excavators.PATCH("/:id", handler.UpdateExcavator)
			excavators.PATCH("/:id/status", handler.UpdateExcavatorStatus)
			excavators.DELETE("/:id", handler.DeleteExcavator)
		}

		api.GET("/operators", handler.ListOperators)
		api.GET("/loading-points", caching, handler.ListLoadingPoints)
		api.GET("/dumping-points", caching, handler.ListDumpingPoints)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
