package routes

import (
	"solpilot/internal/handlers"
	"solpilot/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAutopilotRoutes sets up all routes related to the autopilot engine
func SetupAutopilotRoutes(r *gin.Engine) {
	runLimiter := middleware.RunRateLimiter(middleware.RunLimiterConfig{
		RunsPerMinute: 6,
		Burst:         3,
	})

	ap := r.Group("/autopilot")
	{
		ap.POST("/run/:wallet", runLimiter, handlers.RunAutopilot)
		ap.GET("/status/:wallet", handlers.GetAutopilotStatus)
		ap.GET("/strategies", handlers.ListStrategies)
	}
}
