package routes

import (
	"solpilot/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupRiskLimitsRoutes sets up all routes related to risk limit management
func SetupRiskLimitsRoutes(r *gin.Engine) {
	limits := r.Group("/risk-limits")
	{
		limits.GET("/:wallet", handlers.GetRiskLimits)
		limits.PUT("/:wallet", handlers.UpdateRiskLimits)
		limits.POST("/:wallet/reset-daily-loss", handlers.ResetDailyLoss)
	}
}
