package routes

import (
	"solpilot/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupOrderRoutes sets up all routes related to the execution log
func SetupOrderRoutes(r *gin.Engine) {
	orders := r.Group("/orders")
	{
		orders.GET("", handlers.ListExecutedOrders)
		orders.GET("/stats", handlers.GetExecutionStats)
	}
}
