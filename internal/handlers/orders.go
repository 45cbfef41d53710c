package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListExecutedOrders returns the most recent entries of the execution log
func ListExecutedOrders(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}
	c.JSON(http.StatusOK, service.Executor().Log(limit))
}

// GetExecutionStats returns aggregate statistics over the execution log
func GetExecutionStats(c *gin.Context) {
	c.JSON(http.StatusOK, service.Executor().Stats())
}
