package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"solpilot/internal/autopilot"
	"solpilot/internal/models"
	dbconfig "solpilot/pkg/config"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var service *autopilot.Service

// SetService wires the autopilot service the handlers act on.
func SetService(s *autopilot.Service) {
	service = s
}

// RunAutopilot triggers one full autopilot cycle for a wallet
func RunAutopilot(c *gin.Context) {
	wallet := c.Param("wallet")
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	report, err := service.Run(c.Request.Context(), wallet)
	if err != nil {
		if errors.Is(err, autopilot.ErrUpstream) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	persistExecutedOrders(report.Executed)
	c.JSON(http.StatusOK, report)
}

// GetAutopilotStatus returns the wallet's latest monitor snapshot
func GetAutopilotStatus(c *gin.Context) {
	wallet := c.Param("wallet")
	snapshot := service.Monitor().Snapshot(wallet)
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot for this wallet yet"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ListStrategies returns the configured strategy set
func ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, service.Strategies())
}

// persistExecutedOrders mirrors executed orders into postgres for reporting.
// Best-effort: the in-memory audit log is authoritative.
func persistExecutedOrders(orders []autopilot.ExecutedOrder) {
	if dbconfig.DB == nil {
		return
	}
	for _, order := range orders {
		metadata, _ := json.Marshal(order.Metadata)
		record := models.ExecutedOrderRecord{
			OrderID:         order.ID,
			WalletAddress:   order.WalletAddress,
			Strategy:        order.Strategy,
			Action:          string(order.Action),
			InputToken:      order.InputToken,
			OutputToken:     order.OutputToken,
			InputAmount:     order.InputAmount,
			EstimatedOutput: order.EstimatedOutput,
			Status:          string(order.Status),
			Transaction:     order.Transaction,
			Error:           order.Error,
			Metadata:        metadata,
			ExecutedAt:      order.Timestamp,
		}
		if err := dbconfig.DB.Create(&record).Error; err != nil {
			log.Warnf("Failed to persist executed order %s: %v", order.ID, err)
		}
	}
}
