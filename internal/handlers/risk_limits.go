package handlers

import (
	"encoding/json"
	"net/http"

	"solpilot/internal/autopilot"
	"solpilot/internal/models"
	dbconfig "solpilot/pkg/config"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RiskLimitsResponse bundles the stored limits with the live daily loss.
type RiskLimitsResponse struct {
	autopilot.RiskLimits
	DailyLossUSD float64 `json:"daily_loss_usd"`
}

// GetRiskLimits returns a wallet's risk limits, creating defaults on first
// lookup
func GetRiskLimits(c *gin.Context) {
	wallet := c.Param("wallet")
	limits := service.Risk().GetLimits(wallet)
	c.JSON(http.StatusOK, RiskLimitsResponse{
		RiskLimits:   limits,
		DailyLossUSD: service.Risk().DailyLoss(wallet),
	})
}

// UpdateRiskLimits applies a partial update to a wallet's risk limits
func UpdateRiskLimits(c *gin.Context) {
	wallet := c.Param("wallet")
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	var patch autopilot.RiskLimitsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limits := service.Risk().UpdateLimits(wallet, patch)
	persistWalletSettings(limits)
	c.JSON(http.StatusOK, limits)
}

// ResetDailyLoss clears a wallet's daily-loss tracker
func ResetDailyLoss(c *gin.Context) {
	wallet := c.Param("wallet")
	service.Risk().ResetDailyLoss(wallet)
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// LoadWalletSettings re-seeds the risk manager from persisted wallet
// settings. Called once at startup; later updates flow the other way.
func LoadWalletSettings(risk *autopilot.RiskManager) {
	if dbconfig.DB == nil {
		return
	}
	var rows []models.WalletSettings
	if err := dbconfig.DB.Find(&rows).Error; err != nil {
		log.Warnf("Failed to load wallet settings: %v", err)
		return
	}
	for _, row := range rows {
		row := row
		var whitelist, blacklist []string
		_ = json.Unmarshal(row.TokenWhitelist, &whitelist)
		_ = json.Unmarshal(row.TokenBlacklist, &blacklist)
		risk.UpdateLimits(row.WalletAddress, autopilot.RiskLimitsPatch{
			MaxDailyLossUSD:           &row.MaxDailyLossUSD,
			MaxOrderSizeUSD:           &row.MaxOrderSizeUSD,
			MaxSlippagePercent:        &row.MaxSlippagePercent,
			MaxPortfolioConcentration: &row.MaxPortfolioConcentration,
			TokenWhitelist:            &whitelist,
			TokenBlacklist:            &blacklist,
			EnableAutopilot:           &row.EnableAutopilot,
		})
	}
	if len(rows) > 0 {
		log.Infof("Loaded risk limits for %d wallets", len(rows))
	}
}

// persistWalletSettings mirrors risk limits into postgres for reporting.
func persistWalletSettings(limits autopilot.RiskLimits) {
	if dbconfig.DB == nil {
		return
	}
	whitelist, _ := json.Marshal(limits.TokenWhitelist)
	blacklist, _ := json.Marshal(limits.TokenBlacklist)
	record := models.WalletSettings{
		WalletAddress:             limits.WalletAddress,
		EnableAutopilot:           limits.EnableAutopilot,
		MaxDailyLossUSD:           limits.MaxDailyLossUSD,
		MaxOrderSizeUSD:           limits.MaxOrderSizeUSD,
		MaxSlippagePercent:        limits.MaxSlippagePercent,
		MaxPortfolioConcentration: limits.MaxPortfolioConcentration,
		TokenWhitelist:            whitelist,
		TokenBlacklist:            blacklist,
	}

	var existing models.WalletSettings
	err := dbconfig.DB.Where("wallet_address = ?", limits.WalletAddress).First(&existing).Error
	if err == nil {
		record.ID = existing.ID
		err = dbconfig.DB.Save(&record).Error
	} else {
		err = dbconfig.DB.Create(&record).Error
	}
	if err != nil {
		log.Warnf("Failed to persist wallet settings for %s: %v", limits.WalletAddress, err)
	}
}
