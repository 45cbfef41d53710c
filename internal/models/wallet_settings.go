package models

import (
	"encoding/json"
	"time"
)

// WalletSettings mirrors a wallet's risk limits for reporting and for
// re-seeding the in-memory risk manager at startup.
type WalletSettings struct {
	ID                        uint            `gorm:"primarykey" json:"id"`
	WalletAddress             string          `gorm:"size:64;uniqueIndex;not null" json:"wallet_address"`
	EnableAutopilot           bool            `gorm:"default:false" json:"enable_autopilot"`
	MaxDailyLossUSD           float64         `json:"max_daily_loss_usd"`
	MaxOrderSizeUSD           float64         `json:"max_order_size_usd"`
	MaxSlippagePercent        float64         `json:"max_slippage_percent"`
	MaxPortfolioConcentration float64         `json:"max_portfolio_concentration"`
	TokenWhitelist            json.RawMessage `gorm:"type:jsonb" json:"token_whitelist"`
	TokenBlacklist            json.RawMessage `gorm:"type:jsonb" json:"token_blacklist"`
	CreatedAt                 time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt                 time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (WalletSettings) TableName() string {
	return "wallet_settings"
}
