package models

import (
	"encoding/json"
	"time"
)

// ExecutedOrderRecord mirrors the in-memory execution log into postgres for
// reporting. The in-memory log stays authoritative for the pipeline.
type ExecutedOrderRecord struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	OrderID         string          `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	WalletAddress   string          `gorm:"size:64;index;not null" json:"wallet_address"`
	Strategy        string          `gorm:"size:32;not null" json:"strategy"`
	Action          string          `gorm:"size:16;not null" json:"action"`
	InputToken      string          `gorm:"size:32;not null" json:"input_token"`
	OutputToken     string          `gorm:"size:32;not null" json:"output_token"`
	InputAmount     float64         `gorm:"not null" json:"input_amount"`
	EstimatedOutput float64         `json:"estimated_output"`
	Status          string          `gorm:"size:16;not null" json:"status"`
	Transaction     string          `gorm:"type:text" json:"transaction"`
	Error           string          `gorm:"type:text" json:"error"`
	Metadata        json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	ExecutedAt      time.Time       `json:"executed_at"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ExecutedOrderRecord) TableName() string {
	return "executed_order"
}
