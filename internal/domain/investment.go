package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investment is an append-only record of liquidity added to the pool.
type Investment struct {
	ID         string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvestorID string          `gorm:"column:investor_id;type:uuid;not null;index" json:"investorId"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(24,7);not null" json:"amount"`
	TxHash     string          `gorm:"column:tx_hash;not null" json:"txHash"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"createdAt"`
}

func (Investment) TableName() string {
	return "Investments"
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
