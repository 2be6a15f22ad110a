package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultOnTimeRate is the on-time percentage a borrower starts with.
const DefaultOnTimeRate = 100

// Reputation aggregates a borrower's completed loans. Created on first completion.
type Reputation struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          string          `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"userId"`
	CompletedLoans  int             `gorm:"column:completed_loans;not null;default:0" json:"completedLoans"`
	TotalImpact     decimal.Decimal `gorm:"column:total_impact;type:numeric(24,7);not null;default:0" json:"totalImpact"`
	NFTIDs          datatypes.JSON  `gorm:"column:nft_ids" json:"nftIds"`
	OnTimeRate      int             `gorm:"column:on_time_rate;not null;default:100" json:"onTimeRate"`
	ReputationScore int             `gorm:"column:reputation_score;not null;default:0;index" json:"reputationScore"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updatedAt"`
	User            *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Reputation) TableName() string {
	return "Reputations"
}

func (r *Reputation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NFTIDList decodes the awarded on-chain loan ids. Malformed JSON yields an empty list.
func (r *Reputation) NFTIDList() []uint64 {
	var ids []uint64
	if len(r.NFTIDs) == 0 {
		return ids
	}
	_ = json.Unmarshal(r.NFTIDs, &ids)
	return ids
}
