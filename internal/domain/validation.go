package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Validation records the proof bundle of one successful milestone validation.
type Validation struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LoanID          string          `gorm:"column:loan_id;type:uuid;not null;index" json:"loanId"`
	MilestoneID     string          `gorm:"column:milestone_id;type:uuid;not null;index" json:"milestoneId"`
	ValidatorID     string          `gorm:"column:validator_id;type:uuid;not null;index" json:"validatorId"`
	ImpactDelivered decimal.Decimal `gorm:"column:impact_delivered;type:numeric(24,7);not null" json:"impactDelivered"`
	ProofHash       *string         `gorm:"column:proof_hash" json:"proofHash"`
	ProofImages     datatypes.JSON  `gorm:"column:proof_images" json:"proofImages"`
	Notes           *string         `gorm:"column:notes" json:"notes"`
	TxHash          string          `gorm:"column:tx_hash;not null" json:"txHash"`
	IdempotencyKey  string          `gorm:"column:idempotency_key;index" json:"-"`
	ValidatedAt     time.Time       `gorm:"column:validated_at;not null" json:"validatedAt"`
	Validator       *User           `gorm:"foreignKey:ValidatorID" json:"validator,omitempty"`
	Milestone       *Milestone      `gorm:"foreignKey:MilestoneID" json:"milestone,omitempty"`
	Loan            *Loan           `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
}

func (Validation) TableName() string {
	return "Validations"
}

func (v *Validation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.ValidatedAt.IsZero() {
		v.ValidatedAt = time.Now()
	}
	return nil
}
