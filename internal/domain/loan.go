package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	LoanStatusActive    = "ACTIVE"
	LoanStatusCompleted = "COMPLETED"
)

// Loan is a producer's milestone-collateralized loan. AmountReleased and ImpactAchieved only grow.
type Loan struct {
	ID                string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LoanIDOnChain     uint64          `gorm:"column:loan_id_on_chain;not null" json:"loanIdOnChain"`
	BorrowerID        string          `gorm:"column:borrower_id;type:uuid;not null;index" json:"borrowerId"`
	TotalAmount       decimal.Decimal `gorm:"column:total_amount;type:numeric(24,7);not null" json:"totalAmount"`
	NumMilestones     int             `gorm:"column:num_milestones;not null" json:"numMilestones"`
	ImpactDescription string          `gorm:"column:impact_description;not null" json:"impactDescription"`
	ImpactUnit        string          `gorm:"column:impact_unit;not null;index" json:"impactUnit"`
	ImpactTarget      decimal.Decimal `gorm:"column:impact_target;type:numeric(24,7);not null" json:"impactTarget"`
	AmountReleased    decimal.Decimal `gorm:"column:amount_released;type:numeric(24,7);not null;default:0" json:"amountReleased"`
	ImpactAchieved    decimal.Decimal `gorm:"column:impact_achieved;type:numeric(24,7);not null;default:0" json:"impactAchieved"`
	Status            string          `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	TxHash            string          `gorm:"column:tx_hash" json:"txHash"`
	ApprovedAt        *time.Time      `gorm:"column:approved_at" json:"approvedAt"`
	CompletedAt       *time.Time      `gorm:"column:completed_at" json:"completedAt"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updatedAt"`
	Borrower          *User           `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Milestones        []Milestone     `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
	Validations       []Validation    `gorm:"foreignKey:LoanID" json:"validations,omitempty"`
}

func (Loan) TableName() string {
	return "Loans"
}

func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Milestone is one equal share of a loan, released when a validator confirms the impact.
// Validated with a TxHash is terminal; Validated without one is a claim still waiting on the ledger.
type Milestone struct {
	ID                  string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LoanID              string          `gorm:"column:loan_id;type:uuid;not null;uniqueIndex:idx_milestone_loan_index" json:"loanId"`
	Index               int             `gorm:"column:milestone_index;not null;uniqueIndex:idx_milestone_loan_index" json:"index"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(24,7);not null" json:"amount"`
	ImpactRequired      decimal.Decimal `gorm:"column:impact_required;type:numeric(24,7);not null" json:"impactRequired"`
	Validated           bool            `gorm:"column:validated;not null;default:false" json:"validated"`
	ValidatorID         *string         `gorm:"column:validator_id;type:uuid" json:"validatorId"`
	ValidationTimestamp *time.Time      `gorm:"column:validation_timestamp" json:"validationTimestamp"`
	TxHash              string          `gorm:"column:tx_hash" json:"txHash"`
	CreatedAt           time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Milestone) TableName() string {
	return "Milestones"
}

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Confirmed reports whether the ledger accepted this milestone's validation.
func (m Milestone) Confirmed() bool {
	return m.Validated && m.TxHash != ""
}
