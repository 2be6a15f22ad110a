package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationMilestoneValidated = "milestone_validated"
	NotificationLoanCompleted      = "loan_completed"
)

type Notification struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Message   string         `gorm:"column:message;not null" json:"message"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	Read      bool           `gorm:"column:read;not null;default:false" json:"read"`
	CreatedAt time.Time      `gorm:"column:created_at;index" json:"createdAt"`
}

func (Notification) TableName() string {
	return "Notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
