package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a marketplace participant identified by a Stellar account.
type User struct {
	ID               string      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email            string      `gorm:"column:email;not null;uniqueIndex" json:"email,omitempty"`
	Name             string      `gorm:"column:name;not null" json:"name"`
	Role             string      `gorm:"column:role;type:varchar(20);not null" json:"role"`
	StellarPublicKey string      `gorm:"column:stellar_public_key;type:varchar(56);not null;uniqueIndex" json:"stellarPublicKey"`
	PasswordHash     string      `gorm:"column:password_hash" json:"-"`
	Phone            *string     `gorm:"column:phone" json:"phone,omitempty"`
	Location         *string     `gorm:"column:location" json:"location,omitempty"`
	ProfileImage     *string     `gorm:"column:profile_image" json:"profileImage,omitempty"`
	Verified         bool        `gorm:"column:verified;not null;default:false" json:"verified"`
	CreatedAt        time.Time   `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        time.Time   `gorm:"column:updated_at" json:"updatedAt"`
	Reputation       *Reputation `gorm:"foreignKey:UserID" json:"reputation,omitempty"`
	Loans            []Loan      `gorm:"foreignKey:BorrowerID" json:"loansAsBorrower,omitempty"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate sets the id if not already set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
