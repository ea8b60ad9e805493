package user

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusAdmin    Status = "admin"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusAdmin:
		return true
	}
	return false
}

// Approved reports whether the status grants access to the app.
func (s Status) Approved() bool { return s == StatusApproved || s == StatusAdmin }

// CanDecide reports whether an admin decision may move from -> to.
// Repeating the decision already recorded is allowed.
func CanDecide(from, to Status) bool {
	if to != StatusApproved && to != StatusRejected {
		return false
	}
	return from == StatusPending || from == to
}

// UserProfile is created on first sign-in and never deleted.
type UserProfile struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"uid"`
	GoogleSub   string    `gorm:"column:google_sub;uniqueIndex;not null" json:"-"`
	Email       string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"column:display_name" json:"display_name"`
	PhotoURL    string    `gorm:"column:photo_url" json:"photo_url"`
	Status      Status    `gorm:"column:status;not null;index" json:"status"`
	CreatedAt   time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profile" }
