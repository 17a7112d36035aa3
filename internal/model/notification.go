package model

import "time"

const NotificationTypeProctoringAlert = "proctoring_alert"

// Notification is created by alert fan-out, one per recipient, and mutated
// only by the recipient marking it read.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Type      string    `json:"type" gorm:"not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Read      bool      `json:"read" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}
