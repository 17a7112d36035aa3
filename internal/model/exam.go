package model

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Title     string         `json:"title" gorm:"not null"`
	CreatorID uint           `json:"creator_id" gorm:"not null;index"`
	Creator   User           `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
