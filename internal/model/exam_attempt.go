package model

import (
	"time"

	"gorm.io/gorm"
)

// ExamAttempt is one student's single sitting of one exam. Once FinishedAt is
// set the attempt is terminal: no further event is accepted and score,
// terminated and termination_reason never change again.
type ExamAttempt struct {
	ID                uint           `gorm:"primarykey" json:"id"`
	ExamID            uint           `json:"exam_id" gorm:"not null;index:idx_attempts_exam_user"`
	Exam              Exam           `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	UserID            uint           `json:"user_id" gorm:"not null;index:idx_attempts_exam_user"`
	User              User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Score             *float64       `json:"score,omitempty"`
	StartedAt         time.Time      `json:"started_at" gorm:"autoCreateTime"`
	FinishedAt        *time.Time     `json:"finished_at,omitempty"`
	Terminated        bool           `json:"terminated" gorm:"not null;default:false"`
	TerminationReason *string        `json:"termination_reason,omitempty"`
	AgentToken        *string        `json:"-" gorm:"size:64"` // short-lived token for native agent reporting
	Events            []AttemptEvent `json:"events,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// Finished reports whether the attempt has reached its terminal state.
func (a *ExamAttempt) Finished() bool {
	return a.FinishedAt != nil
}
