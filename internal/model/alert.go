package model

import (
	"time"

	"gorm.io/gorm"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for escalation; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

type AlertStatus string

const (
	AlertPending       AlertStatus = "PENDING"
	AlertInvestigating AlertStatus = "INVESTIGATING"
	AlertResolved      AlertStatus = "RESOLVED"
	AlertFalsePositive AlertStatus = "FALSE_POSITIVE"
)

// Terminal reports whether no further status transition is allowed.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertFalsePositive
}

// CanTransitionTo enforces the alert lifecycle:
// PENDING -> INVESTIGATING | RESOLVED | FALSE_POSITIVE,
// INVESTIGATING -> RESOLVED | FALSE_POSITIVE.
func (s AlertStatus) CanTransitionTo(to AlertStatus) bool {
	switch s {
	case AlertPending:
		return to == AlertInvestigating || to == AlertResolved || to == AlertFalsePositive
	case AlertInvestigating:
		return to == AlertResolved || to == AlertFalsePositive
	}
	return false
}

// Alert is a staff-visible case opened from one or more violations.
type Alert struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	ExamID      uint           `json:"exam_id" gorm:"not null;index:idx_alerts_exam_student"`
	ExamName    string         `json:"exam_name" gorm:"not null"`
	StudentID   uint           `json:"student_id" gorm:"not null;index:idx_alerts_exam_student"`
	StudentName string         `json:"student_name" gorm:"not null"`
	AlertType   string         `json:"alert_type" gorm:"not null"`
	Severity    Severity       `json:"severity" gorm:"type:varchar(16);not null;check:severity IN ('LOW','MEDIUM','HIGH','CRITICAL')"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Status      AlertStatus    `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';check:status IN ('PENDING','INVESTIGATING','RESOLVED','FALSE_POSITIVE')"`
	Notes       *string        `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
