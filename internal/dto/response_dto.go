package dto

import "time"

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type AlertResponse struct {
	ID          uint       `json:"id"`
	ExamID      uint       `json:"exam_id"`
	ExamName    string     `json:"exam_name"`
	StudentID   uint       `json:"student_id"`
	StudentName string     `json:"student_name"`
	AlertType   string     `json:"alert_type"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// AlertSummaryResponse mirrors the per-exam dashboard counters.
type AlertSummaryResponse struct {
	ExamID   uint  `json:"exam_id"`
	Total    int64 `json:"total"`
	Critical int64 `json:"critical"`
	High     int64 `json:"high"`
	Medium   int64 `json:"medium"`
	Low      int64 `json:"low"`
}

type ViolationResponse struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	Count       int    `json:"count"`
}

type AnalysisResponse struct {
	AttemptID  uint                `json:"attempt_id"`
	Violations []ViolationResponse `json:"violations"`
	AlertID    *uint               `json:"alert_id,omitempty"`
	Terminated bool                `json:"terminated"`
}

type ReportEventResponse struct {
	Status  string `json:"status"` // "ok" or "finished"
	Message string `json:"message,omitempty"`
}

type AgentTokenResponse struct {
	AttemptID uint   `json:"attempt_id"`
	Token     string `json:"token"`
}

type TerminateResponse struct {
	AttemptID uint   `json:"attempt_id"`
	Status    string `json:"status"`
}

type NotificationResponse struct {
	ID        uint      `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
