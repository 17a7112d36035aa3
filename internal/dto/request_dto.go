package dto

// ReportEventRequest carries one client-reported anti-cheat event.
type ReportEventRequest struct {
	Event string                 `json:"event" binding:"required"`
	Data  map[string]interface{} `json:"data"`
}

// AgentEventRequest is the native agent variant; the agent is unauthenticated
// and must present the attempt-specific token instead.
type AgentEventRequest struct {
	AttemptID uint                   `json:"attempt_id" binding:"required"`
	Token     string                 `json:"token" binding:"required"`
	Event     string                 `json:"event" binding:"required"`
	Data      map[string]interface{} `json:"data"`
}

type UpdateAlertStatusRequest struct {
	Status string  `json:"status" binding:"required,oneof=PENDING INVESTIGATING RESOLVED FALSE_POSITIVE"`
	Notes  *string `json:"notes"`
}

type TerminateAttemptRequest struct {
	Reason string `json:"reason"`
}

// AutosaveRequest updates the running score of an in-progress attempt.
type AutosaveRequest struct {
	Score float64 `json:"score" binding:"min=0"`
}
