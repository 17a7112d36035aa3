package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventSourceBrowser = "browser"
	EventSourceAgent   = "agent"
	EventSourceSystem  = "system"
)

// EventTerminatedByStaff is the audit record appended when an attempt is
// forcibly terminated.
const EventTerminatedByStaff = "exam_terminated_by_staff"

// AttemptEvent is an append-only fact reported by the browser extension, the
// native agent or the system itself. Insertion order is arrival order;
// duplicates are allowed.
type AttemptEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	AttemptID uint           `json:"attempt_id" gorm:"not null;index"`
	Event     string         `json:"event" gorm:"not null;index"`
	Payload   datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	Source    string         `json:"source" gorm:"not null;default:'browser'"` // "browser", "agent", "system"
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"ua,omitempty"`
	CreatedAt time.Time      `json:"ts"`
}
