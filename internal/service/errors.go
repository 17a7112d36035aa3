package service

import (
	"errors"
	"time"
)

// timeNow is swappable in tests.
var timeNow = time.Now

var (
	// ErrAttemptNotFound is returned when the attempt id does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptTerminated rejects event ingestion into a terminal attempt.
	ErrAttemptTerminated = errors.New("attempt already finished, event rejected")
	// ErrAttemptAlreadyTerminated is the second caller's result when two
	// terminations race; the first caller's state is untouched.
	ErrAttemptAlreadyTerminated = errors.New("attempt already terminated")
	// ErrAlertNotFound is returned when the alert id does not exist.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidTransition rejects an alert status change not reachable from
	// the current status.
	ErrInvalidTransition = errors.New("invalid alert status transition")
	// ErrNotAttemptOwner rejects event reports from anyone but the sitting student.
	ErrNotAttemptOwner = errors.New("attempt belongs to another student")
	// ErrInvalidAgentToken rejects agent reports with a missing or stale token.
	ErrInvalidAgentToken = errors.New("invalid agent token")
	// ErrRateLimited rejects event floods for one attempt.
	ErrRateLimited = errors.New("event rate limit exceeded")
)

// Actor identifies who performed a staff or system action, for audit records.
type Actor struct {
	Username string
	Role     string
}

// SystemActor marks automatic actions taken by the detection pipeline itself.
var SystemActor = Actor{Username: "system", Role: "system"}
