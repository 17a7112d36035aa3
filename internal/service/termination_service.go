package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/ws"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TerminatedStudentMessage is what the student's live session receives.
const TerminatedStudentMessage = "Your exam has been terminated due to suspicious activity."

// TerminationService forces an attempt into its terminal zero-score state,
// exactly once, and notifies the live student session. The persisted state
// change and the audit event commit atomically before any broadcast: a client
// must never be told it is terminated unless the server actually committed.
type TerminationService interface {
	Terminate(attemptID uint, actor Actor, reason string) error
}

type terminationService struct {
	attemptRepo repository.AttemptRepository
	publisher   ws.Publisher
	locks       *AttemptLocker
}

func NewTerminationService(attemptRepo repository.AttemptRepository, publisher ws.Publisher, locks *AttemptLocker) TerminationService {
	return &terminationService{attemptRepo: attemptRepo, publisher: publisher, locks: locks}
}

func (s *terminationService) Terminate(attemptID uint, actor Actor, reason string) error {
	s.locks.Lock(attemptID)
	defer s.locks.Unlock(attemptID)

	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}
	if attempt.Finished() {
		return ErrAttemptAlreadyTerminated
	}

	if reason == "" {
		reason = "Suspicious activity detected"
	}
	now := time.Now()
	zero := 0.0
	attempt.Score = &zero
	attempt.FinishedAt = &now
	attempt.Terminated = true
	attempt.TerminationReason = &reason

	payload, err := json.Marshal(map[string]string{
		"terminated_by":      actor.Username,
		"terminated_by_role": actor.Role,
		"reason":             reason,
	})
	if err != nil {
		return fmt.Errorf("failed to encode termination audit payload: %w", err)
	}
	audit := &model.AttemptEvent{
		AttemptID: attemptID,
		Event:     model.EventTerminatedByStaff,
		Payload:   payload,
		Source:    model.EventSourceSystem,
	}

	if err := s.attemptRepo.FinalizeWithAudit(attempt, audit); err != nil {
		return fmt.Errorf("failed to terminate attempt %d: %w", attemptID, err)
	}

	log.Info().
		Uint("attemptID", attemptID).
		Str("actor", actor.Username).
		Str("reason", reason).
		Msg("Attempt terminated")

	// Commit-then-broadcast. The transport is at-least-once and best effort;
	// a delivery failure never unwinds the committed termination.
	s.publisher.PublishAttempt(attemptID, ws.Message{
		Type: ws.MessageTypeExamTerminated,
		Data: ws.TerminationData{AttemptID: attemptID, Message: TerminatedStudentMessage},
	})
	return nil
}
