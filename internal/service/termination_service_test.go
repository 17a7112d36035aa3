package service

import (
	"errors"
	"testing"
	"time"

	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/ws"
	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

func newTestTerminationService(attempts ...*model.ExamAttempt) (TerminationService, *fakeAttemptRepo, *fakePublisher) {
	attemptRepo := newFakeAttemptRepo(attempts...)
	publisher := newFakePublisher()
	svc := NewTerminationService(attemptRepo, publisher, NewAttemptLocker())
	return svc, attemptRepo, publisher
}

func liveAttempt(id uint) *model.ExamAttempt {
	score := 5.5
	return &model.ExamAttempt{
		ID:     id,
		ExamID: 7,
		Exam:   model.Exam{ID: 7, Title: "Final Exam", CreatorID: 3},
		UserID: 42,
		User:   model.User{ID: 42, Username: "alice", Role: model.RoleStudent},
		Score:  &score,
	}
}

func TestTerminateFinalizesAttempt(t *testing.T) {
	svc, attemptRepo, publisher := newTestTerminationService(liveAttempt(1))
	actor := Actor{Username: "proctor1", Role: model.RoleStaff}

	if err := svc.Terminate(1, actor, "talking during exam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	attempt, _ := attemptRepo.FindByID(1)
	if attempt.Score == nil || *attempt.Score != 0 {
		t.Errorf("score must be forced to zero, got %v", attempt.Score)
	}
	if attempt.FinishedAt == nil {
		t.Errorf("finished_at must be set")
	}
	if !attempt.Terminated {
		t.Errorf("terminated flag must be set")
	}
	if attempt.TerminationReason == nil || *attempt.TerminationReason != "talking during exam" {
		t.Errorf("wrong reason: %v", attempt.TerminationReason)
	}

	msgs := publisher.messagesOfType(1, ws.MessageTypeExamTerminated)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one termination broadcast, got %d", len(msgs))
	}
	data, ok := msgs[0].Data.(ws.TerminationData)
	if !ok {
		t.Fatalf("unexpected payload type %T", msgs[0].Data)
	}
	if data.AttemptID != 1 || data.Message != TerminatedStudentMessage {
		t.Errorf("wrong broadcast payload: %+v", data)
	}
}

func TestTerminateWritesAuditEvent(t *testing.T) {
	svc, attemptRepo, _ := newTestTerminationService(liveAttempt(1))
	actor := Actor{Username: "proctor1", Role: model.RoleAdmin}

	if err := svc.Terminate(1, actor, "cheating"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(attemptRepo.auditEvents) != 1 {
		t.Fatalf("expected one audit event, got %d", len(attemptRepo.auditEvents))
	}
	audit := attemptRepo.auditEvents[0]
	if audit.Event != model.EventTerminatedByStaff {
		t.Errorf("wrong audit event name: %s", audit.Event)
	}
	if audit.Source != model.EventSourceSystem {
		t.Errorf("audit must be system-sourced, got %s", audit.Source)
	}
	var payload map[string]string
	if err := json.Unmarshal(audit.Payload, &payload); err != nil {
		t.Fatalf("audit payload not decodable: %v", err)
	}
	if payload["terminated_by"] != "proctor1" || payload["terminated_by_role"] != model.RoleAdmin || payload["reason"] != "cheating" {
		t.Errorf("wrong audit payload: %v", payload)
	}
}

func TestTerminateDefaultReason(t *testing.T) {
	svc, attemptRepo, _ := newTestTerminationService(liveAttempt(1))
	if err := svc.Terminate(1, SystemActor, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	attempt, _ := attemptRepo.FindByID(1)
	if attempt.TerminationReason == nil || *attempt.TerminationReason != "Suspicious activity detected" {
		t.Errorf("default reason missing: %v", attempt.TerminationReason)
	}
}

func TestTerminateSecondCallRejected(t *testing.T) {
	svc, attemptRepo, publisher := newTestTerminationService(liveAttempt(1))
	actor := Actor{Username: "proctor1", Role: model.RoleStaff}

	if err := svc.Terminate(1, actor, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := attemptRepo.FindByID(1)

	err := svc.Terminate(1, actor, "second")
	if !errors.Is(err, ErrAttemptAlreadyTerminated) {
		t.Fatalf("expected ErrAttemptAlreadyTerminated, got %v", err)
	}

	after, _ := attemptRepo.FindByID(1)
	if *after.TerminationReason != *before.TerminationReason || !after.FinishedAt.Equal(*before.FinishedAt) {
		t.Errorf("second call must not change the committed state")
	}
	if got := len(publisher.messagesOfType(1, ws.MessageTypeExamTerminated)); got != 1 {
		t.Errorf("second call must not broadcast again, got %d messages", got)
	}
	if len(attemptRepo.auditEvents) != 1 {
		t.Errorf("second call must not append another audit event")
	}
}

func TestTerminateFinishedAttemptRejected(t *testing.T) {
	attempt := liveAttempt(1)
	done := time.Now()
	attempt.FinishedAt = &done
	svc, _, publisher := newTestTerminationService(attempt)

	err := svc.Terminate(1, SystemActor, "late trigger")
	if !errors.Is(err, ErrAttemptAlreadyTerminated) {
		t.Fatalf("expected ErrAttemptAlreadyTerminated, got %v", err)
	}
	if len(publisher.messagesOfType(1, ws.MessageTypeExamTerminated)) != 0 {
		t.Errorf("no broadcast for a finished attempt")
	}
}

func TestTerminateCommitFailureSkipsBroadcast(t *testing.T) {
	svc, attemptRepo, publisher := newTestTerminationService(liveAttempt(1))
	attemptRepo.finalizeErr = gorm.ErrInvalidTransaction

	err := svc.Terminate(1, SystemActor, "x")
	if !errors.Is(err, gorm.ErrInvalidTransaction) {
		t.Fatalf("commit failure must surface, got %v", err)
	}
	if len(publisher.messagesOfType(1, ws.MessageTypeExamTerminated)) != 0 {
		t.Errorf("broadcast must only follow a successful commit")
	}

	// The attempt stays live and a retry succeeds.
	attemptRepo.finalizeErr = nil
	if err := svc.Terminate(1, SystemActor, "x"); err != nil {
		t.Fatalf("retry after commit failure: %v", err)
	}
}

func TestTerminateUnknownAttempt(t *testing.T) {
	svc, _, _ := newTestTerminationService()
	if err := svc.Terminate(404, SystemActor, "x"); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestTerminateConcurrentCallsSingleWinner(t *testing.T) {
	svc, attemptRepo, publisher := newTestTerminationService(liveAttempt(1))

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			errs <- svc.Terminate(1, SystemActor, "race")
		}()
	}

	var won, lost int
	for i := 0; i < callers; i++ {
		switch err := <-errs; {
		case err == nil:
			won++
		case errors.Is(err, ErrAttemptAlreadyTerminated):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != callers-1 {
		t.Errorf("expected one winner, got %d winners and %d losers", won, lost)
	}
	if len(publisher.messagesOfType(1, ws.MessageTypeExamTerminated)) != 1 {
		t.Errorf("exactly one broadcast expected")
	}
	if len(attemptRepo.auditEvents) != 1 {
		t.Errorf("exactly one audit event expected")
	}
}
