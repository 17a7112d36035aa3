package service

import (
	"errors"
	"fmt"

	"github.com/ducmanh-ng/Invigilo/config"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AnalysisResult is the outcome of one aggregation pass over an attempt.
type AnalysisResult struct {
	AttemptID  uint
	Violations []Violation
	Alert      *model.Alert
	Terminated bool
}

// AggregationService decides when the classifier runs and what happens with
// its output. It re-derives violations from the immutable event log on every
// pass instead of keeping live counters, so repeated analysis cannot drift
// from persisted history.
type AggregationService interface {
	Analyze(attemptID uint) (*AnalysisResult, error)
}

type aggregationService struct {
	attemptRepo    repository.AttemptRepository
	eventRepo      repository.AttemptEventRepository
	classifier     ViolationClassifier
	alertSvc       AlertService
	terminationSvc TerminationService
	locks          *AttemptLocker
	policy         config.Proctoring
}

func NewAggregationService(
	attemptRepo repository.AttemptRepository,
	eventRepo repository.AttemptEventRepository,
	classifier ViolationClassifier,
	alertSvc AlertService,
	terminationSvc TerminationService,
	locks *AttemptLocker,
	cfg *config.Config,
) AggregationService {
	return &aggregationService{
		attemptRepo:    attemptRepo,
		eventRepo:      eventRepo,
		classifier:     classifier,
		alertSvc:       alertSvc,
		terminationSvc: terminationSvc,
		locks:          locks,
		policy:         cfg.Proctoring,
	}
}

func (s *aggregationService) Analyze(attemptID uint) (*AnalysisResult, error) {
	result, terminate, reason, err := s.analyzeLocked(attemptID)
	if err != nil {
		return nil, err
	}

	// Auto-termination re-acquires the per-attempt lock inside the
	// coordinator, so it runs after the analysis critical section.
	if terminate {
		err := s.terminationSvc.Terminate(attemptID, SystemActor, reason)
		switch {
		case err == nil:
			result.Terminated = true
		case errors.Is(err, ErrAttemptAlreadyTerminated):
			result.Terminated = true
		default:
			log.Error().Err(err).Uint("attemptID", attemptID).Msg("Auto-termination failed")
		}
	}
	return result, nil
}

func (s *aggregationService) analyzeLocked(attemptID uint) (*AnalysisResult, bool, string, error) {
	s.locks.Lock(attemptID)
	defer s.locks.Unlock(attemptID)

	attempt, err := s.attemptRepo.FindByIDWithDetails(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, "", ErrAttemptNotFound
		}
		return nil, false, "", fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}

	events, err := s.eventRepo.FindAllByAttemptID(attemptID)
	if err != nil {
		return nil, false, "", fmt.Errorf("failed to load events for attempt %d: %w", attemptID, err)
	}

	violations := s.classifier.Classify(events)
	result := &AnalysisResult{AttemptID: attemptID, Violations: violations}
	if len(violations) == 0 {
		return result, false, "", nil
	}

	alert, err := s.alertSvc.CreateOrUpdate(&attempt.Exam, &attempt.User, violations)
	if err != nil {
		return nil, false, "", err
	}
	result.Alert = alert

	terminate, reason := s.shouldTerminate(violations, attempt)
	return result, terminate, reason, nil
}

// shouldTerminate applies the auto-termination policy to CRITICAL violations.
func (s *aggregationService) shouldTerminate(violations []Violation, attempt *model.ExamAttempt) (bool, string) {
	if attempt.Finished() {
		return false, ""
	}
	for _, v := range violations {
		if v.Severity != model.SeverityCritical {
			continue
		}
		switch v.Type {
		case ViolationFullscreenExit:
			if s.policy.AutoTerminateOnFullscreenExit {
				return true, "Anti-cheat trigger: left fullscreen during exam"
			}
		case ViolationUnauthorizedApp:
			if s.policy.AutoTerminateOnUnauthorizedApp {
				return true, "Anti-cheat trigger: unauthorized application detected"
			}
		}
	}
	return false, ""
}
