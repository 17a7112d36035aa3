package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ducmanh-ng/Invigilo/config"
	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/ws"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// EventMeta carries transport-level context recorded with each event.
type EventMeta struct {
	IP        string
	UserAgent string
}

// EventIngestionService is the boundary where raw anti-cheat events enter the
// pipeline. Each accepted event is appended to the attempt's log, pushed to
// live monitors and fed into the aggregation engine.
type EventIngestionService interface {
	Report(attemptID uint, student *model.User, req dto.ReportEventRequest, meta EventMeta) (*dto.ReportEventResponse, error)
	ReportAgent(req dto.AgentEventRequest, meta EventMeta) (*dto.ReportEventResponse, error)
	EnsureAgentToken(attemptID uint, student *model.User) (string, error)
	ForceFinish(attemptID uint, student *model.User) error
	Autosave(attemptID uint, student *model.User, score float64) error
}

type eventIngestionService struct {
	attemptRepo    repository.AttemptRepository
	eventRepo      repository.AttemptEventRepository
	aggregationSvc AggregationService
	publisher      ws.Publisher
	locks          *AttemptLocker

	limiterMu sync.Mutex
	limiters  map[uint]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int
}

func NewEventIngestionService(
	attemptRepo repository.AttemptRepository,
	eventRepo repository.AttemptEventRepository,
	aggregationSvc AggregationService,
	publisher ws.Publisher,
	locks *AttemptLocker,
	cfg *config.Config,
) EventIngestionService {
	return &eventIngestionService{
		attemptRepo:    attemptRepo,
		eventRepo:      eventRepo,
		aggregationSvc: aggregationSvc,
		publisher:      publisher,
		locks:          locks,
		limiters:       make(map[uint]*rate.Limiter),
		rateLimit:      rate.Limit(cfg.Proctoring.EventRateLimit),
		rateBurst:      cfg.Proctoring.EventRateBurst,
	}
}

func (s *eventIngestionService) Report(attemptID uint, student *model.User, req dto.ReportEventRequest, meta EventMeta) (*dto.ReportEventResponse, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != student.ID {
		return nil, ErrNotAttemptOwner
	}
	return s.ingest(attempt, req.Event, req.Data, model.EventSourceBrowser, meta)
}

func (s *eventIngestionService) ReportAgent(req dto.AgentEventRequest, meta EventMeta) (*dto.ReportEventResponse, error) {
	attempt, err := s.loadAttempt(req.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.AgentToken == nil || *attempt.AgentToken != req.Token {
		return nil, ErrInvalidAgentToken
	}
	return s.ingest(attempt, req.Event, req.Data, model.EventSourceAgent, meta)
}

func (s *eventIngestionService) ingest(attempt *model.ExamAttempt, event string, data map[string]interface{}, source string, meta EventMeta) (*dto.ReportEventResponse, error) {
	if !s.allow(attempt.ID) {
		return nil, ErrRateLimited
	}

	if err := s.appendLocked(attempt, event, data, source, meta); err != nil {
		return nil, err
	}

	// The log is committed and live monitors notified; now let the engine
	// classify the new state of the attempt.
	result, err := s.aggregationSvc.Analyze(attempt.ID)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Aggregation pass failed after ingestion")
		return &dto.ReportEventResponse{Status: "ok"}, nil
	}
	if result.Terminated {
		return &dto.ReportEventResponse{
			Status:  "finished",
			Message: "Attempt finalized due to anti-cheat trigger",
		}, nil
	}
	return &dto.ReportEventResponse{Status: "ok"}, nil
}

// appendLocked validates the attempt is still live, persists the event and
// publishes it, all under the per-attempt lock so the classifier never sees
// a mid-append log.
func (s *eventIngestionService) appendLocked(attempt *model.ExamAttempt, event string, data map[string]interface{}, source string, meta EventMeta) error {
	s.locks.Lock(attempt.ID)
	defer s.locks.Unlock(attempt.ID)

	// Re-read under the lock: a racing termination may have finished it.
	current, err := s.attemptRepo.FindByID(attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to reload attempt %d: %w", attempt.ID, err)
	}
	if current.Finished() {
		return ErrAttemptTerminated
	}

	var payload []byte
	if len(data) > 0 {
		if payload, err = json.Marshal(data); err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
	}
	record := &model.AttemptEvent{
		AttemptID: attempt.ID,
		Event:     event,
		Payload:   payload,
		Source:    source,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.eventRepo.Create(record); err != nil {
		return fmt.Errorf("failed to append event for attempt %d: %w", attempt.ID, err)
	}

	msg := ws.Message{
		Type: ws.MessageTypeAttemptEvent,
		Data: ws.AttemptEventData{AttemptID: attempt.ID, Record: record},
	}
	s.publisher.PublishAttempt(attempt.ID, msg)
	s.publisher.PublishAll(msg)
	return nil
}

func (s *eventIngestionService) EnsureAgentToken(attemptID uint, student *model.User) (string, error) {
	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return "", err
	}
	if attempt.UserID != student.ID {
		return "", ErrNotAttemptOwner
	}
	if attempt.Finished() {
		return "", ErrAttemptTerminated
	}
	if attempt.AgentToken != nil && *attempt.AgentToken != "" {
		return *attempt.AgentToken, nil
	}
	token := uuid.NewString()
	if err := s.attemptRepo.SetAgentToken(attemptID, token); err != nil {
		return "", fmt.Errorf("failed to store agent token for attempt %d: %w", attemptID, err)
	}
	return token, nil
}

// ForceFinish lets the sitting student end their own attempt early. Unlike
// termination it keeps the running score. Idempotent.
func (s *eventIngestionService) ForceFinish(attemptID uint, student *model.User) error {
	s.locks.Lock(attemptID)
	defer s.locks.Unlock(attemptID)

	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return err
	}
	if attempt.UserID != student.ID {
		return ErrNotAttemptOwner
	}
	if attempt.Finished() {
		return nil
	}
	if err := s.attemptRepo.Finish(attemptID, timeNow()); err != nil {
		return fmt.Errorf("failed to finish attempt %d: %w", attemptID, err)
	}
	log.Info().Uint("attemptID", attemptID).Msg("Attempt force-finished by student")
	return nil
}

// Autosave updates the running score of an in-progress attempt.
func (s *eventIngestionService) Autosave(attemptID uint, student *model.User, score float64) error {
	s.locks.Lock(attemptID)
	defer s.locks.Unlock(attemptID)

	attempt, err := s.loadAttempt(attemptID)
	if err != nil {
		return err
	}
	if attempt.UserID != student.ID {
		return ErrNotAttemptOwner
	}
	if attempt.Finished() {
		return ErrAttemptTerminated
	}
	if err := s.attemptRepo.UpdateScore(attemptID, score); err != nil {
		return fmt.Errorf("failed to autosave score for attempt %d: %w", attemptID, err)
	}
	return nil
}

func (s *eventIngestionService) loadAttempt(attemptID uint) (*model.ExamAttempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}
	return attempt, nil
}

func (s *eventIngestionService) allow(attemptID uint) bool {
	s.limiterMu.Lock()
	limiter, ok := s.limiters[attemptID]
	if !ok {
		limiter = rate.NewLimiter(s.rateLimit, s.rateBurst)
		s.limiters[attemptID] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Allow()
}
