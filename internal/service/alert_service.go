package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AlertService owns the alert lifecycle. One open (PENDING or INVESTIGATING)
// alert exists per (exam, student) pair; repeated analysis passes update it
// in place instead of flooding the staff dashboard with new rows.
type AlertService interface {
	CreateOrUpdate(exam *model.Exam, student *model.User, violations []Violation) (*model.Alert, error)
	SetStatus(alertID uint, status model.AlertStatus, notes *string) (*dto.AlertResponse, error)
	Get(alertID uint) (*dto.AlertResponse, error)
	List(filter repository.AlertFilter) ([]dto.AlertResponse, error)
	Summary(examID uint) (*dto.AlertSummaryResponse, error)
}

type alertService struct {
	alertRepo       repository.AlertRepository
	notificationSvc NotificationService
}

func NewAlertService(alertRepo repository.AlertRepository, notificationSvc NotificationService) AlertService {
	return &alertService{alertRepo: alertRepo, notificationSvc: notificationSvc}
}

func (s *alertService) CreateOrUpdate(exam *model.Exam, student *model.User, violations []Violation) (*model.Alert, error) {
	if len(violations) == 0 {
		return nil, nil
	}

	// Rule-table order is deterministic, so the first violation names the alert.
	alertType := violations[0].Type
	severity := violations[0].Severity
	descriptions := make([]string, 0, len(violations))
	for _, v := range violations {
		severity = model.MaxSeverity(severity, v.Severity)
		descriptions = append(descriptions, fmt.Sprintf("[%s] %s", v.Type, v.Description))
	}
	description := strings.Join(descriptions, "\n")

	existing, err := s.alertRepo.FindOpenByExamAndStudent(exam.ID, student.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up open alert for exam %d student %d: %w", exam.ID, student.ID, err)
	}

	var alert *model.Alert
	if existing != nil {
		existing.Severity = model.MaxSeverity(existing.Severity, severity)
		if existing.Description != description {
			existing.Description = description
		}
		existing.AlertType = alertType
		if err := s.alertRepo.Update(existing); err != nil {
			return nil, fmt.Errorf("failed to update alert %d: %w", existing.ID, err)
		}
		alert = existing
		log.Info().Uint("alertID", alert.ID).Str("severity", string(alert.Severity)).Msg("Alert updated in place")
	} else {
		alert = &model.Alert{
			ExamID:      exam.ID,
			ExamName:    exam.Title,
			StudentID:   student.ID,
			StudentName: student.Username,
			AlertType:   alertType,
			Severity:    severity,
			Description: description,
			Status:      model.AlertPending,
		}
		if err := s.alertRepo.Create(alert); err != nil {
			return nil, fmt.Errorf("failed to create alert for exam %d student %d: %w", exam.ID, student.ID, err)
		}
		log.Info().Uint("alertID", alert.ID).Str("severity", string(alert.Severity)).Msg("Alert created")
	}

	// Fan-out is best effort; a notification failure never rolls back the alert.
	if _, err := s.notificationSvc.NotifyAlert(alert); err != nil {
		log.Error().Err(err).Uint("alertID", alert.ID).Msg("Alert notification fan-out failed")
	}
	return alert, nil
}

func (s *alertService) SetStatus(alertID uint, status model.AlertStatus, notes *string) (*dto.AlertResponse, error) {
	alert, err := s.alertRepo.FindByID(alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}

	if !alert.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, alert.Status, status)
	}

	alert.Status = status
	if notes != nil {
		alert.Notes = notes
	}
	if err := s.alertRepo.Update(alert); err != nil {
		return nil, fmt.Errorf("failed to persist alert %d status: %w", alertID, err)
	}
	log.Info().Uint("alertID", alert.ID).Str("status", string(status)).Msg("Alert status changed")
	return toAlertResponse(alert), nil
}

func (s *alertService) Get(alertID uint) (*dto.AlertResponse, error) {
	alert, err := s.alertRepo.FindByID(alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}
	return toAlertResponse(alert), nil
}

func (s *alertService) List(filter repository.AlertFilter) ([]dto.AlertResponse, error) {
	alerts, err := s.alertRepo.FindAll(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	responses := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		responses = append(responses, *toAlertResponse(&alerts[i]))
	}
	return responses, nil
}

func (s *alertService) Summary(examID uint) (*dto.AlertSummaryResponse, error) {
	counts, err := s.alertRepo.CountBySeverity(examID)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts for exam %d: %w", examID, err)
	}
	summary := &dto.AlertSummaryResponse{
		ExamID:   examID,
		Critical: counts[model.SeverityCritical],
		High:     counts[model.SeverityHigh],
		Medium:   counts[model.SeverityMedium],
		Low:      counts[model.SeverityLow],
	}
	summary.Total = summary.Critical + summary.High + summary.Medium + summary.Low
	return summary, nil
}

func toAlertResponse(alert *model.Alert) *dto.AlertResponse {
	var resp dto.AlertResponse
	if err := copier.Copy(&resp, alert); err != nil {
		log.Error().Err(err).Uint("alertID", alert.ID).Msg("Failed to copy alert to DTO")
	}
	return &resp
}
