package service

import (
	"errors"
	"fmt"

	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// NotificationService derives per-recipient notifications from an alert and
// lets recipients read and acknowledge them.
type NotificationService interface {
	NotifyAlert(alert *model.Alert) ([]model.Notification, error)
	ListForUser(userID uint, unreadOnly bool) ([]dto.NotificationResponse, error)
	MarkRead(notificationID, userID uint) error
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	examRepo         repository.ExamRepository
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	examRepo repository.ExamRepository,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		examRepo:         examRepo,
	}
}

// NotifyAlert creates one unread notification per recipient: every staff and
// admin user plus the lecturer who owns the alert's exam. A failed insert
// for one recipient is logged and skipped, never rolled back.
func (s *notificationService) NotifyAlert(alert *model.Alert) ([]model.Notification, error) {
	recipients, err := s.resolveRecipients(alert)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("[%s] %s: exam %q, student %s. %s",
		alert.Severity, alert.AlertType, alert.ExamName, alert.StudentName, alert.Description)

	var created []model.Notification
	for _, userID := range recipients {
		notification := model.Notification{
			UserID:  userID,
			Type:    model.NotificationTypeProctoringAlert,
			Message: message,
		}
		if err := s.notificationRepo.Create(&notification); err != nil {
			log.Error().Err(err).Uint("userID", userID).Uint("alertID", alert.ID).
				Msg("Failed to create notification for recipient")
			continue
		}
		created = append(created, notification)
	}
	return created, nil
}

func (s *notificationService) resolveRecipients(alert *model.Alert) ([]uint, error) {
	staff, err := s.userRepo.FindStaff()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staff recipients: %w", err)
	}

	seen := make(map[uint]bool, len(staff)+1)
	recipients := make([]uint, 0, len(staff)+1)
	for _, u := range staff {
		if !seen[u.ID] {
			seen[u.ID] = true
			recipients = append(recipients, u.ID)
		}
	}

	exam, err := s.examRepo.FindByID(alert.ExamID)
	if err != nil {
		// The alert still reaches staff; the missing lecturer is logged only.
		log.Warn().Err(err).Uint("examID", alert.ExamID).Msg("Could not resolve exam lecturer for notification")
		return recipients, nil
	}
	if !seen[exam.CreatorID] {
		recipients = append(recipients, exam.CreatorID)
	}
	return recipients, nil
}

func (s *notificationService) ListForUser(userID uint, unreadOnly bool) ([]dto.NotificationResponse, error) {
	notifications, err := s.notificationRepo.FindAllByUser(userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	responses := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		var resp dto.NotificationResponse
		if err := copier.Copy(&resp, &notifications[i]); err != nil {
			log.Error().Err(err).Uint("notificationID", notifications[i].ID).Msg("Failed to copy notification to DTO")
			continue
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *notificationService) MarkRead(notificationID, userID uint) error {
	if err := s.notificationRepo.MarkRead(notificationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("failed to mark notification %d read: %w", notificationID, err)
	}
	return nil
}
