package repository

import (
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"gorm.io/gorm"
)

type AttemptEventRepository interface {
	Create(event *model.AttemptEvent) error
	// FindAllByAttemptID returns the full event log in arrival order.
	FindAllByAttemptID(attemptID uint) ([]model.AttemptEvent, error)
}

type attemptEventRepository struct {
	db *gorm.DB
}

func NewAttemptEventRepository(db *gorm.DB) AttemptEventRepository {
	return &attemptEventRepository{db: db}
}

func (r *attemptEventRepository) Create(event *model.AttemptEvent) error {
	return r.db.Create(event).Error
}

func (r *attemptEventRepository) FindAllByAttemptID(attemptID uint) ([]model.AttemptEvent, error) {
	var events []model.AttemptEvent
	err := r.db.Where("attempt_id = ?", attemptID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}
