package repository

import (
	"time"

	"github.com/ducmanh-ng/Invigilo/internal/model"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(attempt *model.ExamAttempt) error
	FindByID(id uint) (*model.ExamAttempt, error)
	FindByIDWithDetails(id uint) (*model.ExamAttempt, error)
	Update(attempt *model.ExamAttempt) error
	UpdateScore(id uint, score float64) error
	SetAgentToken(id uint, token string) error
	Finish(id uint, finishedAt time.Time) error
	// FinalizeWithAudit commits the terminal state together with its audit
	// event in one transaction. Nothing is written if either part fails.
	FinalizeWithAudit(attempt *model.ExamAttempt, audit *model.AttemptEvent) error
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(attempt *model.ExamAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *attemptRepository) FindByID(id uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIDWithDetails(id uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.db.
		Preload("Exam").
		Preload("User").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) Update(attempt *model.ExamAttempt) error {
	return r.db.Save(attempt).Error
}

func (r *attemptRepository) UpdateScore(id uint, score float64) error {
	return r.db.Model(&model.ExamAttempt{}).Where("id = ?", id).
		Update("score", score).Error
}

func (r *attemptRepository) SetAgentToken(id uint, token string) error {
	return r.db.Model(&model.ExamAttempt{}).Where("id = ?", id).
		Update("agent_token", token).Error
}

func (r *attemptRepository) Finish(id uint, finishedAt time.Time) error {
	return r.db.Model(&model.ExamAttempt{}).Where("id = ?", id).
		Update("finished_at", finishedAt).Error
}

func (r *attemptRepository) FinalizeWithAudit(attempt *model.ExamAttempt, audit *model.AttemptEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"score":              attempt.Score,
			"finished_at":        attempt.FinishedAt,
			"terminated":         attempt.Terminated,
			"termination_reason": attempt.TerminationReason,
		}
		if err := tx.Model(&model.ExamAttempt{}).Where("id = ?", attempt.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(audit).Error
	})
}
