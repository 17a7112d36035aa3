package repository

import (
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"gorm.io/gorm"
)

// AlertFilter narrows List results; nil fields match everything.
type AlertFilter struct {
	Status   *model.AlertStatus
	Severity *model.Severity
	ExamID   *uint
}

type AlertRepository interface {
	Create(alert *model.Alert) error
	Update(alert *model.Alert) error
	FindByID(id uint) (*model.Alert, error)
	// FindOpenByExamAndStudent returns the PENDING or INVESTIGATING alert for
	// the (exam, student) pair, or gorm.ErrRecordNotFound.
	FindOpenByExamAndStudent(examID, studentID uint) (*model.Alert, error)
	FindAll(filter AlertFilter) ([]model.Alert, error)
	CountBySeverity(examID uint) (map[model.Severity]int64, error)
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(alert *model.Alert) error {
	return r.db.Create(alert).Error
}

func (r *alertRepository) Update(alert *model.Alert) error {
	return r.db.Save(alert).Error
}

func (r *alertRepository) FindByID(id uint) (*model.Alert, error) {
	var alert model.Alert
	if err := r.db.First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) FindOpenByExamAndStudent(examID, studentID uint) (*model.Alert, error) {
	var alert model.Alert
	err := r.db.
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Where("status IN ?", []model.AlertStatus{model.AlertPending, model.AlertInvestigating}).
		Order("created_at DESC").
		First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) FindAll(filter AlertFilter) ([]model.Alert, error) {
	query := r.db.Model(&model.Alert{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.ExamID != nil {
		query = query.Where("exam_id = ?", *filter.ExamID)
	}
	var alerts []model.Alert
	err := query.Order("created_at DESC").Find(&alerts).Error
	return alerts, err
}

func (r *alertRepository) CountBySeverity(examID uint) (map[model.Severity]int64, error) {
	var rows []struct {
		Severity model.Severity
		Count    int64
	}
	err := r.db.Model(&model.Alert{}).
		Select("severity, COUNT(*) as count").
		Where("exam_id = ?", examID).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.Severity]int64, len(rows))
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}
	return counts, nil
}
