package repository

import (
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(id uint) (*model.User, error)
	// FindStaff returns all users with the staff or admin role.
	FindStaff() ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindStaff() ([]model.User, error) {
	var users []model.User
	err := r.db.Where("role IN ?", []string{model.RoleStaff, model.RoleAdmin}).Find(&users).Error
	return users, err
}
