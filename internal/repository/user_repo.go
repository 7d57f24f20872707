package repository

import (
	"context"
	"errors"

	"github.com/costavn/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// UserRepository is the read-only surface of the user directory this
// pipeline consumes.
type UserRepository interface {
	EmailsWithNotifyEnabled(ctx context.Context) ([]string, error)
	AllIDs(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) EmailsWithNotifyEnabled(ctx context.Context) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("notify_email = ?", true).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *GormUserRepo) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}
