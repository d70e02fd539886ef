package repository

import (
	"context"
	"errors"

	"driftboard/internal/models"

	"gorm.io/gorm"
)

// FeedbackRepository defines persistence operations for user feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	GetByID(ctx context.Context, id uint) (*models.Feedback, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Feedback, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Feedback, error)
	SetStatus(ctx context.Context, id uint, status string) error
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *feedbackRepository) GetByID(ctx context.Context, id uint) (*models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).Preload("User").First(&feedback, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Feedback", id)
		}
		return nil, err
	}
	return &feedback, nil
}

func (r *feedbackRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Feedback, error) {
	var items []*models.Feedback
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	return items, err
}

func (r *feedbackRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Feedback, error) {
	var items []*models.Feedback
	db := r.db.WithContext(ctx).Preload("User")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	return items, err
}

func (r *feedbackRepository) SetStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Feedback", id)
	}
	return nil
}
