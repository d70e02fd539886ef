package service

import (
	"context"

	"driftboard/internal/models"
	"driftboard/internal/repository"
)

type FeedbackService struct {
	feedbackRepo repository.FeedbackRepository
}

type SubmitFeedbackInput struct {
	UserID  uint
	Content string
}

func NewFeedbackService(feedbackRepo repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{feedbackRepo: feedbackRepo}
}

const maxFeedbackLen = 5000

func (s *FeedbackService) SubmitFeedback(ctx context.Context, in SubmitFeedbackInput) (*models.Feedback, error) {
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxFeedbackLen {
		return nil, models.NewValidationError("Feedback too long (max 5000 characters)")
	}

	feedback := &models.Feedback{
		UserID:  in.UserID,
		Content: in.Content,
		Status:  models.FeedbackStatusOpen,
	}
	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

func (s *FeedbackService) ListMyFeedback(ctx context.Context, userID uint, limit, offset int) ([]*models.Feedback, error) {
	return s.feedbackRepo.ListByUser(ctx, userID, limit, offset)
}

// ListQueue returns feedback for the admin review queue, oldest first.
func (s *FeedbackService) ListQueue(ctx context.Context, status string, limit, offset int) ([]*models.Feedback, error) {
	if status != "" && status != models.FeedbackStatusOpen && status != models.FeedbackStatusReviewed {
		return nil, models.NewValidationError("Invalid status filter")
	}
	return s.feedbackRepo.ListByStatus(ctx, status, limit, offset)
}

func (s *FeedbackService) MarkReviewed(ctx context.Context, id uint) (*models.Feedback, error) {
	if err := s.feedbackRepo.SetStatus(ctx, id, models.FeedbackStatusReviewed); err != nil {
		return nil, err
	}
	return s.feedbackRepo.GetByID(ctx, id)
}
