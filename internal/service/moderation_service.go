package service

import (
	"context"
	"log/slog"

	"driftboard/internal/models"
	"driftboard/internal/repository"
	"driftboard/internal/search"
)

// ModerationService provides staff-only content and user management.
type ModerationService struct {
	postRepo        repository.PostRepository
	commentRepo     repository.CommentRepository
	userRepo        repository.UserRepository
	maintenanceRepo repository.MaintenanceRepository
	index           *search.Index
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	maintenanceRepo repository.MaintenanceRepository,
	index *search.Index,
) *ModerationService {
	return &ModerationService{
		postRepo:        postRepo,
		commentRepo:     commentRepo,
		userRepo:        userRepo,
		maintenanceRepo: maintenanceRepo,
		index:           index,
	}
}

// RemovePost takes a post down for policy reasons. The author keeps the post
// in their profile lists; it just stops being served in feeds and search.
func (s *ModerationService) RemovePost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return nil, err
	}
	if post.Removed {
		return post, nil
	}
	if err := s.postRepo.SetRemoved(ctx, postID, true); err != nil {
		return nil, err
	}
	_ = s.index.RemovePost(ctx, postID)
	return s.postRepo.GetByID(ctx, postID, 0)
}

// RestorePost reverses a moderation removal and reindexes the title.
func (s *ModerationService) RestorePost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return nil, err
	}
	if !post.Removed {
		return post, nil
	}
	if err := s.postRepo.SetRemoved(ctx, postID, false); err != nil {
		return nil, err
	}
	_ = s.index.IndexPost(ctx, postID, post.Title)
	return s.postRepo.GetByID(ctx, postID, 0)
}

// RemoveComment soft-deletes a comment on behalf of moderation.
func (s *ModerationService) RemoveComment(ctx context.Context, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.Deleted {
		return nil
	}
	return s.commentRepo.SoftDelete(ctx, comment)
}

// RestoreComment reverses a soft delete, putting the ID back in the post's
// and author's denormalized lists.
func (s *ModerationService) RestoreComment(ctx context.Context, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if !comment.Deleted {
		return nil
	}
	return s.commentRepo.Restore(ctx, comment)
}

// SetBanned bans or unbans a user. Banned users keep read access; every
// mutating endpoint rejects them.
func (s *ModerationService) SetBanned(ctx context.Context, userID uint, banned bool) (*models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetBanned(ctx, userID, banned); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

// SetRole changes a user's role.
func (s *ModerationService) SetRole(ctx context.Context, userID uint, role string) (*models.User, error) {
	switch role {
	case models.RoleUser, models.RoleModerator, models.RoleAdmin:
	default:
		return nil, models.NewValidationError("Invalid role")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

// Reconcile rebuilds the denormalized CommentIDs lists from the comments
// table. Run after incidents or on a schedule to repair fan-out drift.
func (s *ModerationService) Reconcile(ctx context.Context) (*repository.ReconcileResult, error) {
	result, err := s.maintenanceRepo.RebuildCommentIDs(ctx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "denormalized comment lists reconciled",
		"posts_updated", result.PostsUpdated, "users_updated", result.UsersUpdated)
	return result, nil
}
