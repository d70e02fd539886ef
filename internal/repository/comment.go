package repository

import (
	"context"
	"log/slog"

	"driftboard/internal/cache"
	"driftboard/internal/models"
	"driftboard/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	SoftDelete(ctx context.Context, comment *models.Comment) error
	Restore(ctx context.Context, comment *models.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and then fans out to the two denormalized
// copies: the post's CommentIDs and the author's CommentIDs. The three
// writes are sequential, not a transaction; a fan-out failure is logged and
// counted, leaving the lists to drift until the next reconcile.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}

	if err := r.updatePostCommentIDs(ctx, comment.PostID, func(l models.IDList) models.IDList {
		return l.Add(comment.ID)
	}); err != nil {
		slog.WarnContext(ctx, "comment fan-out: post comment_ids append failed",
			"comment_id", comment.ID, "post_id", comment.PostID, "err", err)
		observability.FanoutFailures.WithLabelValues("post_comment_ids").Inc()
	}

	if err := r.updateUserCommentIDs(ctx, comment.UserID, func(l models.IDList) models.IDList {
		return l.Add(comment.ID)
	}); err != nil {
		slog.WarnContext(ctx, "comment fan-out: user comment_ids append failed",
			"comment_id", comment.ID, "user_id", comment.UserID, "err", err)
		observability.FanoutFailures.WithLabelValues("user_comment_ids").Inc()
	}

	cache.InvalidatePost(ctx, comment.PostID)
	cache.InvalidateUser(ctx, comment.UserID)
	cache.InvalidateFeeds(ctx)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	db := r.db.WithContext(ctx)
	if currentUserID != 0 {
		db = db.Select(
			"comments.*, COALESCE((SELECT value FROM comment_votes WHERE comment_votes.comment_id = comments.id AND comment_votes.user_id = ?), 0) as my_vote",
			currentUserID,
		)
	} else {
		db = db.Select("comments.*, 0 as my_vote")
	}
	err := db.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at asc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("update", "comments")()
	if err := r.db.WithContext(ctx).Save(comment).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

// SoftDelete flags the comment and reverses the create fan-out. The row
// stays so replies keep their parent; the ID leaves both denormalized lists
// because they must track live comments only.
func (r *commentRepository) SoftDelete(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("delete", "comments")()
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", comment.ID).
		Update("deleted", true).Error; err != nil {
		return err
	}

	if err := r.updatePostCommentIDs(ctx, comment.PostID, func(l models.IDList) models.IDList {
		return l.Remove(comment.ID)
	}); err != nil {
		slog.WarnContext(ctx, "comment fan-out: post comment_ids remove failed",
			"comment_id", comment.ID, "post_id", comment.PostID, "err", err)
		observability.FanoutFailures.WithLabelValues("post_comment_ids").Inc()
	}

	if err := r.updateUserCommentIDs(ctx, comment.UserID, func(l models.IDList) models.IDList {
		return l.Remove(comment.ID)
	}); err != nil {
		slog.WarnContext(ctx, "comment fan-out: user comment_ids remove failed",
			"comment_id", comment.ID, "user_id", comment.UserID, "err", err)
		observability.FanoutFailures.WithLabelValues("user_comment_ids").Inc()
	}

	cache.InvalidatePost(ctx, comment.PostID)
	cache.InvalidateUser(ctx, comment.UserID)
	cache.InvalidateFeeds(ctx)
	return nil
}

// Restore clears the deleted flag and re-runs the create fan-out so the ID
// rejoins both denormalized lists. Add is idempotent, so a list that never
// lost the ID (a partial soft-delete fan-out) stays correct.
func (r *commentRepository) Restore(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("update", "comments")()
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", comment.ID).
		Update("deleted", false).Error; err != nil {
		return err
	}

	if err := r.updatePostCommentIDs(ctx, comment.PostID, func(l models.IDList) models.IDList {
		return l.Add(comment.ID)
	}); err != nil {
		slog.WarnContext(ctx, "comment fan-out: post comment_ids re-add failed",
			"comment_id", comment.ID, "post_id", comment.PostID, "err", err)
		observability.FanoutFailures.WithLabelValues("post_comment_ids").Inc()
	}

	if err := r.updateUserCommentIDs(ctx, comment.UserID, func(l models.IDList) models.IDList {
		return l.Add(comment.ID)
	}); err != nil {
		slog.WarnContext(ctx, "comment fan-out: user comment_ids re-add failed",
			"comment_id", comment.ID, "user_id", comment.UserID, "err", err)
		observability.FanoutFailures.WithLabelValues("user_comment_ids").Inc()
	}

	cache.InvalidatePost(ctx, comment.PostID)
	cache.InvalidateUser(ctx, comment.UserID)
	cache.InvalidateFeeds(ctx)
	return nil
}

func (r *commentRepository) updatePostCommentIDs(ctx context.Context, postID uint, mutate func(models.IDList) models.IDList) error {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "comment_ids").First(&post, postID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&post).
		Update("comment_ids", mutate(post.CommentIDs)).Error
}

func (r *commentRepository) updateUserCommentIDs(ctx context.Context, userID uint, mutate func(models.IDList) models.IDList) error {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "comment_ids").First(&user, userID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&user).
		Update("comment_ids", mutate(user.CommentIDs)).Error
}
