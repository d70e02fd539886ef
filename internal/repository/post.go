// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"log/slog"

	"driftboard/internal/cache"
	"driftboard/internal/models"
	"driftboard/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int, currentUserID uint, sort string) ([]*models.Post, error)
	Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error
	SetRemoved(ctx context.Context, id uint, removed bool) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post, then fans out: the author's denormalized PostIDs
// list is appended and the feed caches dropped. Fan-out steps after the
// insert are best-effort; a failure is logged and counted, never returned.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}

	if err := r.appendUserPostID(ctx, post.UserID, post.ID); err != nil {
		slog.WarnContext(ctx, "post fan-out: user post_ids append failed",
			"post_id", post.ID, "user_id", post.UserID, "err", err)
		observability.FanoutFailures.WithLabelValues("user_post_ids").Inc()
	}

	cache.InvalidateUser(ctx, post.UserID)
	cache.InvalidateFeeds(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id)

	var err error
	if currentUserID == 0 {
		// Anonymous reads share one cache entry; MyVote is always zero.
		err = cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
			return r.applyPostDetails(r.db.WithContext(ctx), 0).
				Preload("User").
				First(&post, id).Error
		})
	} else {
		err = r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			First(&post, id).Error
	}

	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("user_id = ? AND removed = false", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) List(ctx context.Context, limit, offset int, currentUserID uint, sort string) ([]*models.Post, error) {
	var posts []*models.Post
	base := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("removed = false")
	err := r.applySort(base, sort).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// applySort appends the ORDER BY clause for the requested sort type. The
// upvotes/downvotes counters are persisted columns, so every ordering is a
// plain expression over the posts table.
func (r *postRepository) applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "top":
		return db.Order("(upvotes - downvotes) DESC, created_at DESC")
	case "hot":
		return db.Order(gorm.Expr(
			"(upvotes - downvotes) / POWER(EXTRACT(EPOCH FROM (NOW() - posts.created_at)) / 3600.0 + 2, 1.5) DESC",
		))
	default: // "new" and anything unrecognized
		return db.Order("created_at DESC")
	}
}

func (r *postRepository) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	var posts []*models.Post
	like := "%" + query + "%"
	err := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("removed = false").
		Where("title ILIKE ? OR content ILIKE ?", like, like).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// applyPostDetails adds the current user's vote as a subquery so list reads
// stay a single round trip.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	if currentUserID != 0 {
		return db.Select(
			"posts.*, COALESCE((SELECT value FROM votes WHERE votes.post_id = posts.id AND votes.user_id = ?), 0) as my_vote",
			currentUserID,
		)
	}
	return db.Select("posts.*, 0 as my_vote")
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", "posts")()
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateFeeds(ctx)
	return nil
}

// Delete soft-deletes the post and reverses the create fan-out.
func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("delete", "posts")()
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, post.ID).Error; err != nil {
		return err
	}

	if err := r.removeUserPostID(ctx, post.UserID, post.ID); err != nil {
		slog.WarnContext(ctx, "post fan-out: user post_ids remove failed",
			"post_id", post.ID, "user_id", post.UserID, "err", err)
		observability.FanoutFailures.WithLabelValues("user_post_ids").Inc()
	}

	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateUser(ctx, post.UserID)
	cache.InvalidateFeeds(ctx)
	return nil
}

// SetRemoved flips the moderation flag without touching the author's lists:
// a removed post is hidden from feeds but still owned by its author.
func (r *postRepository) SetRemoved(ctx context.Context, id uint, removed bool) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("removed", removed).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidateFeeds(ctx)
	return nil
}

func (r *postRepository) appendUserPostID(ctx context.Context, userID, postID uint) error {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "post_ids").First(&user, userID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&user).
		Update("post_ids", user.PostIDs.Add(postID)).Error
}

func (r *postRepository) removeUserPostID(ctx context.Context, userID, postID uint) error {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "post_ids").First(&user, userID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&user).
		Update("post_ids", user.PostIDs.Remove(postID)).Error
}
