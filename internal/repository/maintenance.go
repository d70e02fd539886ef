package repository

import (
	"context"

	"driftboard/internal/cache"
	"driftboard/internal/models"

	"gorm.io/gorm"
)

// ReconcileResult reports how many denormalized lists were rewritten.
type ReconcileResult struct {
	PostsUpdated int `json:"posts_updated"`
	UsersUpdated int `json:"users_updated"`
}

// MaintenanceRepository repairs drift in the denormalized copies. The
// fan-out on comment writes is best-effort, so the CommentIDs lists on posts
// and users can diverge from the comments table after partial failures; this
// rebuilds them from the source of truth.
type MaintenanceRepository interface {
	RebuildCommentIDs(ctx context.Context) (*ReconcileResult, error)
}

type maintenanceRepository struct {
	db *gorm.DB
}

// NewMaintenanceRepository creates a new MaintenanceRepository.
func NewMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) RebuildCommentIDs(ctx context.Context) (*ReconcileResult, error) {
	type row struct {
		ID     uint
		PostID uint
		UserID uint
	}
	var live []row
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("id", "post_id", "user_id").
		Where("deleted = false").
		Order("id ASC").
		Find(&live).Error; err != nil {
		return nil, err
	}

	byPost := map[uint]models.IDList{}
	byUser := map[uint]models.IDList{}
	for _, c := range live {
		byPost[c.PostID] = append(byPost[c.PostID], c.ID)
		byUser[c.UserID] = append(byUser[c.UserID], c.ID)
	}

	result := &ReconcileResult{}

	var posts []models.Post
	if err := r.db.WithContext(ctx).Select("id", "comment_ids").Find(&posts).Error; err != nil {
		return nil, err
	}
	for i := range posts {
		want := byPost[posts[i].ID]
		if equalIDLists(posts[i].CommentIDs, want) {
			continue
		}
		if err := r.db.WithContext(ctx).
			Model(&posts[i]).
			Update("comment_ids", want).Error; err != nil {
			return nil, err
		}
		cache.InvalidatePost(ctx, posts[i].ID)
		result.PostsUpdated++
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Select("id", "comment_ids").Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		want := byUser[users[i].ID]
		if equalIDLists(users[i].CommentIDs, want) {
			continue
		}
		if err := r.db.WithContext(ctx).
			Model(&users[i]).
			Update("comment_ids", want).Error; err != nil {
			return nil, err
		}
		cache.InvalidateUser(ctx, users[i].ID)
		result.UsersUpdated++
	}

	return result, nil
}

func equalIDLists(a, b models.IDList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
