package repository

import (
	"context"
	"errors"
	"log/slog"

	"driftboard/internal/cache"
	"driftboard/internal/models"
	"driftboard/internal/observability"

	"gorm.io/gorm"
)

// VoteRepository defines vote persistence for posts and comments. Casting a
// vote is an upsert on the composite (user, target) key; the denormalized
// counters on the target row are adjusted by the delta between the old and
// new value.
type VoteRepository interface {
	CastPostVote(ctx context.Context, userID, postID uint, value int) error
	RemovePostVote(ctx context.Context, userID, postID uint) error
	GetPostVote(ctx context.Context, userID, postID uint) (int, error)
	GetUserVotes(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error)
	CastCommentVote(ctx context.Context, userID, commentID uint, value int) error
	RemoveCommentVote(ctx context.Context, userID, commentID uint) error
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new VoteRepository.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) GetPostVote(ctx context.Context, userID, postID uint) (int, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return vote.Value, nil
}

// GetUserVotes returns the user's vote values for the given posts, keyed by
// post ID. Posts the user has not voted on are absent from the map. Used to
// re-enrich viewer state after a shared cache read.
func (r *voteRepository) GetUserVotes(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error) {
	if len(postIDs) == 0 {
		return map[uint]int{}, nil
	}
	var votes []models.Vote
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&votes).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(votes))
	for _, v := range votes {
		out[v.PostID] = v.Value
	}
	return out, nil
}

func (r *voteRepository) CastPostVote(ctx context.Context, userID, postID uint, value int) error {
	defer observability.TrackQuery("upsert", "votes")()

	old, err := r.GetPostVote(ctx, userID, postID)
	if err != nil {
		return err
	}
	if old == value {
		return nil
	}

	// Atomic per-statement; the counter update below is a separate statement
	// and may be lost on failure, which the counters tolerate until reconcile.
	if err := r.db.WithContext(ctx).Exec(
		`INSERT INTO votes (user_id, post_id, value, created_at, updated_at)
		 VALUES (?, ?, ?, NOW(), NOW())
		 ON CONFLICT (user_id, post_id) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		userID, postID, value,
	).Error; err != nil {
		return err
	}

	up, down := counterDeltas(old, value)
	if err := r.applyPostCounters(ctx, postID, up, down); err != nil {
		slog.WarnContext(ctx, "vote fan-out: post counters update failed",
			"post_id", postID, "user_id", userID, "err", err)
		observability.FanoutFailures.WithLabelValues("post_vote_counters").Inc()
	}

	cache.InvalidatePost(ctx, postID)
	cache.InvalidateFeeds(ctx)
	return nil
}

func (r *voteRepository) RemovePostVote(ctx context.Context, userID, postID uint) error {
	old, err := r.GetPostVote(ctx, userID, postID)
	if err != nil {
		return err
	}
	if old == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Vote{}).Error; err != nil {
		return err
	}

	up, down := counterDeltas(old, 0)
	if err := r.applyPostCounters(ctx, postID, up, down); err != nil {
		slog.WarnContext(ctx, "vote fan-out: post counters update failed",
			"post_id", postID, "user_id", userID, "err", err)
		observability.FanoutFailures.WithLabelValues("post_vote_counters").Inc()
	}

	cache.InvalidatePost(ctx, postID)
	cache.InvalidateFeeds(ctx)
	return nil
}

func (r *voteRepository) CastCommentVote(ctx context.Context, userID, commentID uint, value int) error {
	defer observability.TrackQuery("upsert", "comment_votes")()

	old, err := r.getCommentVote(ctx, userID, commentID)
	if err != nil {
		return err
	}
	if old == value {
		return nil
	}

	if err := r.db.WithContext(ctx).Exec(
		`INSERT INTO comment_votes (user_id, comment_id, value, created_at, updated_at)
		 VALUES (?, ?, ?, NOW(), NOW())
		 ON CONFLICT (user_id, comment_id) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		userID, commentID, value,
	).Error; err != nil {
		return err
	}

	up, down := counterDeltas(old, value)
	if err := r.applyCommentCounters(ctx, commentID, up, down); err != nil {
		slog.WarnContext(ctx, "vote fan-out: comment counters update failed",
			"comment_id", commentID, "user_id", userID, "err", err)
		observability.FanoutFailures.WithLabelValues("comment_vote_counters").Inc()
	}
	return nil
}

func (r *voteRepository) RemoveCommentVote(ctx context.Context, userID, commentID uint) error {
	old, err := r.getCommentVote(ctx, userID, commentID)
	if err != nil {
		return err
	}
	if old == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		Delete(&models.CommentVote{}).Error; err != nil {
		return err
	}

	up, down := counterDeltas(old, 0)
	if err := r.applyCommentCounters(ctx, commentID, up, down); err != nil {
		slog.WarnContext(ctx, "vote fan-out: comment counters update failed",
			"comment_id", commentID, "user_id", userID, "err", err)
		observability.FanoutFailures.WithLabelValues("comment_vote_counters").Inc()
	}
	return nil
}

func (r *voteRepository) getCommentVote(ctx context.Context, userID, commentID uint) (int, error) {
	var vote models.CommentVote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return vote.Value, nil
}

func (r *voteRepository) applyPostCounters(ctx context.Context, postID uint, up, down int) error {
	if up == 0 && down == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE posts SET upvotes = upvotes + ?, downvotes = downvotes + ? WHERE id = ?`,
		up, down, postID,
	).Error
}

func (r *voteRepository) applyCommentCounters(ctx context.Context, commentID uint, up, down int) error {
	if up == 0 && down == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE comments SET upvotes = upvotes + ?, downvotes = downvotes + ? WHERE id = ?`,
		up, down, commentID,
	).Error
}

// counterDeltas maps an old/new vote pair to the up/down counter adjustments.
// Zero means no vote.
func counterDeltas(old, next int) (up, down int) {
	switch old {
	case models.VoteUp:
		up--
	case models.VoteDown:
		down--
	}
	switch next {
	case models.VoteUp:
		up++
	case models.VoteDown:
		down++
	}
	return up, down
}
