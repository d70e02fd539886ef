package service

import (
	"context"

	"driftboard/internal/models"
	"driftboard/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	voteRepo    repository.VoteRepository
	isStaff     func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	voteRepo repository.VoteRepository,
	isStaff func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		voteRepo:    voteRepo,
		isStaff:     isStaff,
	}
}

const maxCommentLen = 10000

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}
	if post.Removed {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, models.NewValidationError("Parent comment does not exist")
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}
	}

	comment := &models.Comment{
		Content:  in.Content,
		UserID:   in.UserID,
		PostID:   in.PostID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// ListComments returns the post's comment thread in creation order. Each
// comment carries the IDs of its direct replies, and deleted comments are
// masked rather than omitted so the tree keeps its shape.
func (s *CommentService) ListComments(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID, currentUserID)
	if err != nil {
		return nil, err
	}

	replies := map[uint][]uint{}
	for _, c := range comments {
		if c.ParentID != nil {
			replies[*c.ParentID] = append(replies[*c.ParentID], c.ID)
		}
	}
	for _, c := range comments {
		c.Replies = replies[c.ID]
		c.Sanitize()
	}
	return comments, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	if comment.Deleted {
		return nil, models.NewValidationError("Cannot edit a deleted comment")
	}
	if comment.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own comments")
	}
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	comment.Content = in.Content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if comment.Deleted {
		return nil
	}

	if comment.UserID != in.UserID {
		if s.isStaff == nil {
			return models.NewUnauthorizedError("You can only delete your own comments")
		}
		staff, err := s.isStaff(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !staff {
			return models.NewUnauthorizedError("You can only delete your own comments")
		}
	}

	return s.commentRepo.SoftDelete(ctx, comment)
}

// VoteComment casts or changes the user's vote on a comment and returns the
// refreshed comment.
func (s *CommentService) VoteComment(ctx context.Context, userID, commentID uint, value int) (*models.Comment, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return nil, models.NewValidationError("Vote value must be 1 or -1")
	}
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Deleted {
		return nil, models.NewValidationError("Cannot vote on a deleted comment")
	}
	if err := s.voteRepo.CastCommentVote(ctx, userID, commentID, value); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, commentID)
}

// UnvoteComment withdraws the user's vote on a comment.
func (s *CommentService) UnvoteComment(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	if err := s.voteRepo.RemoveCommentVote(ctx, userID, commentID); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, commentID)
}
