package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"driftboard/internal/cache"
	"driftboard/internal/models"
	"driftboard/internal/repository"
	"driftboard/internal/search"
)

type PostService struct {
	postRepo repository.PostRepository
	voteRepo repository.VoteRepository
	index    *search.Index
	isStaff  func(ctx context.Context, userID uint) (bool, error)
}

type CreatePostInput struct {
	UserID    uint
	Title     string
	Content   string
	MediaURLs []string
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
	Sort          string
}

type UpdatePostInput struct {
	UserID    uint
	PostID    uint
	Title     string
	Content   string
	MediaURLs []string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	voteRepo repository.VoteRepository,
	index *search.Index,
	isStaff func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo: postRepo,
		voteRepo: voteRepo,
		index:    index,
		isStaff:  isStaff,
	}
}

const (
	maxTitleLen   = 300
	maxContentLen = 50000
	maxMediaURLs  = 10
)

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.Title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(in.Title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}
	media, err := normalizeMediaURLs(in.MediaURLs)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:     in.Title,
		Content:   in.Content,
		MediaURLs: media,
		UserID:    in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	// Best-effort: a post that never reaches the index just won't
	// autocomplete until it is updated or reindexed.
	_ = s.index.IndexPost(ctx, post.ID, post.Title)

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// feedPageSize is the canonical first page stored per sort in the feed
// cache. The cached entry always holds this many posts regardless of the
// requested limit, so every first-page request shares one entry.
const feedPageSize = 20

// ListPosts serves the feed. The first page of each sort order is cached as
// a whole; the cached copy is viewer-independent, so the requesting user's
// vote state is layered back on after the cache read. Requests with a limit
// below the canonical page size are served a slice of the cached page.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	sort := in.Sort
	if sort == "" {
		sort = "new"
	}

	var posts []*models.Post
	var err error

	if in.Offset == 0 && in.Limit <= feedPageSize {
		key := cache.FeedKey(sort)
		err = cache.Aside(ctx, key, &posts, cache.FeedTTL, func() error {
			var fetchErr error
			posts, fetchErr = s.postRepo.List(ctx, feedPageSize, 0, 0, sort)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
		if in.Limit < len(posts) {
			posts = posts[:in.Limit]
		}
		if in.CurrentUserID != 0 && len(posts) > 0 {
			if enrichErr := s.enrichMyVotes(ctx, posts, in.CurrentUserID); enrichErr != nil {
				return nil, enrichErr
			}
		}
		return posts, nil
	}

	return s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID, sort)
}

func (s *PostService) enrichMyVotes(ctx context.Context, posts []*models.Post, userID uint) error {
	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}
	votes, err := s.voteRepo.GetUserVotes(ctx, userID, postIDs)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.MyVote = votes[p.ID]
	}
	return nil
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

func (s *PostService) SearchPosts(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.postRepo.Search(ctx, query, limit, offset, currentUserID)
}

// Suggest returns autocomplete completions from the prefix index. When the
// index is unavailable it degrades to a title search against the database
// so the endpoint keeps working without Redis.
func (s *PostService) Suggest(ctx context.Context, prefix string, limit int) ([]search.Suggestion, error) {
	suggestions, err := s.index.Suggest(ctx, prefix, limit)
	if err == nil {
		return suggestions, nil
	}
	if !errors.Is(err, search.ErrUnavailable) {
		return nil, err
	}

	posts, err := s.postRepo.Search(ctx, prefix, limit, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return []search.Suggestion{{Term: strings.ToLower(prefix), PostIDs: ids}}, nil
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.postRepo.GetByUserID(ctx, userID, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}

	titleChanged := false
	if in.Title != "" && in.Title != post.Title {
		if len(in.Title) > maxTitleLen {
			return nil, models.NewValidationError("Title too long (max 300 characters)")
		}
		post.Title = in.Title
		titleChanged = true
	}
	if in.Content != "" {
		if len(in.Content) > maxContentLen {
			return nil, models.NewValidationError("Content too long (max 50000 characters)")
		}
		post.Content = in.Content
	}
	if in.MediaURLs != nil {
		media, err := normalizeMediaURLs(in.MediaURLs)
		if err != nil {
			return nil, err
		}
		post.MediaURLs = media
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	// Moderation-removed posts stay out of the index; restoring the post
	// reindexes it.
	if titleChanged {
		_ = s.index.RemovePost(ctx, post.ID)
		if !post.Removed {
			_ = s.index.IndexPost(ctx, post.ID, post.Title)
		}
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}

	if post.UserID != in.UserID {
		if s.isStaff == nil {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}
		staff, err := s.isStaff(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !staff {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}
	}

	if err := s.postRepo.Delete(ctx, post); err != nil {
		return err
	}
	_ = s.index.RemovePost(ctx, in.PostID)
	return nil
}

// VotePost casts or changes the user's vote and returns the refreshed post.
func (s *PostService) VotePost(ctx context.Context, userID, postID uint, value int) (*models.Post, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return nil, models.NewValidationError("Vote value must be 1 or -1")
	}
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Removed {
		return nil, models.NewValidationError("Cannot vote on a removed post")
	}
	if err := s.voteRepo.CastPostVote(ctx, userID, postID, value); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, postID, userID)
}

// UnvotePost withdraws the user's vote, if any, and returns the refreshed post.
func (s *PostService) UnvotePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, userID); err != nil {
		return nil, err
	}
	if err := s.voteRepo.RemovePostVote(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, postID, userID)
}

func normalizeMediaURLs(urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	if len(urls) > maxMediaURLs {
		return nil, models.NewValidationError("Too many media URLs (max 10)")
	}
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, err := url.ParseRequestURI(trimmed); err != nil {
			return nil, models.NewValidationError("media_urls must contain valid URLs")
		}
		out = append(out, trimmed)
	}
	return out, nil
}
