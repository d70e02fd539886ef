package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"driftboard/internal/cache"
	"driftboard/internal/models"
	"driftboard/internal/search"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn      func(context.Context, *models.Post) error
	getByIDFn     func(context.Context, uint, uint) (*models.Post, error)
	getByUserIDFn func(context.Context, uint, int, int, uint) ([]*models.Post, error)
	listFn        func(context.Context, int, int, uint, string) ([]*models.Post, error)
	searchFn      func(context.Context, string, int, int, uint) ([]*models.Post, error)
	updateFn      func(context.Context, *models.Post) error
	deleteFn      func(context.Context, *models.Post) error
	setRemovedFn  func(context.Context, uint, bool) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.getByUserIDFn(ctx, userID, limit, offset, currentUserID)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int, currentUserID uint, sort string) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset, currentUserID, sort)
}
func (s *postRepoStub) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.searchFn(ctx, query, limit, offset, currentUserID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, post *models.Post) error {
	return s.deleteFn(ctx, post)
}
func (s *postRepoStub) SetRemoved(ctx context.Context, id uint, removed bool) error {
	return s.setRemovedFn(ctx, id, removed)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, post *models.Post) error {
			post.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		getByUserIDFn: func(_ context.Context, _ uint, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		listFn:        func(_ context.Context, _, _ int, _ uint, _ string) ([]*models.Post, error) { return nil, nil },
		searchFn:      func(_ context.Context, _ string, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		updateFn:      func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:      func(_ context.Context, _ *models.Post) error { return nil },
		setRemovedFn:  func(_ context.Context, _ uint, _ bool) error { return nil },
	}
}

// voteRepoStub is a stub for repository.VoteRepository.
type voteRepoStub struct {
	castPostVoteFn      func(context.Context, uint, uint, int) error
	removePostVoteFn    func(context.Context, uint, uint) error
	getPostVoteFn       func(context.Context, uint, uint) (int, error)
	getUserVotesFn      func(context.Context, uint, []uint) (map[uint]int, error)
	castCommentVoteFn   func(context.Context, uint, uint, int) error
	removeCommentVoteFn func(context.Context, uint, uint) error
}

func (s *voteRepoStub) CastPostVote(ctx context.Context, userID, postID uint, value int) error {
	return s.castPostVoteFn(ctx, userID, postID, value)
}
func (s *voteRepoStub) RemovePostVote(ctx context.Context, userID, postID uint) error {
	return s.removePostVoteFn(ctx, userID, postID)
}
func (s *voteRepoStub) GetPostVote(ctx context.Context, userID, postID uint) (int, error) {
	return s.getPostVoteFn(ctx, userID, postID)
}
func (s *voteRepoStub) GetUserVotes(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error) {
	return s.getUserVotesFn(ctx, userID, postIDs)
}
func (s *voteRepoStub) CastCommentVote(ctx context.Context, userID, commentID uint, value int) error {
	return s.castCommentVoteFn(ctx, userID, commentID, value)
}
func (s *voteRepoStub) RemoveCommentVote(ctx context.Context, userID, commentID uint) error {
	return s.removeCommentVoteFn(ctx, userID, commentID)
}

func noopVoteRepo() *voteRepoStub {
	return &voteRepoStub{
		castPostVoteFn:      func(_ context.Context, _, _ uint, _ int) error { return nil },
		removePostVoteFn:    func(_ context.Context, _, _ uint) error { return nil },
		getPostVoteFn:       func(_ context.Context, _, _ uint) (int, error) { return 0, nil },
		getUserVotesFn:      func(_ context.Context, _ uint, _ []uint) (map[uint]int, error) { return nil, nil },
		castCommentVoteFn:   func(_ context.Context, _, _ uint, _ int) error { return nil },
		removeCommentVoteFn: func(_ context.Context, _, _ uint) error { return nil },
	}
}

// liveIndex returns a search index backed by miniredis.
func liveIndex(t *testing.T) *search.Index {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return search.NewIndex(client)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	svc := NewPostService(noopPostRepo(), noopVoteRepo(), search.NewIndex(nil), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{"empty title", CreatePostInput{UserID: 1, Content: "body"}},
		{"title too long", CreatePostInput{UserID: 1, Title: strings.Repeat("a", 301), Content: "body"}},
		{"empty content", CreatePostInput{UserID: 1, Title: "title"}},
		{"content too long", CreatePostInput{UserID: 1, Title: "title", Content: strings.Repeat("a", 50001)}},
		{"too many media urls", CreatePostInput{
			UserID: 1, Title: "title", Content: "body",
			MediaURLs: []string{"http://a/1", "http://a/2", "http://a/3", "http://a/4", "http://a/5",
				"http://a/6", "http://a/7", "http://a/8", "http://a/9", "http://a/10", "http://a/11"},
		}},
		{"invalid media url", CreatePostInput{UserID: 1, Title: "title", Content: "body", MediaURLs: []string{"not a url"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestPostService_CreatePost_IndexesTitle(t *testing.T) {
	index := liveIndex(t)
	svc := NewPostService(noopPostRepo(), noopVoteRepo(), index, nil)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, CreatePostInput{UserID: 1, Title: "Caching strategies", Content: "body"})
	require.NoError(t, err)

	got, err := index.Suggest(ctx, "cach", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "caching", got[0].Term)
	assert.Equal(t, []uint{1}, got[0].PostIDs)
}

func TestPostService_ListPosts_FirstPageEnrichesViewerVotes(t *testing.T) {
	repo := noopPostRepo()
	repo.listFn = func(_ context.Context, _, _ int, currentUserID uint, _ string) ([]*models.Post, error) {
		assert.Zero(t, currentUserID, "the cached first page must be viewer-independent")
		return []*models.Post{{ID: 1}, {ID: 2}}, nil
	}
	votes := noopVoteRepo()
	votes.getUserVotesFn = func(_ context.Context, userID uint, postIDs []uint) (map[uint]int, error) {
		assert.Equal(t, uint(42), userID)
		assert.Equal(t, []uint{1, 2}, postIDs)
		return map[uint]int{1: models.VoteUp}, nil
	}
	svc := NewPostService(repo, votes, search.NewIndex(nil), nil)

	posts, err := svc.ListPosts(context.Background(), ListPostsInput{Limit: 20, CurrentUserID: 42})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 1, posts[0].MyVote)
	assert.Equal(t, 0, posts[1].MyVote)
}

// liveFeedCache points the cache package at a miniredis instance so the feed
// cache path is actually exercised.
func liveFeedCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	prev := cache.GetClient()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(prev)
		client.Close()
	})
	return mr
}

func TestPostService_ListPosts_SmallLimitSharesCanonicalPage(t *testing.T) {
	liveFeedCache(t)

	fetches := 0
	repo := noopPostRepo()
	repo.listFn = func(_ context.Context, limit, _ int, _ uint, _ string) ([]*models.Post, error) {
		fetches++
		assert.Equal(t, 20, limit, "the cache always stores the canonical page size")
		posts := make([]*models.Post, limit)
		for i := range posts {
			posts[i] = &models.Post{ID: uint(i + 1)}
		}
		return posts, nil
	}
	svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)
	ctx := context.Background()

	// A small-limit request populates the cache with the full page but only
	// returns what was asked for.
	posts, err := svc.ListPosts(ctx, ListPostsInput{Limit: 5})
	require.NoError(t, err)
	require.Len(t, posts, 5)
	assert.Equal(t, uint(1), posts[0].ID)

	// The default-limit request that follows gets the full cached page, not
	// the 5 posts the first caller happened to ask for.
	posts, err = svc.ListPosts(ctx, ListPostsInput{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, posts, 20)

	// And a later small-limit request is sliced from the same entry.
	posts, err = svc.ListPosts(ctx, ListPostsInput{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	assert.Equal(t, 1, fetches, "every first-page limit shares one cache entry")
}

func TestPostService_ListPosts_DeepPagesBypassCachePath(t *testing.T) {
	repo := noopPostRepo()
	var gotUserID uint
	repo.listFn = func(_ context.Context, _, offset int, currentUserID uint, _ string) ([]*models.Post, error) {
		assert.Equal(t, 40, offset)
		gotUserID = currentUserID
		return nil, nil
	}
	svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)

	_, err := svc.ListPosts(context.Background(), ListPostsInput{Limit: 20, Offset: 40, CurrentUserID: 42})
	require.NoError(t, err)
	assert.Equal(t, uint(42), gotUserID, "deep pages query with the viewer inline")
}

func TestPostService_SearchPosts_EmptyQuery(t *testing.T) {
	svc := NewPostService(noopPostRepo(), noopVoteRepo(), search.NewIndex(nil), nil)
	_, err := svc.SearchPosts(context.Background(), "", 20, 0, 0)
	assertValidationError(t, err)
}

func TestPostService_Suggest_FallsBackToDatabase(t *testing.T) {
	repo := noopPostRepo()
	repo.searchFn = func(_ context.Context, query string, _, _ int, _ uint) ([]*models.Post, error) {
		assert.Equal(t, "redis", query)
		return []*models.Post{{ID: 3}, {ID: 8}}, nil
	}
	// A nil-client index reports ErrUnavailable, which triggers the fallback.
	svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)

	got, err := svc.Suggest(context.Background(), "redis", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "redis", got[0].Term)
	assert.Equal(t, []uint{3, 8}, got[0].PostIDs)
}

func TestPostService_Suggest_ServedFromIndex(t *testing.T) {
	repo := noopPostRepo()
	repo.searchFn = func(_ context.Context, _ string, _, _ int, _ uint) ([]*models.Post, error) {
		t.Fatal("database fallback must not run when the index is available")
		return nil, nil
	}
	index := liveIndex(t)
	svc := NewPostService(repo, noopVoteRepo(), index, nil)
	ctx := context.Background()

	require.NoError(t, index.IndexPost(ctx, 5, "redis pipelines"))

	got, err := svc.Suggest(ctx, "red", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "redis", got[0].Term)
}

func TestPostService_UpdatePost(t *testing.T) {
	ctx := context.Background()

	t.Run("owner can update", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, Title: "old"}, nil
		}
		updated := false
		repo.updateFn = func(_ context.Context, post *models.Post) error {
			updated = true
			assert.Equal(t, "new title", post.Title)
			return nil
		}
		svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)

		post, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "new title"})
		require.NoError(t, err)
		assert.True(t, updated)
		assert.Equal(t, "new title", post.Title)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 99}, nil
		}
		svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)

		_, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "hijack"})
		assertUnauthorizedError(t, err)
	})

	t.Run("title change reindexes", func(t *testing.T) {
		index := liveIndex(t)
		require.NoError(t, index.IndexPost(ctx, 5, "before rename"))

		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, Title: "before rename"}, nil
		}
		svc := NewPostService(repo, noopVoteRepo(), index, nil)

		_, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "after rename"})
		require.NoError(t, err)

		stale, err := index.Suggest(ctx, "befo", 10)
		require.NoError(t, err)
		assert.Empty(t, stale, "old title words must leave the index")

		fresh, err := index.Suggest(ctx, "afte", 10)
		require.NoError(t, err)
		require.Len(t, fresh, 1)
		assert.Equal(t, "after", fresh[0].Term)
	})

	t.Run("moderation-removed post is not reindexed", func(t *testing.T) {
		index := liveIndex(t)

		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, Title: "hidden gem", Removed: true}, nil
		}
		svc := NewPostService(repo, noopVoteRepo(), index, nil)

		_, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "fresh title"})
		require.NoError(t, err)

		got, err := index.Suggest(ctx, "fres", 10)
		require.NoError(t, err)
		assert.Empty(t, got, "a removed post must stay out of the index until restored")
	})
}

func TestPostService_DeletePost(t *testing.T) {
	ctx := context.Background()

	ownedBy := func(userID uint) *postRepoStub {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: userID}, nil
		}
		return repo
	}

	t.Run("owner can delete", func(t *testing.T) {
		repo := ownedBy(1)
		deleted := false
		repo.deleteFn = func(_ context.Context, post *models.Post) error {
			deleted = true
			return nil
		}
		svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)

		err := svc.DeletePost(ctx, DeletePostInput{UserID: 1, PostID: 5})
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("staff can delete another user's post", func(t *testing.T) {
		isStaff := func(_ context.Context, userID uint) (bool, error) { return true, nil }
		svc := NewPostService(ownedBy(99), noopVoteRepo(), search.NewIndex(nil), isStaff)

		err := svc.DeletePost(ctx, DeletePostInput{UserID: 1, PostID: 5})
		assert.NoError(t, err)
	})

	t.Run("non-owner non-staff rejected", func(t *testing.T) {
		isStaff := func(_ context.Context, userID uint) (bool, error) { return false, nil }
		svc := NewPostService(ownedBy(99), noopVoteRepo(), search.NewIndex(nil), isStaff)

		err := svc.DeletePost(ctx, DeletePostInput{UserID: 1, PostID: 5})
		assertUnauthorizedError(t, err)
	})
}

func TestPostService_VotePost(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid value", func(t *testing.T) {
		svc := NewPostService(noopPostRepo(), noopVoteRepo(), search.NewIndex(nil), nil)
		_, err := svc.VotePost(ctx, 1, 5, 2)
		assertValidationError(t, err)
	})

	t.Run("removed post rejected", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, Removed: true}, nil
		}
		svc := NewPostService(repo, noopVoteRepo(), search.NewIndex(nil), nil)
		_, err := svc.VotePost(ctx, 1, 5, models.VoteUp)
		assertValidationError(t, err)
	})

	t.Run("casts and refreshes", func(t *testing.T) {
		votes := noopVoteRepo()
		cast := false
		votes.castPostVoteFn = func(_ context.Context, userID, postID uint, value int) error {
			cast = true
			assert.Equal(t, models.VoteDown, value)
			return nil
		}
		svc := NewPostService(noopPostRepo(), votes, search.NewIndex(nil), nil)

		post, err := svc.VotePost(ctx, 1, 5, models.VoteDown)
		require.NoError(t, err)
		assert.True(t, cast)
		assert.Equal(t, uint(5), post.ID)
	})
}

func TestPostService_UnvotePost(t *testing.T) {
	votes := noopVoteRepo()
	removed := false
	votes.removePostVoteFn = func(_ context.Context, userID, postID uint) error {
		removed = true
		return nil
	}
	svc := NewPostService(noopPostRepo(), votes, search.NewIndex(nil), nil)

	post, err := svc.UnvotePost(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, uint(5), post.ID)
}
