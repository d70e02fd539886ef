package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	prev := GetClient()
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(prev) })
	return mr
}

type cachedPost struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestAside_MissPopulatesCache(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	fetches := 0
	var got cachedPost
	err := Aside(ctx, PostKey(1), &got, PostTTL, func() error {
		fetches++
		got = cachedPost{ID: 1, Title: "hello"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "hello", got.Title)

	// Second read must be served from Redis without calling fetch.
	var again cachedPost
	err = Aside(ctx, PostKey(1), &again, PostTTL, func() error {
		fetches++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, got, again)

	assert.True(t, mr.Exists("post:1"))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	sentinel := errors.New("db down")
	var got cachedPost
	err := Aside(ctx, PostKey(2), &got, PostTTL, func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, mr.Exists("post:2"))
}

func TestAside_NilClientAlwaysFetches(t *testing.T) {
	prev := GetClient()
	SetClient(nil)
	t.Cleanup(func() { SetClient(prev) })

	fetches := 0
	var got cachedPost
	for i := 0; i < 2; i++ {
		err := Aside(context.Background(), PostKey(3), &got, PostTTL, func() error {
			fetches++
			got = cachedPost{ID: 3}
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, fetches, "without Redis every read goes to the source")
}

func TestGetJSON_CorruptEntryIsAMiss(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("post:4", "{not json"))

	var got cachedPost
	found, err := GetJSON(context.Background(), "post:4", &got)
	assert.False(t, found)
	assert.Error(t, err)

	// Aside treats the decode error as a miss and repairs the entry.
	err = Aside(context.Background(), "post:4", &got, time.Minute, func() error {
		got = cachedPost{ID: 4, Title: "repaired"}
		return nil
	})
	require.NoError(t, err)

	var repaired cachedPost
	found, err = GetJSON(context.Background(), "post:4", &repaired)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "repaired", repaired.Title)
}

func TestInvalidateFeeds(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	for _, sort := range FeedSorts {
		require.NoError(t, SetJSON(ctx, FeedKey(sort), []uint{1, 2}, FeedTTL))
	}
	require.True(t, mr.Exists("feed:new"))

	InvalidateFeeds(ctx)
	for _, sort := range FeedSorts {
		assert.False(t, mr.Exists(FeedKey(sort)), sort)
	}
}
