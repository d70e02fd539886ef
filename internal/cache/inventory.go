package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix = "user:%d"
	PostKeyPrefix = "post:%d"
	FeedKeyPrefix = "feed:%s"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 30 * time.Minute
	FeedTTL = 1 * time.Minute
)

// FeedSorts are the cached feed orderings. InvalidateFeeds must cover every
// entry or stale first pages survive a write.
var FeedSorts = []string{"new", "top", "hot"}

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func FeedKey(sort string) string {
	return fmt.Sprintf(FeedKeyPrefix, sort)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidateFeeds drops every cached feed page. Called on any write that can
// change feed membership or ordering (post create/delete, votes, comments).
func InvalidateFeeds(ctx context.Context) {
	if client == nil {
		return
	}
	keys := make([]string, 0, len(FeedSorts))
	for _, sort := range FeedSorts {
		keys = append(keys, FeedKey(sort))
	}
	client.Del(ctx, keys...)
}
