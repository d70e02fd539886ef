// Package search implements the prefix-tree autocomplete index for post
// titles. The tree lives in Redis alongside the cache: one set per node for
// child edges, one set per complete word for the posts containing it. This
// keeps suggestions off the database entirely; when Redis is down callers
// fall back to a LIKE query against the source of truth.
package search

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"driftboard/internal/observability"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when no Redis client is configured.
var ErrUnavailable = errors.New("search index unavailable")

const (
	edgeKeyPrefix    = "px:c:" // set of child runes under a node
	postingKeyPrefix = "px:t:" // set of post IDs for a complete word
	reverseKeyPrefix = "px:p:" // set of words indexed for a post

	minWordLen = 2
	maxWordLen = 40

	// maxVisit bounds the DFS so a one-letter prefix cannot walk the whole
	// tree on every keystroke.
	maxVisit = 256
)

// Suggestion is one autocomplete result: a completed word and the posts
// whose titles contain it.
type Suggestion struct {
	Term    string `json:"term"`
	PostIDs []uint `json:"post_ids"`
}

// Index is the Redis-backed prefix tree.
type Index struct {
	client *redis.Client
}

// NewIndex returns an Index over the given client. A nil client yields an
// index whose mutations are no-ops and whose reads return ErrUnavailable.
func NewIndex(client *redis.Client) *Index {
	return &Index{client: client}
}

func edgeKey(prefix string) string  { return edgeKeyPrefix + prefix }
func postingKey(word string) string { return postingKeyPrefix + word }
func reverseKey(postID uint) string { return reverseKeyPrefix + strconv.FormatUint(uint64(postID), 10) }
func postMember(postID uint) string { return strconv.FormatUint(uint64(postID), 10) }

// Tokenize splits a title into the lowercase words worth indexing.
func Tokenize(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) < minWordLen || len(w) > maxWordLen {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

// IndexPost adds every word of the title to the tree and records the post on
// each word's postings set. Reindexing an updated title must be preceded by
// RemovePost, otherwise stale words keep pointing at the post.
func (ix *Index) IndexPost(ctx context.Context, postID uint, title string) error {
	if ix.client == nil {
		return nil
	}
	words := Tokenize(title)
	if len(words) == 0 {
		return nil
	}

	pipe := ix.client.Pipeline()
	for _, w := range words {
		pipe.SAdd(ctx, postingKey(w), postMember(postID))
		pipe.SAdd(ctx, reverseKey(postID), w)
		runes := []rune(w)
		for i := 1; i <= len(runes); i++ {
			pipe.SAdd(ctx, edgeKey(string(runes[:i-1])), string(runes[i-1]))
		}
	}
	_, err := pipe.Exec(ctx)
	if err == nil {
		observability.SearchIndexOps.WithLabelValues("index").Inc()
	}
	return err
}

// RemovePost drops the post from every word it was indexed under and prunes
// tree nodes that became empty. Pruning is best-effort: a leftover edge only
// costs a dead-end during Suggest, never a wrong result.
func (ix *Index) RemovePost(ctx context.Context, postID uint) error {
	if ix.client == nil {
		return nil
	}
	words, err := ix.client.SMembers(ctx, reverseKey(postID)).Result()
	if err != nil {
		return err
	}

	for _, w := range words {
		remaining, err := ix.removePosting(ctx, w, postID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			ix.prune(ctx, w)
		}
	}
	if err := ix.client.Del(ctx, reverseKey(postID)).Err(); err != nil {
		return err
	}
	observability.SearchIndexOps.WithLabelValues("remove").Inc()
	return nil
}

func (ix *Index) removePosting(ctx context.Context, word string, postID uint) (int64, error) {
	pipe := ix.client.TxPipeline()
	pipe.SRem(ctx, postingKey(word), postMember(postID))
	card := pipe.SCard(ctx, postingKey(word))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// prune walks from the word back toward the root, deleting nodes with no
// postings and no children.
func (ix *Index) prune(ctx context.Context, word string) {
	ix.client.Del(ctx, postingKey(word))
	runes := []rune(word)
	for i := len(runes); i >= 1; i-- {
		node := string(runes[:i])
		hasChildren, err := ix.client.Exists(ctx, edgeKey(node)).Result()
		if err != nil {
			return
		}
		hasPostings := int64(0)
		if i < len(runes) {
			hasPostings, _ = ix.client.Exists(ctx, postingKey(node)).Result()
		}
		if hasChildren > 0 || hasPostings > 0 {
			return
		}
		ix.client.SRem(ctx, edgeKey(string(runes[:i-1])), string(runes[i-1]))
	}
}

// Suggest returns up to limit completions of the given prefix via a bounded
// depth-first walk of the tree. Results are ordered lexicographically, which
// also means shortest-completion-first among siblings.
func (ix *Index) Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	if ix.client == nil {
		return nil, ErrUnavailable
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < minWordLen {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var out []Suggestion
	stack := []string{prefix}
	visited := 0
	for len(stack) > 0 && len(out) < limit && visited < maxVisit {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++

		ids, err := ix.client.SMembers(ctx, postingKey(node)).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			out = append(out, Suggestion{Term: node, PostIDs: parsePostIDs(ids)})
		}

		children, err := ix.client.SMembers(ctx, edgeKey(node)).Result()
		if err != nil {
			return nil, err
		}
		// Push in reverse order so the stack pops lexicographically.
		sort.Sort(sort.Reverse(sort.StringSlice(children)))
		for _, ch := range children {
			stack = append(stack, node+ch)
		}
	}
	return out, nil
}

func parsePostIDs(members []string) []uint {
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		v, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(v))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
