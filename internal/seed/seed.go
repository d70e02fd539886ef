// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"driftboard/internal/models"
	"driftboard/internal/repository"
	"driftboard/internal/search"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	SkipBcrypt  bool
	MaxDays     int
}

// Seed populates the database with test data. Comments are inserted raw and
// the denormalized comment ID lists are rebuilt afterwards in one reconcile
// pass, which is much faster than per-comment fan-out at seed volume.
func Seed(db *gorm.DB, index *search.Index, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, user)
	}
	if len(users) == 0 {
		return fmt.Errorf("no users could be created")
	}
	log.Printf("%d test users created", len(users))

	ctx := context.Background()

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		user := users[r.Intn(len(users))]
		post, err := factory.CreatePost(user)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post)

		if index != nil {
			if err := index.IndexPost(ctx, post.ID, post.Title); err != nil && !errors.Is(err, search.ErrUnavailable) {
				log.Printf("Failed to index post %d: %v", post.ID, err)
			}
		}
	}
	log.Printf("%d posts created", len(posts))

	commentCount := 0
	for _, post := range posts {
		for i := 0; i < r.Intn(6); i++ {
			user := users[r.Intn(len(users))]
			if _, err := factory.CreateComment(user, post); err != nil {
				return fmt.Errorf("failed to create comment: %w", err)
			}
			commentCount++
		}
	}
	log.Printf("%d comments created", commentCount)

	voteCount := 0
	for _, post := range posts {
		for _, user := range users {
			if r.Float32() > 0.3 {
				continue
			}
			value := models.VoteUp
			if r.Float32() < 0.25 {
				value = models.VoteDown
			}
			if err := factory.CreateVote(user, post, value); err != nil {
				continue
			}
			voteCount++
		}
	}
	log.Printf("%d votes created", voteCount)

	// Rebuild the denormalized comment ID lists in one pass.
	maintenance := repository.NewMaintenanceRepository(db)
	result, err := maintenance.RebuildCommentIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile comment lists: %w", err)
	}
	log.Printf("Comment lists reconciled: %d posts, %d users updated", result.PostsUpdated, result.UsersUpdated)

	// Also rebuild the users' post ID lists from the posts table.
	if err := rebuildUserPostIDs(db, users); err != nil {
		return fmt.Errorf("failed to rebuild user post lists: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE comment_votes, votes, comments, feedbacks, posts, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func rebuildUserPostIDs(db *gorm.DB, users []*models.User) error {
	for _, user := range users {
		var ids []uint
		if err := db.Model(&models.Post{}).
			Where("user_id = ?", user.ID).
			Order("id asc").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		if err := db.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("post_ids", models.IDList(ids)).Error; err != nil {
			return err
		}
	}
	return nil
}
