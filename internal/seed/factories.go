// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"driftboard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username:  gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:     gofakeit.Email(),
		Bio:       gofakeit.Sentence(10),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Role:      models.RoleUser,
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePost constructs and persists a sample `models.Post` for the given user
// with a realistic created_at spread.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Title:   gofakeit.Sentence(5),
		Content: gofakeit.Paragraph(1, 3, 5, "\n"),
		UserID:  user.ID,
	}

	if f.rng.Float32() < 0.4 {
		post.MediaURLs = []string{
			fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
		}
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rng.Intn(maxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(post)
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment constructs and persists a sample `models.Comment` on the
// provided post authored by the provided user. Denormalized comment ID lists
// are not touched; run the reconcile pass after bulk seeding.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: gofakeit.Sentence(8),
		UserID:  user.ID,
		PostID:  post.ID,
	}

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateVote persists a vote from `user` on `post` and bumps the post's
// counter the same way the vote repository does.
func (f *Factory) CreateVote(user *models.User, post *models.Post, value int) error {
	vote := &models.Vote{
		UserID: user.ID,
		PostID: post.ID,
		Value:  value,
	}
	if err := f.db.Create(vote).Error; err != nil {
		return err
	}

	column := "upvotes"
	if value == models.VoteDown {
		column = "downvotes"
	}
	return f.db.Model(&models.Post{}).
		Where("id = ?", post.ID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// CreateFeedback persists a feedback entry from the given user.
func (f *Factory) CreateFeedback(user *models.User, overrides ...func(*models.Feedback)) (*models.Feedback, error) {
	feedback := &models.Feedback{
		UserID:  user.ID,
		Content: gofakeit.Paragraph(1, 2, 8, " "),
		Status:  models.FeedbackStatusOpen,
	}

	for _, override := range overrides {
		override(feedback)
	}

	if err := f.db.Create(feedback).Error; err != nil {
		return nil, err
	}
	return feedback, nil
}
