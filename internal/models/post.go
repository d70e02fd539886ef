package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a forum post.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Title   string `gorm:"not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user"`
	// MediaURLs holds attached media locations; stored as jsonb.
	MediaURLs []string `gorm:"type:jsonb;serializer:json" json:"media_urls,omitempty"`
	// Upvotes and Downvotes are denormalized counters kept in sync with the
	// votes table by the vote repository.
	Upvotes   int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int `gorm:"not null;default:0" json:"downvotes"`
	// CommentIDs is the denormalized list of live (non-deleted) comment IDs.
	CommentIDs IDList `gorm:"type:jsonb;serializer:json" json:"comment_ids"`
	// Removed marks posts taken down by moderation; distinct from author
	// deletion, which soft-deletes the row.
	Removed bool `gorm:"not null;default:false;index" json:"removed"`
	// MyVote is the requesting user's vote on this post (computed, -1/0/+1).
	MyVote    int            `gorm:"->;-:migration" json:"my_vote"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
