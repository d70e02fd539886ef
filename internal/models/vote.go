package models

import "time"

// Vote values. Anything else is rejected at the service layer.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Vote is a user's vote on a post. The composite primary key guarantees at
// most one vote per user per post; changing a vote is an upsert.
type Vote struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	PostID    uint      `gorm:"primaryKey" json:"post_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentVote is a user's vote on a comment, keyed the same way.
type CommentVote struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CommentID uint      `gorm:"primaryKey" json:"comment_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
