package models

import "time"

// Comment represents a comment on a post. Comments are threaded through
// ParentID and soft-deleted via the Deleted flag so replies keep their place
// in the tree after the parent is removed.
type Comment struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Content   string `gorm:"type:text;not null" json:"content"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	User      User   `gorm:"foreignKey:UserID" json:"user"`
	PostID    uint   `gorm:"not null;index" json:"post_id"`
	ParentID  *uint  `gorm:"index" json:"parent_id,omitempty"`
	Replies   []uint `gorm:"-" json:"replies,omitempty"`
	Upvotes   int    `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int    `gorm:"not null;default:0" json:"downvotes"`
	// Deleted marks author- or moderator-removed comments. The row stays so
	// threading survives; Sanitize masks the content on the way out.
	Deleted bool `gorm:"not null;default:false;index" json:"deleted"`
	// MyVote is the requesting user's vote on this comment (computed).
	MyVote    int       `gorm:"->;-:migration" json:"my_vote"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sanitize blanks out author-visible fields on deleted comments.
func (c *Comment) Sanitize() {
	if !c.Deleted {
		return
	}
	c.Content = "[deleted]"
	c.UserID = 0
	c.User = User{}
}
