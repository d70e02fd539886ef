package models

import "time"

// Feedback statuses.
const (
	FeedbackStatusOpen     = "open"
	FeedbackStatusReviewed = "reviewed"
)

// Feedback is a free-form message from a user to the site operators.
type Feedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Status    string    `gorm:"not null;default:open;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
