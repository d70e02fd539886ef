// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles. Moderators can remove content; admins can additionally manage
// users and trigger maintenance operations.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents a registered forum user.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"uniqueIndex;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `gorm:"not null;default:user" json:"role"`
	Banned    bool   `gorm:"not null;default:false" json:"banned"`
	// PostIDs and CommentIDs are denormalized copies of the user's live
	// content, maintained by fan-out on every write (see repository package).
	PostIDs    IDList         `gorm:"type:jsonb;serializer:json" json:"post_ids"`
	CommentIDs IDList         `gorm:"type:jsonb;serializer:json" json:"comment_ids"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsStaff reports whether the user may perform moderation actions.
func (u *User) IsStaff() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}
