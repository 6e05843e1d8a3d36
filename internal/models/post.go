// Package models contains data structures for the application's domain models.
package models

import "time"

// Post is a piece of content published by a user into a squad.
// Content holds sanitized plain text; Tags are vocabulary terms.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:300;not null" json:"title"`
	Slug      string    `gorm:"size:320;not null;index" json:"slug"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	SquadID   uint      `gorm:"not null;index" json:"squad_id"`
	Tags      []string  `gorm:"serializer:json;type:text" json:"tags"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

// FeedPost is a post row as returned by feed and detail reads: the post
// joined with its counters, author, squad and the viewer's upvote flag.
type FeedPost struct {
	Post
	Upvotes            int64  `json:"upvotes"`
	Views              int64  `json:"views"`
	AuthorUsername     string `json:"author_username"`
	SquadHandle        string `json:"squad_handle"`
	CurrentUserUpvoted bool   `json:"current_user_upvoted"`
}
