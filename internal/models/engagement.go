package models

import "time"

// PostUpvoteCounter is the denormalized upvote total for one post. It always
// equals the number of UserUpvote rows for the post outside a transaction.
type PostUpvoteCounter struct {
	PostID  uint  `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Upvotes int64 `gorm:"not null;default:0" json:"upvotes"`
}

// TableName specifies the table name for GORM.
func (PostUpvoteCounter) TableName() string {
	return "post_upvotes"
}

// PostViewCounter is the denormalized, never-decreasing view total for one post.
type PostViewCounter struct {
	PostID uint  `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Views  int64 `gorm:"not null;default:0" json:"views"`
}

// TableName specifies the table name for GORM.
func (PostViewCounter) TableName() string {
	return "post_views"
}

// UserUpvote records that a user currently upvotes a post.
type UserUpvote struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (UserUpvote) TableName() string {
	return "user_upvotes"
}

// UserView records that a user has viewed a post. Rows are never deleted.
type UserView struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (UserView) TableName() string {
	return "user_views"
}
