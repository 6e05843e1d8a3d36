// Package repository provides the gorm-backed data access layer.
package repository

import (
	"context"
	"errors"

	"squadfeed/internal/feed"
	"squadfeed/internal/models"
	"squadfeed/internal/observability"

	"gorm.io/gorm"
)

// FeedQuery selects one page of the feed. A non-zero AuthorID or SquadID
// narrows the feed to that author's or squad's posts.
type FeedQuery struct {
	Ranking  feed.Ranking
	After    *feed.Cursor
	Limit    int
	ViewerID uint
	AuthorID uint
	SquadID  uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.FeedPost, error)
	GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.FeedPost, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	FeedPage(ctx context.Context, q FeedQuery) ([]models.FeedPost, error)
	IsSquadMember(ctx context.Context, squadID, userID uint) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post together with its zeroed upvote and view counters.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.PostUpvoteCounter{PostID: post.ID}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PostViewCounter{PostID: post.ID}).Error
	})
}

// feedSelect projects a post with its counters, author, squad and whether the
// viewer (bound as the single argument) currently upvotes it.
const feedSelect = "posts.*, " +
	"post_upvotes.upvotes AS upvotes, " +
	"post_views.views AS views, " +
	"COALESCE(users.username, '') AS author_username, " +
	"COALESCE(squads.handle, '') AS squad_handle, " +
	"EXISTS(SELECT 1 FROM user_upvotes WHERE user_upvotes.post_id = posts.id AND user_upvotes.user_id = ?) AS current_user_upvoted"

func (r *postRepository) feedBase(ctx context.Context, viewerID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("posts").
		Select(feedSelect, viewerID).
		Joins("JOIN post_upvotes ON post_upvotes.post_id = posts.id").
		Joins("JOIN post_views ON post_views.post_id = posts.id").
		Joins("LEFT JOIN users ON users.id = posts.author_id").
		Joins("LEFT JOIN squads ON squads.id = posts.squad_id")
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.FeedPost, error) {
	var post models.FeedPost
	err := r.feedBase(ctx, viewerID).Where("posts.id = ?", id).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetBySlug returns the newest post carrying slug. Slugs come from titles and
// are not unique.
func (r *postRepository) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.FeedPost, error) {
	var post models.FeedPost
	err := r.feedBase(ctx, viewerID).
		Where("posts.slug = ?", slug).
		Order("posts.id DESC").
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FeedPage runs the single keyset query shared by every ranking order.
func (r *postRepository) FeedPage(ctx context.Context, q FeedQuery) ([]models.FeedPost, error) {
	defer observability.TrackQuery("feed_"+q.Ranking.Name(), "posts")()

	query := r.feedBase(ctx, q.ViewerID)
	if q.AuthorID != 0 {
		query = query.Where("posts.author_id = ?", q.AuthorID)
	}
	if q.SquadID != 0 {
		query = query.Where("posts.squad_id = ?", q.SquadID)
	}
	if pred, args := q.Ranking.After(q.After); pred != "" {
		query = query.Where(pred, args...)
	}

	var posts []models.FeedPost
	err := query.Order(q.Ranking.OrderBy()).Limit(q.Limit).Find(&posts).Error
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.FeedPost{}
	}
	return posts, nil
}

// Update writes the author-editable fields. CreatedAt, author and squad never change.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).
		Model(post).
		Select("title", "slug", "content", "tags", "updated_at").
		Updates(post)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Delete removes the post with its ledgers and counters. Foreign keys cascade
// in PostgreSQL; the explicit deletes keep stores without cascades consistent.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []interface{}{
			&models.UserUpvote{},
			&models.UserView{},
			&models.PostUpvoteCounter{},
			&models.PostViewCounter{},
		} {
			if err := tx.Where("post_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
}

func (r *postRepository) IsSquadMember(ctx context.Context, squadID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.SquadMember{}).
		Where("squad_id = ? AND user_id = ?", squadID, userID).
		Count(&n).Error
	return n > 0, err
}
