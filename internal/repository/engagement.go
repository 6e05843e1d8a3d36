package repository

import (
	"context"
	"log/slog"

	"squadfeed/internal/middleware"
	"squadfeed/internal/models"
	"squadfeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxToggleAttempts bounds how often a toggle re-runs its delete path after
// losing an insert race to a concurrent toggle of the same pair.
const maxToggleAttempts = 3

// UpvoteToggle is the persisted outcome of one toggle.
type UpvoteToggle struct {
	Added   bool
	Upvotes int64
}

// EngagementRepository owns the per-user ledgers (user_upvotes, user_views)
// and keeps the denormalized post counters in step with them. Every method
// runs as a single transaction.
type EngagementRepository interface {
	ToggleUpvote(ctx context.Context, userID, postID uint) (*UpvoteToggle, error)
	RegisterView(ctx context.Context, userID, postID uint) (counted bool, err error)
	HasUpvoted(ctx context.Context, userID, postID uint) (bool, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// ToggleUpvote removes the user's upvote if present, otherwise adds it, and
// adjusts post_upvotes by exactly one in the same transaction.
func (r *engagementRepository) ToggleUpvote(ctx context.Context, userID, postID uint) (*UpvoteToggle, error) {
	defer observability.TrackQuery("toggle_upvote", "user_upvotes")()

	var out *UpvoteToggle
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCounter(tx, &models.PostUpvoteCounter{}, postID); err != nil {
			return err
		}

		for attempt := 0; attempt < maxToggleAttempts; attempt++ {
			removed, err := r.removeUpvote(ctx, tx, userID, postID)
			if err != nil {
				return err
			}
			if removed {
				out = &UpvoteToggle{Added: false}
				return readUpvotes(tx, postID, &out.Upvotes)
			}

			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.UserUpvote{UserID: userID, PostID: postID})
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected == 1 {
				inc := tx.Model(&models.PostUpvoteCounter{}).
					Where("post_id = ?", postID).
					UpdateColumn("upvotes", gorm.Expr("upvotes + 1"))
				if inc.Error != nil {
					return inc.Error
				}
				if inc.RowsAffected == 0 {
					return ErrPostNotFound
				}
				out = &UpvoteToggle{Added: true}
				return readUpvotes(tx, postID, &out.Upvotes)
			}
			// A concurrent toggle inserted the row between our delete and
			// insert; the next pass removes it.
		}
		return ErrToggleContention
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *engagementRepository) removeUpvote(ctx context.Context, tx *gorm.DB, userID, postID uint) (bool, error) {
	del := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.UserUpvote{})
	if del.Error != nil {
		return false, del.Error
	}
	if del.RowsAffected == 0 {
		return false, nil
	}

	dec := tx.Model(&models.PostUpvoteCounter{}).
		Where("post_id = ? AND upvotes > 0", postID).
		UpdateColumn("upvotes", gorm.Expr("upvotes - 1"))
	if dec.Error != nil {
		return false, dec.Error
	}
	if dec.RowsAffected == 0 {
		observability.CounterFloorHits.Inc()
		middleware.Logger.WarnContext(ctx, "upvote counter already at zero while removing a ledger row",
			slog.Uint64("post_id", uint64(postID)), slog.Uint64("user_id", uint64(userID)))
	}
	return true, nil
}

// RegisterView records the first view of a post by a user and bumps
// post_views. Repeat views change nothing.
func (r *engagementRepository) RegisterView(ctx context.Context, userID, postID uint) (bool, error) {
	defer observability.TrackQuery("register_view", "user_views")()

	counted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCounter(tx, &models.PostViewCounter{}, postID); err != nil {
			return err
		}

		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UserView{UserID: userID, PostID: postID})
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			return nil
		}

		inc := tx.Model(&models.PostViewCounter{}).
			Where("post_id = ?", postID).
			UpdateColumn("views", gorm.Expr("views + 1"))
		if inc.Error != nil {
			return inc.Error
		}
		if inc.RowsAffected == 0 {
			return ErrPostNotFound
		}
		counted = true
		return nil
	})
	return counted, err
}

func (r *engagementRepository) HasUpvoted(ctx context.Context, userID, postID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.UserUpvote{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&n).Error
	return n > 0, err
}

// requireCounter fails with ErrPostNotFound when the post has no counter row,
// before any ledger write can trip a foreign key.
func requireCounter(tx *gorm.DB, counter interface{}, postID uint) error {
	var n int64
	if err := tx.Model(counter).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func readUpvotes(tx *gorm.DB, postID uint, dest *int64) error {
	var counter models.PostUpvoteCounter
	if err := tx.Where("post_id = ?", postID).Take(&counter).Error; err != nil {
		return err
	}
	*dest = counter.Upvotes
	return nil
}
